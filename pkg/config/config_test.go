package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldog20/tuntap/node/tun"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuntap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "tun10", cfg.Device.Name)
	assert.Equal(t, tun.TUN, cfg.Device.Mode)
	assert.Equal(t, "10.10.10.1/24", cfg.Device.Prefix().String())
	assert.Equal(t, -1, cfg.Device.Owner)
	assert.Equal(t, time.Second, cfg.Ping.Interval)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
device:
  name: vpn%d
  mode: TAP
  packet_info: true
  mtu: 1400
vpn:
  remote: 192.0.2.10:4242
ping:
  interval: 250ms
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "vpn%d", cfg.Device.Name)
	assert.Equal(t, tun.TAP, cfg.Device.Mode)
	assert.True(t, cfg.Device.PacketInfo)
	assert.Equal(t, 1400, cfg.Device.MTU)
	assert.Equal(t, "10.10.10.1/24", cfg.Device.Address)
	assert.Equal(t, "0.0.0.0:4242", cfg.VPN.Listen)
	assert.Equal(t, "192.0.2.10:4242", cfg.VPN.Remote)
	assert.Equal(t, 250*time.Millisecond, cfg.Ping.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)

	tc := cfg.Device.TunConfig()
	assert.Equal(t, tun.TAP, tc.Mode)
	assert.True(t, tc.PacketInfo)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad mode", "device:\n  mode: bridge\n"},
		{"long name", "device:\n  name: averyveryverylongname\n"},
		{"network address", "device:\n  address: 10.10.10.0/24\n"},
		{"bad remote", "vpn:\n  remote: nowhere\n"},
		{"unknown field", "device:\n  colour: blue\n"},
		{"zero interval", "ping:\n  interval: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteThenLoad(t *testing.T) {
	cfg := Default()
	cfg.Device.Mode = tun.TAP
	cfg.VPN.Remote = "198.51.100.1:4242"

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Write(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
