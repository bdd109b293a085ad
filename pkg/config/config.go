package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/caldog20/tuntap/node/tun"
	"github.com/caldog20/tuntap/pkg/netconf"
)

const (
	DefaultDeviceName   = "tun10"
	DefaultAddress      = "10.10.10.1/24"
	DefaultVPNPort      = 4242
	DefaultPingInterval = time.Second
)

type Config struct {
	Device Device `yaml:"device"`
	VPN    VPN    `yaml:"vpn"`
	Ping   Ping   `yaml:"ping"`
	Log    Log    `yaml:"log"`
}

type Device struct {
	Name       string   `yaml:"name"`
	Mode       tun.Mode `yaml:"mode"`
	PacketInfo bool     `yaml:"packet_info"`
	// Address is assigned to the interface when set, e.g. 10.10.10.1/24.
	Address string `yaml:"address"`
	MTU     int    `yaml:"mtu"`
	Persist bool   `yaml:"persist"`
	Owner   int    `yaml:"owner"`
	Group   int    `yaml:"group"`
}

type VPN struct {
	Listen string `yaml:"listen"`
	// Remote may be empty, the first peer that sends a datagram is used.
	Remote string `yaml:"remote"`
}

type Ping struct {
	Interval time.Duration `yaml:"interval"`
	// Peer is the address the echo requests come from. Defaults to the
	// next free address after the device address.
	Peer string `yaml:"peer"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func Default() *Config {
	return &Config{
		Device: Device{
			Name:    DefaultDeviceName,
			Mode:    tun.TUN,
			Address: DefaultAddress,
			Owner:   -1,
			Group:   -1,
		},
		VPN: VPN{
			Listen: fmt.Sprintf("0.0.0.0:%d", DefaultVPNPort),
		},
		Ping: Ping{
			Interval: DefaultPingInterval,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if !c.Device.Mode.Valid() {
		return fmt.Errorf("device: %w", tun.ErrInvalidMode)
	}
	if len(c.Device.Name) >= 16 {
		return fmt.Errorf("device: %w: %q", tun.ErrNameTooLong, c.Device.Name)
	}
	if c.Device.MTU < 0 || c.Device.MTU > 65535 {
		return fmt.Errorf("device: mtu %d out of range", c.Device.MTU)
	}
	if c.Device.Address != "" {
		p, err := netip.ParsePrefix(c.Device.Address)
		if err != nil {
			return fmt.Errorf("device address: %w", err)
		}
		if err := netconf.HostAddr(p); err != nil {
			return fmt.Errorf("device address: %w", err)
		}
	}
	if c.VPN.Listen != "" {
		if _, err := netip.ParseAddrPort(c.VPN.Listen); err != nil {
			return fmt.Errorf("vpn listen: %w", err)
		}
	}
	if c.VPN.Remote != "" {
		if _, err := netip.ParseAddrPort(c.VPN.Remote); err != nil {
			return fmt.Errorf("vpn remote: %w", err)
		}
	}
	if c.Ping.Interval <= 0 {
		return errors.New("ping: interval must be positive")
	}
	if c.Ping.Peer != "" {
		if _, err := netip.ParseAddr(c.Ping.Peer); err != nil {
			return fmt.Errorf("ping peer: %w", err)
		}
	}
	return nil
}

// TunConfig converts the device section into a tun.Config.
func (d Device) TunConfig() tun.Config {
	return tun.Config{
		Name:       d.Name,
		Mode:       d.Mode,
		PacketInfo: d.PacketInfo,
		Persist:    d.Persist,
		Owner:      d.Owner,
		Group:      d.Group,
	}
}

// Prefix returns the parsed device address, invalid when none is set.
func (d Device) Prefix() netip.Prefix {
	p, err := netip.ParsePrefix(d.Address)
	if err != nil {
		return netip.Prefix{}
	}
	return p
}

// Write stores the config as YAML.
func (c *Config) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
