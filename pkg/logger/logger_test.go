package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatterOutput(t *testing.T) {
	f := &Formatter{Prefix: "tun", NoColor: true}
	e := &log.Entry{
		Time:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "frame truncated\n",
		Data:    log.Fields{"device": "tun10", "bytes": 1504},
	}

	out, err := f.Format(e)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01 12:00:00.000 WARN: [tun] frame truncated bytes=1504 device=tun10\n", string(out))
}

func TestNewLevels(t *testing.T) {
	l, err := New(Options{Level: "debug", NoColor: true})
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, l.GetLevel())

	l, err = New(Options{})
	require.NoError(t, err)
	assert.Equal(t, log.InfoLevel, l.GetLevel())

	_, err = New(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewWritesToOutput(t *testing.T) {
	l, err := New(Options{Level: "info", NoColor: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.WithField("device", "tun0").Info("created")
	l.Debug("hidden")

	assert.Contains(t, buf.String(), "INFO: created device=tun0")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuntap.log")
	l, err := New(Options{Level: "info", File: path})
	require.NoError(t, err)

	l.Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO: to file")
}
