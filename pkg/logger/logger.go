package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/natefinch/lumberjack"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultLevel      = "info"
	DefaultTimeFormat = "2006-01-02 15:04:05.000"

	// Rotation limits for file output
	MaxSizeMB  = 10
	MaxBackups = 3
	MaxAgeDays = 7
)

type Options struct {
	// Level is a logrus level name, "info" when empty.
	Level string
	// File switches output to a rotating log file.
	File string
	// Prefix is printed in front of every message.
	Prefix  string
	NoColor bool
}

// New builds a logrus logger writing either to stderr or to a rotating file.
func New(opts Options) (*log.Logger, error) {
	if opts.Level == "" {
		opts.Level = DefaultLevel
	}

	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	var out io.Writer = os.Stderr
	if opts.File != "" {
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
			MaxAge:     MaxAgeDays,
		}
		// no escape codes in files
		opts.NoColor = true
	}

	l := log.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&Formatter{
		Prefix:  opts.Prefix,
		NoColor: opts.NoColor,
	})
	return l, nil
}

// Formatter prints "<time> LEVEL: [prefix] message key=value ..." and colours
// the level tag the way the node log output always has.
type Formatter struct {
	Prefix          string
	TimestampFormat string
	NoColor         bool
}

func (f *Formatter) Format(e *log.Entry) ([]byte, error) {
	var b bytes.Buffer

	tf := f.TimestampFormat
	if tf == "" {
		tf = DefaultTimeFormat
	}
	b.WriteString(e.Time.Format(tf))
	b.WriteByte(' ')
	b.WriteString(f.levelTag(e.Level))
	b.WriteByte(' ')

	if f.Prefix != "" {
		b.WriteString("[" + f.Prefix + "] ")
	}
	b.WriteString(strings.TrimSuffix(e.Message, "\n"))

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *Formatter) levelTag(level log.Level) string {
	var c *color.Color
	tag := strings.ToUpper(level.String()) + ":"

	switch level {
	case log.PanicLevel, log.FatalLevel, log.ErrorLevel:
		c = color.New(color.FgRed)
	case log.WarnLevel:
		c = color.New(color.FgYellow)
		tag = "WARN:"
	case log.DebugLevel, log.TraceLevel:
		c = color.New(color.FgGreen)
	default:
		return tag
	}

	if f.NoColor {
		c.DisableColor()
	}
	return c.Sprint(tag)
}

// Discard returns an entry that drops everything, for tests and library
// callers that pass no logger.
func Discard() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return log.NewEntry(l)
}

// Since formats a duration rounded for log lines.
func Since(t time.Time) string {
	return time.Since(t).Round(time.Millisecond).String()
}
