package tun

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// MTU is assumed when the link cannot be queried.
const MTU = 1500

var (
	ErrUnsupported = errors.New("tun/tap devices are not supported on this platform")
	ErrInvalidMode = errors.New("invalid device mode")
	ErrNameTooLong = errors.New("interface name too long")
)

// Mode selects the layer the virtual adapter works on.
type Mode int

const (
	// TUN exchanges IP packets (layer 3).
	TUN Mode = 1
	// TAP exchanges Ethernet frames (layer 2).
	TAP Mode = 2
)

func (m Mode) String() string {
	switch m {
	case TUN:
		return "tun"
	case TAP:
		return "tap"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (m Mode) Valid() bool {
	return m == TUN || m == TAP
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tun":
		return TUN, nil
	case "tap":
		return TAP, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Config describes the device to create or attach to.
type Config struct {
	// Name is a wish, not a requirement. Empty lets the kernel pick one and
	// a "%d" is replaced by the first free number. Always read the real
	// name back with Name().
	Name string
	Mode Mode
	// PacketInfo keeps the 4 byte flags/protocol prefix on every frame.
	PacketInfo bool
	// Persist keeps the device after the descriptor is closed.
	Persist bool
	// Owner and Group hand the device to an unprivileged user; -1 leaves
	// them unset.
	Owner int
	Group int
}

func DefaultConfig() Config {
	return Config{
		Mode:  TUN,
		Owner: -1,
		Group: -1,
	}
}

// Tun is a virtual network adapter. Every Read returns exactly one frame and
// every Write sends one.
type Tun interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)

	Name() string
	Mode() Mode
	PacketInfo() bool
	Close() error
	MTU() (int, error)

	ConfigureIPAddress(addr netip.Prefix) error

	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// New creates a device that prepends packet information to every frame.
func New(name string, mode Mode) (Tun, error) {
	cfg := DefaultConfig()
	cfg.Name = name
	cfg.Mode = mode
	cfg.PacketInfo = true
	return Open(cfg)
}

// NewWithoutPacketInfo creates a device whose frames start directly with the
// IP header (TUN) or the Ethernet header (TAP).
func NewWithoutPacketInfo(name string, mode Mode) (Tun, error) {
	cfg := DefaultConfig()
	cfg.Name = name
	cfg.Mode = mode
	return Open(cfg)
}

// Attach opens an existing persistent device. The kernel hands out the same
// device to every opener of the name, so this differs from Open only in
// refusing names it would have to invent.
func Attach(name string, mode Mode, packetInfo bool) (Tun, error) {
	if name == "" || strings.Contains(name, "%") {
		return nil, fmt.Errorf("attach needs a concrete interface name, got %q", name)
	}
	cfg := DefaultConfig()
	cfg.Name = name
	cfg.Mode = mode
	cfg.PacketInfo = packetInfo
	return Open(cfg)
}

// BufferSize is large enough for one frame on a link with the given MTU,
// including the Ethernet header, a VLAN tag and the packet info prefix.
func BufferSize(mtu int, mode Mode, packetInfo bool) int {
	size := mtu
	if mode == TAP {
		size += 18
	}
	if packetInfo {
		size += 4
	}
	return size
}

func validate(cfg Config) error {
	if !cfg.Mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(cfg.Mode))
	}
	// IFNAMSIZ includes the terminating zero
	if len(cfg.Name) >= 16 {
		return fmt.Errorf("%w: %q", ErrNameTooLong, cfg.Name)
	}
	return nil
}
