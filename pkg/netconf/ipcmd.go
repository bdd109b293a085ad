package netconf

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"os/exec"
	"strconv"
	"strings"
)

const DefaultIPPath = "/sbin/ip"

// Runner executes a command and returns its combined output.
type Runner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// IPCommand configures links by running the iproute2 "ip" tool, the same
// commands an administrator types by hand.
type IPCommand struct {
	Path string
	Run  Runner
}

func NewIPCommand() *IPCommand {
	path := DefaultIPPath
	if p, err := exec.LookPath("ip"); err == nil {
		path = p
	}
	return &IPCommand{Path: path, Run: execRunner}
}

func (c *IPCommand) ip(args ...string) ([]byte, error) {
	out, err := c.Run(c.Path, args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return out, fmt.Errorf("ip %s: %w", strings.Join(args, " "), err)
		}
		return out, fmt.Errorf("ip %s: %s: %w", strings.Join(args, " "), msg, err)
	}
	return out, nil
}

// AddTuntap creates a persistent device, owned by user when it is not empty.
func (c *IPCommand) AddTuntap(ifname, mode, user string) error {
	args := []string{"tuntap", "add", "mode", mode}
	if user != "" {
		args = append(args, "user", user)
	}
	args = append(args, "name", ifname)
	_, err := c.ip(args...)
	return err
}

func (c *IPCommand) AddAddress(ifname string, addr netip.Prefix) error {
	_, err := c.ip("address", "add", addr.String(), "dev", ifname)
	return err
}

func (c *IPCommand) Addresses(ifname string) ([]netip.Prefix, error) {
	out, err := c.ip("-o", "address", "show", "dev", ifname)
	if err != nil {
		return nil, err
	}
	return parseAddresses(out), nil
}

func (c *IPCommand) SetMTU(ifname string, mtu int) error {
	_, err := c.ip("link", "set", ifname, "mtu", strconv.Itoa(mtu))
	return err
}

func (c *IPCommand) SetUp(ifname string) error {
	_, err := c.ip("link", "set", ifname, "up")
	return err
}

func (c *IPCommand) SetDown(ifname string) error {
	_, err := c.ip("link", "set", ifname, "down")
	return err
}

func (c *IPCommand) IsUp(ifname string) (bool, error) {
	out, err := c.ip("-o", "link", "show", "dev", ifname)
	if err != nil {
		return false, err
	}
	return parseUp(out), nil
}

func (c *IPCommand) MTU(ifname string) (int, error) {
	out, err := c.ip("-o", "link", "show", "dev", ifname)
	if err != nil {
		return 0, err
	}
	return parseMTU(out)
}

func (c *IPCommand) Delete(ifname string) error {
	_, err := c.ip("link", "delete", ifname)
	return err
}

func parseMTU(out []byte) (int, error) {
	fields := bytes.Fields(out)
	for i := 0; i+1 < len(fields); i++ {
		if string(fields[i]) == "mtu" {
			return strconv.Atoi(string(fields[i+1]))
		}
	}
	return 0, errors.New("mtu not found in ip output")
}

// parseAddresses reads "inet 10.10.10.1/24" style fields of
// "ip -o address show". Point to point entries without a prefix length are
// skipped.
func parseAddresses(out []byte) []netip.Prefix {
	var prefixes []netip.Prefix
	fields := bytes.Fields(out)
	for i := 0; i+1 < len(fields); i++ {
		if f := string(fields[i]); f != "inet" && f != "inet6" {
			continue
		}
		if p, err := netip.ParsePrefix(string(fields[i+1])); err == nil {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}

// parseUp looks for the administrative UP flag in "<...,UP,...>".
func parseUp(out []byte) bool {
	start := bytes.IndexByte(out, '<')
	end := bytes.IndexByte(out, '>')
	if start < 0 || end < start {
		return false
	}
	for _, flag := range bytes.Split(out[start+1:end], []byte(",")) {
		if string(flag) == "UP" {
			return true
		}
	}
	return false
}
