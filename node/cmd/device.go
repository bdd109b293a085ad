package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caldog20/tuntap/node/tun"
	"github.com/caldog20/tuntap/pkg/config"
)

// deviceFlags are shared by every command that opens a device. Values given
// on the command line win over the config file.
type deviceFlags struct {
	name       string
	mode       string
	packetInfo bool
	address    string
	mtu        int
}

func (f *deviceFlags) register(cmd *cobra.Command) {
	def := config.Default().Device
	cmd.Flags().StringVar(&f.name, "name", def.Name, "interface name, a %d is replaced by the first free number")
	cmd.Flags().StringVar(&f.mode, "mode", def.Mode.String(), "device mode, tun or tap")
	cmd.Flags().BoolVar(&f.packetInfo, "packet-info", def.PacketInfo, "keep the 4 byte packet info prefix on frames")
	cmd.Flags().StringVar(&f.address, "address", def.Address, "address assigned to the interface, empty to leave it alone")
	cmd.Flags().IntVar(&f.mtu, "mtu", def.MTU, "interface mtu, 0 keeps the kernel default")
}

// apply merges the flags the user set into the loaded config and validates
// the result.
func (f *deviceFlags) apply(cmd *cobra.Command, c *config.Config) (config.Device, error) {
	flags := cmd.Flags()
	d := &c.Device

	if flags.Changed("name") {
		d.Name = f.name
	}
	if flags.Changed("mode") {
		mode, err := tun.ParseMode(f.mode)
		if err != nil {
			return config.Device{}, err
		}
		d.Mode = mode
	}
	if flags.Changed("packet-info") {
		d.PacketInfo = f.packetInfo
	}
	if flags.Changed("address") {
		d.Address = f.address
	}
	if flags.Changed("mtu") {
		d.MTU = f.mtu
	}

	if err := c.Validate(); err != nil {
		return config.Device{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return *d, nil
}
