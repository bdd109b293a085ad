package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caldog20/tuntap/pkg/config"
	"github.com/caldog20/tuntap/pkg/netconf"
)

func NewTeardownCommand() *cobra.Command {
	var (
		name  string
		useIP bool
	)

	cmd := &cobra.Command{
		Use:   "teardown",
		Short: "take a persistent device down and delete it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("name") {
				name = cfg.Device.Name
			}

			var c netconf.Configurator = netconf.Default()
			if useIP {
				c = netconf.NewIPCommand()
			}

			if err := teardown(c, name); err != nil {
				return err
			}
			baseLog.WithField("component", "teardown").Infof("deleted device %s", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", config.DefaultDeviceName, "interface to delete")
	cmd.Flags().BoolVar(&useIP, "use-ip", false, "run the ip tool instead of talking to the kernel directly")
	return cmd
}

// teardown takes the link down first so routes through it are withdrawn
// before it disappears.
func teardown(c netconf.Configurator, name string) error {
	if err := c.SetDown(name); err != nil {
		return fmt.Errorf("set %s down: %w", name, err)
	}
	if err := c.Delete(name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}
