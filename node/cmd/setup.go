package cmd

import (
	"fmt"
	"os"
	"os/user"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/caldog20/tuntap/node/tun"
	"github.com/caldog20/tuntap/pkg/config"
	"github.com/caldog20/tuntap/pkg/netconf"
)

func NewSetupCommand() *cobra.Command {
	var (
		dev      deviceFlags
		username string
		useIP    bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "create a persistent device owned by a user, address it and bring it up",
		Long: "setup does what an administrator would do by hand before running the\n" +
			"other commands unprivileged:\n\n" +
			"  ip tuntap add tun10 mode tun user $USER\n" +
			"  ip address add 10.10.10.1/24 dev tun10\n" +
			"  ip link set dev tun10 up",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dev.apply(cmd, cfg)
			if err != nil {
				return err
			}

			o, err := lookupOwner(username)
			if err != nil {
				return err
			}

			entry := baseLog.WithFields(log.Fields{
				"component": "setup",
				"device":    d.Name,
			})

			if useIP {
				return setupWithIP(d, o, entry)
			}
			return setupWithIoctl(d, o, entry)
		},
	}

	dev.register(cmd)
	cmd.Flags().StringVar(&username, "user", "", "owner of the device, defaults to the invoking user")
	cmd.Flags().BoolVar(&useIP, "use-ip", false, "run the ip tool instead of talking to the kernel directly")
	return cmd
}

type owner struct {
	name string
	uid  int
	gid  int
}

// lookupOwner resolves name, or the user behind sudo, or the current user.
func lookupOwner(name string) (owner, error) {
	var (
		u   *user.User
		err error
	)
	switch {
	case name != "":
		u, err = user.Lookup(name)
	case os.Getenv("SUDO_USER") != "":
		u, err = user.Lookup(os.Getenv("SUDO_USER"))
	default:
		u, err = user.Current()
	}
	if err != nil {
		return owner{}, fmt.Errorf("error looking up device owner: %w", err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return owner{}, fmt.Errorf("user %s has non numeric uid %q", u.Username, u.Uid)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return owner{}, fmt.Errorf("user %s has non numeric gid %q", u.Username, u.Gid)
	}
	return owner{name: u.Username, uid: uid, gid: gid}, nil
}

func setupWithIoctl(d config.Device, o owner, entry *log.Entry) error {
	d.Persist = true
	d.Owner = o.uid
	d.Group = o.gid

	dev, err := tun.Open(d.TunConfig())
	if err != nil {
		return fmt.Errorf("error creating %s device: %w", d.Mode, err)
	}
	// the device outlives the descriptor
	defer dev.Close()

	if err := netconf.Configure(netconf.Default(), dev.Name(), d.Prefix(), d.MTU); err != nil {
		return err
	}

	entry.Infof("device %s ready: mode=%s owner=%s address=%s", dev.Name(), d.Mode, o.name, d.Address)
	return nil
}

func setupWithIP(d config.Device, o owner, entry *log.Entry) error {
	ip := netconf.NewIPCommand()
	if err := ip.AddTuntap(d.Name, d.Mode.String(), o.name); err != nil {
		return err
	}
	if err := netconf.Configure(ip, d.Name, d.Prefix(), d.MTU); err != nil {
		return err
	}

	entry.Infof("device %s ready via %s: mode=%s owner=%s address=%s", d.Name, ip.Path, d.Mode, o.name, d.Address)
	return nil
}
