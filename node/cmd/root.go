package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/caldog20/tuntap/pkg/config"
	"github.com/caldog20/tuntap/pkg/logger"
)

var (
	configPath  string
	logLevel    string
	logFile     string
	debug       bool
	profileMode string

	cfg      *config.Config
	baseLog  *log.Logger
	profiler interface{ Stop() }

	rootCmd = &cobra.Command{
		Use:           "tuntap",
		Short:         "Linux TUN/TAP adapter tools",
		Long:          "",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if cmd.Flags().Changed("log-file") {
				cfg.Log.File = logFile
			}
			if debug {
				cfg.Log.Level = "debug"
			}

			baseLog, err = logger.New(logger.Options{
				Level: cfg.Log.Level,
				File:  cfg.Log.File,
			})
			if err != nil {
				return err
			}

			switch profileMode {
			case "":
			case "cpu":
				profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
			case "mem":
				profiler = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook)
			default:
				return fmt.Errorf("unknown profile mode %q, want cpu or mem", profileMode)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if profiler != nil {
				profiler.Stop()
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("please use a subcommand or use -h for help")
		},
	}
)

func init() {
	rootCmd.PersistentFlags().
		StringVar(&configPath, "config", "", "path to a yaml config file")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", config.Default().Log.Level, "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().
		StringVar(&logFile, "log-file", "", "write logs to a rotating file instead of stderr")
	rootCmd.PersistentFlags().
		BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&profileMode, "profile", "", "write a cpu or mem profile to the working directory")

	rootCmd.AddCommand(NewSetupCommand())
	rootCmd.AddCommand(NewTeardownCommand())
	rootCmd.AddCommand(NewDumpCommand())
	rootCmd.AddCommand(NewPingPongCommand())
	rootCmd.AddCommand(NewVPNCommand())
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigchan)

		select {
		case sig := <-sigchan:
			baseLog.Infof("received %v signal, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// errorLog is the configured logger, or the logrus default when the
// failure happened before it was built.
func errorLog() log.FieldLogger {
	if baseLog != nil {
		return baseLog
	}
	return log.StandardLogger()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		errorLog().Error(err)
		if profiler != nil {
			profiler.Stop()
		}
		os.Exit(1)
	}
}
