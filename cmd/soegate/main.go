// Command soegate runs one tier of the session layer: the gateway relay, an interactive
// login client, or a zone bootstrap client that tunnels through a gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/soegate/internal/config"
	"github.com/1ureka/soegate/internal/dump"
	"github.com/1ureka/soegate/internal/util"
)

var version = "dev"

type rootOptions struct {
	configPath string
	debug      bool
	dumpDir    string
}

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "soegate",
		Short:         "Login, gateway and zone session tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			pterm.Info.Println(fmt.Sprintf("Soegate v%s", version))
			pterm.Println()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.dumpDir, "dump-dir", "", "Write every frame and packet to this directory")

	rootCmd.AddCommand(
		gatewayCmd(opts),
		loginCmd(opts),
		zoneCmd(opts),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

// load reads the configuration file and applies the persistent flags.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.debug {
		cfg.Debug = true
	}
	if o.dumpDir != "" {
		cfg.DumpDir = o.dumpDir
	}
	if cfg.Debug {
		util.EnableDebug()
	}
	return cfg, nil
}

// observer returns the frame dumper for cfg, or nil when dumping is off.
func observer(cfg *config.Config) (dump.Observer, error) {
	if cfg.DumpDir == "" {
		return nil, nil
	}
	d, err := dump.NewDir(cfg.DumpDir)
	if err != nil {
		return nil, err
	}
	util.LogInfo("dumping frames to %s", cfg.DumpDir)
	return d, nil
}
