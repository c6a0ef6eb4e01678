package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/staple-duck/snh/config"
	"github.com/staple-duck/snh/services"
)

// app carries the state shared by every subcommand
type app struct {
	cfg       *config.Config
	container *services.ServiceContainer
	open      func(ctx context.Context, cfg *config.Config) (*services.ServiceContainer, error)

	driver     string
	badgerPath string
	output     string
	verbose    bool
}

func newApp(cfg *config.Config) *app {
	return &app{
		cfg:    cfg,
		open:   openContainer,
		output: outputText,
	}
}

func openContainer(ctx context.Context, cfg *config.Config) (*services.ServiceContainer, error) {
	return services.NewServiceFactory(cfg).WithLogOutput(io.Discard).CreateServices(ctx)
}

func (a *app) close() {
	if a.container != nil {
		a.container.Close()
		a.container = nil
	}
}

// hierarchy opens the configured store on first use
func (a *app) hierarchy(cmd *cobra.Command) (services.HierarchyService, error) {
	if a.container == nil {
		if a.driver != "" {
			a.cfg.Store.Driver = a.driver
		}
		if a.badgerPath != "" {
			a.cfg.Store.Badger.Path = a.badgerPath
		}
		a.cfg.Metrics.Enabled = false
		if a.verbose {
			a.cfg.Logging.Level = string(services.LogLevelDebug)
		}
		if err := a.cfg.Validate(); err != nil {
			return nil, err
		}

		container, err := a.open(cmd.Context(), a.cfg)
		if err != nil {
			return nil, err
		}
		a.container = container
	}
	return a.container.Hierarchy, nil
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treectl",
		Short: "Inspect and edit the node hierarchy directly against its store",
		Long: `treectl runs hierarchy operations in-process against the configured
store driver (postgres or badger) without going through the HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateOutput(a.output)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.driver, "driver", "", "Store driver: postgres, badger, memory (default from STORE_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&a.badgerPath, "badger-path", "", "Badger data directory (default from BADGER_PATH)")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", outputText, "Output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newCreateCmd(a),
		newListCmd(a),
		newGetCmd(a),
		newUpdateCmd(a),
		newMoveCmd(a),
		newDeleteCmd(a),
		newCloneCmd(a),
		newExportCmd(a),
	)

	return rootCmd
}
