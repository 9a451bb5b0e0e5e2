package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/habitgrid/internal/paths"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after config.yaml, HABITGRID_ environment variables, and flags are applied.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.effectiveConfig()
			if err != nil {
				return classify(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"config_file":    paths.ConfigFile(a.configDir),
					"backend":        cfg.Backend,
					"data_dir":       cfg.DataDir,
					"window_size":    cfg.WindowSize,
					"sync_strategy":  cfg.SyncStrategy,
					"batch_size":     cfg.BatchSize,
					"batch_interval": cfg.BatchInterval,
				})
			}
			out, err := yaml.Marshal(&cfg)
			if err != nil {
				return sysError(fmt.Errorf("marshal config: %w", err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", paths.ConfigFile(a.configDir), out)
			return nil
		},
	}
}
