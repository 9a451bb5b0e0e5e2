package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/habitgrid/internal/paths"
	"github.com/mesh-intelligence/habitgrid/pkg/sqlite"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the habit journal",
		Long: "Create the configuration and journal directories and the empty journal files.\n" +
			"With --data-dir, the directory is also recorded in config.yaml.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd)
		},
	}
}

func (a *app) runInit(cmd *cobra.Command) error {
	cfg, err := a.effectiveConfig()
	if err != nil {
		return classify(err)
	}

	if a.flags.dataDir != "" {
		file := defaultConfig()
		if err := a.cfg.Unmarshal(&file); err != nil {
			return sysError(fmt.Errorf("decode config: %w", err))
		}
		file.DataDir = cfg.DataDir
		if err := writeConfigFile(paths.ConfigFile(a.configDir), file); err != nil {
			return sysError(fmt.Errorf("write config: %w", err))
		}
	}

	journal := sqlite.NewBackend(a.logger)
	if err := journal.Attach(cfg.journalConfig()); err != nil {
		return classify(err)
	}
	if err := journal.Detach(); err != nil {
		return sysError(fmt.Errorf("finalize journal: %w", err))
	}

	if a.flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"config_dir": a.configDir,
			"data_dir":   cfg.DataDir,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized habit journal in %s\n", cfg.DataDir)
	return nil
}
