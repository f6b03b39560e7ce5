package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasr/batch-grades-processing/internal/store"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the grade database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ConfigFrom(cmd.Context())
			if err != nil {
				return err
			}

			s := store.New(LoggerFrom(cmd.Context()))
			if err := s.Open(cfg.Database); err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if reset {
				if err := s.Reset(); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Reset database %s\n", cfg.Database)
			} else {
				if err := s.Migrate(); err != nil {
					return err
				}
			}

			version, err := s.MigrationVersion()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Database %s at schema version %d\n", cfg.Database, version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "drop all tables and recreate them (destroys all data)")
	return cmd
}
