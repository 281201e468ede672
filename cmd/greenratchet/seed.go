package main

import (
	"fmt"

	"github.com/Deepak-Sangle/greenratchet/internal/fixtures"
	"github.com/spf13/cobra"
)

func newSeedCmd(c *cli) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load organizations, usage and grid readings into the database",
		Long: `Load a YAML dataset into the configured database. Without --file the bundled
demo dataset (organization org-demo, Q1 2025) is loaded. Seeding is
idempotent: existing usage records and grid readings are kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				ds  *fixtures.Dataset
				err error
			)
			if file != "" {
				ds, err = fixtures.LoadFile(file)
			} else {
				ds, err = fixtures.Demo()
			}
			if err != nil {
				return err
			}
			data, err := ds.Convert()
			if err != nil {
				return err
			}

			repos, closeDB, err := c.openRepositories()
			if err != nil {
				return err
			}
			defer func() {
				if err := closeDB(); err != nil {
					c.logger.Warn().Err(err).Msg("close database")
				}
			}()

			n, err := data.Seed(cmd.Context(), repos)
			if err != nil {
				return err
			}
			c.logger.Info().
				Str("operation", "Seed").
				Int("organizations", n.Organizations).
				Int("connections", n.Connections).
				Int("usage_records", n.Usage).
				Int("grid_metrics", n.Grid).
				Msg("dataset seeded")
			fmt.Fprintf(c.out, "Seeded %d organizations, %d connections, %d usage records, %d grid readings\n",
				n.Organizations, n.Connections, n.Usage, n.Grid)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML dataset (default is the bundled demo)")
	return cmd
}
