package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/TitanMedia/internal/storage/postgres"
)

func newEventsCommand(root *rootOptions) *cobra.Command {
	var (
		q     postgres.EventQuery
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the persisted event log, newest first",
		Long: `Print events persisted to Postgres for the configured studio, one JSON
object per line. Connection settings come from the PG* variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver() != "postgres" {
				return fmt.Errorf("the event log needs store.driver postgres, not %q", cfg.StoreDriver())
			}
			pg, err := postgres.New(cfg.StudioID())
			if err != nil {
				return err
			}
			defer pg.Close()

			if since > 0 {
				q.Since = time.Now().Add(-since)
			}
			rows, err := pg.Query(cmd.Context(), q)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, row := range rows {
				if err := enc.Encode(row); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 200, "number of events to print")
	cmd.Flags().StringVar(&q.Prefix, "prefix", "", "only events whose name starts with this, e.g. switch.")
	cmd.Flags().StringVar(&q.Session, "session", "", "only events from this serve session id")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this age, e.g. 1h")
	return cmd
}
