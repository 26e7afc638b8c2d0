package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/okian/certify/internal/domain/roster"
	"github.com/spf13/cobra"
)

func newLookupCmd(opts *rootOptions) *cobra.Command {
	var rosterPath string
	cmd := &cobra.Command{
		Use:   "lookup EMAIL...",
		Short: "Resolve emails against the roster",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx, opts)
			if err != nil {
				return err
			}
			log, err := initLogging(ctx, cfg)
			if err != nil {
				return err
			}
			if rosterPath == "" {
				rosterPath = cfg.RosterPath
			}

			idx := roster.Load(ctx, rosterPath, log.Named("roster"))
			out := cmd.OutOrStdout()
			missing := 0
			for _, raw := range args {
				name, ok := idx.Lookup(raw)
				if !ok {
					missing++
					fmt.Fprintf(out, "%s\t%s\n", roster.Normalize(raw), color.RedString("not found"))
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", roster.Normalize(raw), color.GreenString("%q", name))
			}
			if missing > 0 {
				return fmt.Errorf("%d of %d emails not in roster (%d entries)", missing, len(args), idx.Len())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rosterPath, "roster", "", "roster CSV (defaults to roster_path)")
	return cmd
}
