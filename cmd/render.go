package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/okian/certify/internal/domain/certificate"
	"github.com/okian/certify/internal/domain/roster"
	"github.com/okian/certify/pkg/logger"
	"github.com/spf13/cobra"
)

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var byEmail bool
	cmd := &cobra.Command{
		Use:   "render NAME",
		Short: "Render one certificate into the output directory",
		Long: "Render a certificate for NAME, or for the roster entry of NAME when --email is set,\n" +
			"using the configured template, font and output directory.",
		Args: cobra.ExactArgs(1),
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

			name := args[0]
			if byEmail {
				idx := roster.Load(ctx, cfg.RosterPath, log.Named("roster"))
				resolved, ok := idx.Lookup(name)
				if !ok || resolved == "" {
					return fmt.Errorf("%s: name not found", name)
				}
				name = resolved
			}

			r := certificate.NewRenderer(
				certificate.WithTemplatePath(cfg.TemplatePath),
				certificate.WithFontPath(cfg.FontPath),
				certificate.WithOutputDir(cfg.OutputDir),
				certificate.WithLogger(log.Named("certificate")),
			)
			path, err := r.Render(ctx, name)
			if err != nil {
				return err
			}
			log.Debug(ctx, "rendered", logger.String("path", path))
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("wrote"), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&byEmail, "email", false, "treat the argument as a roster email")
	return cmd
}
