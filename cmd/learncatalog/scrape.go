package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammad-safakhou/learncatalog/scraper"
	"github.com/spf13/cobra"
)

// scrapeCMD runs the unit pipeline once without a session, for checking
// selectors and host policy against live pages.
func scrapeCMD() *cobra.Command {
	var (
		firstUnitURL string
		units        []string
		excerpt      bool
		excerptChars int
		maxUnits     int
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the units of one module and print JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			pipeline, err := newPipeline(cfg, nil, logger)
			if err != nil {
				return err
			}
			req := scraper.Request{
				ReferenceURL:    firstUnitURL,
				Identifiers:     units,
				WithExcerpt:     excerpt,
				MaxExcerptChars: excerptChars,
			}
			if cmd.Flags().Changed("max-units") {
				req.MaxUnits = &maxUnits
			}
			outcomes, err := pipeline.Run(ctx, req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"base":  scraper.DeriveBase(firstUnitURL),
				"count": len(outcomes),
				"units": outcomes,
			})
		},
	}
	cmd.Flags().StringVar(&firstUnitURL, "first-unit-url", "", "url of any unit page in the module")
	cmd.Flags().StringSliceVar(&units, "unit", nil, "unit uid, repeatable, in module order")
	cmd.Flags().BoolVar(&excerpt, "excerpt", false, "include a text excerpt per unit")
	cmd.Flags().IntVar(&excerptChars, "excerpt-chars", scraper.DefaultExcerptChars, "excerpt length limit")
	cmd.Flags().IntVar(&maxUnits, "max-units", 0, "scrape only the first N units")
	_ = cmd.MarkFlagRequired("first-unit-url")
	return cmd
}
