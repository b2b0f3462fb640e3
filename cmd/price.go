package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/northcover/parametric-cli/internal/model"
	"github.com/northcover/parametric-cli/internal/observe"
	"github.com/northcover/parametric-cli/internal/pricing"
	"github.com/northcover/parametric-cli/internal/report"
	"github.com/northcover/parametric-cli/internal/store"
)

var (
	priceInput  string
	priceRoute  string
	priceFormat string
	priceOut    string
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Aggregate route risk and derive premiums",
	Long:  "Computes per-route delay and cancellation rates with Wilson confidence intervals, expected payouts, and premium recommendations. Reads observations from the store, or from a file with --input.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var observations []model.RouteObservation
		if priceInput != "" {
			f, err := os.Open(priceInput)
			if err != nil {
				return eris.Wrapf(err, "open %s", priceInput)
			}
			defer f.Close()
			observations, err = observe.Parse(ctx, f, observe.Options{})
			if err != nil {
				return err
			}
		} else {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			observations, err = st.ListObservations(ctx, store.ObservationFilter{Route: priceRoute})
			if err != nil {
				return err
			}
		}

		if len(observations) == 0 {
			return eris.New("no observations to price; run import first or pass --input")
		}

		metrics := pricing.Aggregate(observations, pricingParams())

		out := cmd.OutOrStdout()
		if priceOut != "" {
			f, err := os.Create(priceOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", priceOut)
			}
			defer f.Close()
			out = f
		}

		switch priceFormat {
		case "markdown", "":
			_, err := out.Write([]byte(report.FormatRiskMarkdown(metrics)))
			return err
		case "csv":
			return report.WriteRiskCSV(out, metrics)
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(metrics), "encode metrics")
		default:
			return eris.Errorf("unknown format %q (markdown, csv, json)", priceFormat)
		}
	},
}

func init() {
	priceCmd.Flags().StringVarP(&priceInput, "input", "i", "", "observation table file (default: read from store)")
	priceCmd.Flags().StringVar(&priceRoute, "route", "", "restrict to one route")
	priceCmd.Flags().StringVarP(&priceFormat, "format", "f", "markdown", "output format: markdown, csv, json")
	priceCmd.Flags().StringVarP(&priceOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(priceCmd)
}
