package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/northcover/parametric-cli/internal/observe"
)

var (
	importInput     string
	importDelimiter string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an observation table into the store",
	Long:  "Parses a delimited flight observation table and persists the rows for pricing. Blank cells are kept as unknowns.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(importInput)
		if err != nil {
			return eris.Wrapf(err, "open %s", importInput)
		}
		defer f.Close()

		var delim rune
		if importDelimiter != "" {
			runes := []rune(importDelimiter)
			if len(runes) != 1 {
				return eris.Errorf("delimiter must be a single character, got %q", importDelimiter)
			}
			delim = runes[0]
		}

		observations, err := observe.Parse(ctx, f, observe.Options{Delimiter: delim})
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.SaveObservations(ctx, observations)
		if err != nil {
			return err
		}

		zap.L().Info("observations imported",
			zap.String("file", importInput),
			zap.Int("rows", n),
		)
		cmd.Printf("imported %d observations\n", n)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importInput, "input", "i", "", "observation table file (required)")
	importCmd.Flags().StringVar(&importDelimiter, "delimiter", "", "column delimiter (default ',')")
	importCmd.MarkFlagRequired("input") //nolint:errcheck
	rootCmd.AddCommand(importCmd)
}
