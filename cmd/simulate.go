package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/northcover/parametric-cli/internal/model"
	"github.com/northcover/parametric-cli/internal/report"
	"github.com/northcover/parametric-cli/internal/solvency"
)

var (
	simCount       int
	simPremium     float64
	simStake       float64
	simPayout      float64
	simRefund      float64
	simProbability float64
	simOpCost      float64
	simAutoLock    float64
	simTrials      int
	simConfidence  float64
	simSeed        uint64
	simFormat      string
	simTargetNet   float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Monte Carlo solvency simulation for a product portfolio",
	Long:  "Simulates portfolio outcomes under the configured breach probability and reports expected profit, reserve quantiles, and deficit probability, with and without per-policy auto-locked capital.",
	RunE: func(cmd *cobra.Command, args []string) error {
		productCfg := model.ProductConfig{
			Count:             simCount,
			BuyerPremium:      simPremium,
			HostStake:         simStake,
			PayoutIfYes:       simPayout,
			HostRefundIfNo:    simRefund,
			BreachProbability: simProbability,
			OperationalCost:   simOpCost,
			AutoLockPerPolicy: simAutoLock,
		}

		params := simulationParams()
		if cmd.Flags().Changed("trials") {
			params.Trials = simTrials
		}
		if cmd.Flags().Changed("confidence") {
			params.Confidence = simConfidence
		}
		if cmd.Flags().Changed("seed") {
			params.Seed = simSeed
		}

		result, err := solvency.Simulate(productCfg, params)
		if err != nil {
			return err
		}

		switch simFormat {
		case "markdown", "":
			cmd.Print(report.FormatSimulationMarkdown(productCfg, result))
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return eris.Wrap(err, "encode result")
			}
		default:
			return eris.Errorf("unknown format %q (markdown, json)", simFormat)
		}

		if cmd.Flags().Changed("target-net") {
			premium := solvency.RequiredPremium(productCfg, simTargetNet)
			cmd.Printf("\npremium for target net %.2f per policy: %.2f\n", simTargetNet, premium)
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simCount, "count", 0, "number of policies (required)")
	simulateCmd.Flags().Float64Var(&simPremium, "premium", 0, "buyer premium per policy")
	simulateCmd.Flags().Float64Var(&simStake, "stake", 0, "host stake per policy")
	simulateCmd.Flags().Float64Var(&simPayout, "payout", 0, "payout to buyer on YES")
	simulateCmd.Flags().Float64Var(&simRefund, "refund", 0, "host refund on NO")
	simulateCmd.Flags().Float64Var(&simProbability, "probability", 0, "breach probability (required)")
	simulateCmd.Flags().Float64Var(&simOpCost, "op-cost", 0, "operational cost per policy")
	simulateCmd.Flags().Float64Var(&simAutoLock, "auto-lock", 0, "auto-locked capital per policy")
	simulateCmd.Flags().IntVar(&simTrials, "trials", 0, "Monte Carlo trials (default from config)")
	simulateCmd.Flags().Float64Var(&simConfidence, "confidence", 0, "reserve confidence level (default from config)")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 0, "PRNG seed (default from config)")
	simulateCmd.Flags().StringVarP(&simFormat, "format", "f", "markdown", "output format: markdown, json")
	simulateCmd.Flags().Float64Var(&simTargetNet, "target-net", 0, "also solve the premium for this expected net per policy")
	simulateCmd.MarkFlagRequired("count")       //nolint:errcheck
	simulateCmd.MarkFlagRequired("probability") //nolint:errcheck
	rootCmd.AddCommand(simulateCmd)
}
