package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/northcover/parametric-cli/internal/model"
	"github.com/northcover/parametric-cli/internal/settlement"
	"github.com/northcover/parametric-cli/internal/store"
)

var (
	settlePolicyID   string
	settleType       string
	settleQuestion   string
	settleFlightID   string
	settleFlightDate string
	settlePropertyID string
	settleReplicas   int
	settleRecord     bool
)

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Settle a policy against live signals",
	Long:  "Fetches the policy's signal snapshot, evaluates the deterministic threshold trace, asks the AI arbiter, and reconciles the two into a final verdict. With --replicas > 1 the verdict is published only on byte-identical consensus.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req := settlement.Request{
			PolicyID: settlePolicyID,
			Question: settleQuestion,
			Meta: settlement.PolicyMeta{
				Type:       model.PolicyType(settleType),
				FlightID:   settleFlightID,
				FlightDate: settleFlightDate,
				PropertyID: settlePropertyID,
			},
		}

		eng, err := newSettlementEngine()
		if err != nil {
			return err
		}

		replicas := settleReplicas
		if replicas == 0 {
			replicas = cfg.Settlement.Replicas
		}

		verdict, err := eng.SettleWithConsensus(ctx, req, replicas)
		if err != nil {
			return err
		}

		if settleRecord {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.RecordSettlement(ctx, req.PolicyID, store.SettlementVerdict{
				Verdict:      verdict.Verdict,
				Confidence:   verdict.Confidence,
				UsedFallback: verdict.UsedFallback,
				Trace:        verdict.Trace,
			})
			if err != nil {
				return err
			}
			zap.L().Info("settlement recorded",
				zap.String("id", rec.ID),
				zap.String("policy_id", rec.PolicyID),
			)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(verdict), "encode verdict")
	},
}

func init() {
	settleCmd.Flags().StringVar(&settlePolicyID, "policy-id", "", "policy identifier (required)")
	settleCmd.Flags().StringVar(&settleType, "type", "", "policy type: property or flight (required)")
	settleCmd.Flags().StringVarP(&settleQuestion, "question", "q", "", "policy question posed to the arbiter")
	settleCmd.Flags().StringVar(&settleFlightID, "flight-id", "", "flight identifier (flight policies)")
	settleCmd.Flags().StringVar(&settleFlightDate, "flight-date", "", "flight date YYYY-MM-DD (flight policies)")
	settleCmd.Flags().StringVar(&settlePropertyID, "property-id", "", "property identifier (property policies)")
	settleCmd.Flags().IntVar(&settleReplicas, "replicas", 0, "redundant settlement runs for consensus (default from config)")
	settleCmd.Flags().BoolVar(&settleRecord, "record", false, "persist the verdict to the store")
	settleCmd.MarkFlagRequired("policy-id") //nolint:errcheck
	settleCmd.MarkFlagRequired("type")      //nolint:errcheck
	rootCmd.AddCommand(settleCmd)
}
