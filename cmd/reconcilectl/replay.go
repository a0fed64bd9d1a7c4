package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tair/payment-reconciler/internal/payment"
	"github.com/tair/payment-reconciler/internal/payment/domain"
)

var replayKinds = map[string]domain.EventType{
	"completed": domain.EventSessionCompleted,
	"failed":    domain.EventSessionAsyncPaymentFailed,
}

func replayCmd() *cobra.Command {
	var (
		sessionID string
		kind      string
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run reconciliation for a checkout session",
		Long: `Re-run reconciliation for a checkout session without a signed delivery.

Use it after an integrity anomaly has been fixed (for example a user was
registered under the payer email). Session details are fetched from the
gateway again, so the outcome is the same a fresh delivery would produce.

Examples:
  reconcilectl replay --session cs_test_123
  reconcilectl replay --session cs_test_123 --type failed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := replayEvent(sessionID, kind)
			if err != nil {
				return err
			}

			cfg, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			reconciler, err := payment.InitializeReconciler(db, cfg, payment.Extras{})
			if err != nil {
				return err
			}

			outcome, err := reconciler.Handle(cmd.Context(), event)
			fmt.Fprintf(cmd.OutOrStdout(), "session=%s type=%s outcome=%s\n", sessionID, event.Type, outcome)
			return err
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "checkout session id")
	cmd.Flags().StringVar(&kind, "type", "completed", "event to replay (completed, failed)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

// replayEvent builds the event a gateway delivery for the session would carry
func replayEvent(sessionID, kind string) (domain.VerifiedEvent, error) {
	if sessionID == "" {
		return domain.VerifiedEvent{}, errors.New("--session is required")
	}
	eventType, ok := replayKinds[kind]
	if !ok {
		return domain.VerifiedEvent{}, fmt.Errorf("unknown --type %q (want completed or failed)", kind)
	}
	return domain.VerifiedEvent{
		ID:          "replay_" + uuid.NewString(),
		Type:        eventType,
		RawType:     string(eventType),
		ReferenceID: sessionID,
	}, nil
}

