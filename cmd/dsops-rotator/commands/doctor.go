package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/dsops-rotator/internal/config"
	dserrors "github.com/systmms/dsops-rotator/internal/errors"
	"github.com/systmms/dsops-rotator/internal/secretstores"
	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

// CheckResult is the outcome of one doctor check.
type CheckResult struct {
	Name       string
	Status     string // ok, warning, error
	Message    string
	Suggestion string
}

// NewDoctorCommand checks configuration, store access and secret state.
func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var (
		secretID string
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, store access and secret state",
		Long: `Verify that the rotator is ready to rotate.

This command checks:
- Configuration file validity
- Store credentials, for stores that authenticate remotely
- With --secret-id: that the secret is rotatable and its stage labels are consistent`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			store, err := loadStore(cfg)
			if err != nil {
				return fmt.Errorf("failed to load store: %w", err)
			}

			results := []CheckResult{{Name: "config", Status: "ok", Message: "configuration loaded"}}
			results = append(results, checkIdentity(ctx, cfg, store))
			if secretID != "" {
				results = append(results, checkSecret(ctx, cfg, store, secretID)...)
			}

			displayCheckResults(out, results, verbose)

			failed := 0
			for _, r := range results {
				if r.Status == "error" {
					failed++
				}
			}
			_, _ = fmt.Fprintf(out, "\nSummary: %d/%d checks passed\n", len(results)-failed, len(results))
			if failed > 0 {
				return fmt.Errorf("%d checks failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&secretID, "secret-id", "", "Also check the state of this secret")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failed checks")

	return cmd
}

func checkIdentity(ctx context.Context, cfg *config.Config, store secretstore.Store) CheckResult {
	checker, ok := store.(secretstores.IdentityChecker)
	if !ok {
		return CheckResult{Name: "credentials", Status: "ok", Message: "store " + store.Name() + " needs no remote credentials"}
	}
	id, err := checker.Identity(ctx)
	if err != nil {
		return failedCheck("credentials", cfg, "identity", err)
	}
	return CheckResult{Name: "credentials", Status: "ok", Message: "authenticated as " + id.String()}
}

func checkSecret(ctx context.Context, cfg *config.Config, store secretstore.Store, secretID string) []CheckResult {
	desc, err := store.Describe(ctx, secretID)
	if err != nil {
		return []CheckResult{failedCheck("secret", cfg, "describe", err)}
	}

	results := make([]CheckResult, 0, 3)
	if desc.RotationEnabled {
		results = append(results, CheckResult{Name: "rotation", Status: "ok", Message: "rotation enabled for " + secretID})
	} else {
		results = append(results, CheckResult{
			Name:       "rotation",
			Status:     "error",
			Message:    "rotation disabled for " + secretID,
			Suggestion: "Enable rotation on the secret before running any step",
		})
	}

	current, ok := desc.Holder(secretstore.StageCurrent)
	if !ok {
		results = append(results, CheckResult{
			Name:       "current",
			Status:     "error",
			Message:    "no version holds CURRENT",
			Suggestion: "Restore a CURRENT version; finishSecret cannot complete without one",
		})
		return results
	}
	results = append(results, CheckResult{Name: "current", Status: "ok", Message: "CURRENT is version " + current})

	if pending, ok := desc.Holder(secretstore.StagePending); ok && pending != current {
		results = append(results, CheckResult{
			Name:       "pending",
			Status:     "warning",
			Message:    "rotation in progress under version " + pending,
			Suggestion: "Resume it with 'dsops-rotator rotate --secret-id " + secretID + " --token " + pending + "'",
		})
	}
	return results
}

func failedCheck(name string, cfg *config.Config, operation string, err error) CheckResult {
	result := CheckResult{Name: name, Status: "error", Message: err.Error()}
	var ue dserrors.UserError
	if errors.As(dserrors.StoreError(cfg.Definition.Store.Type, operation, err), &ue) {
		result.Suggestion = ue.Suggestion
	}
	return result
}

func displayCheckResults(out io.Writer, results []CheckResult, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-----\t------\t-------\n")

	for _, result := range results {
		status := result.Status
		switch result.Status {
		case "ok":
			status = "✓ " + status
		case "error":
			status = "✗ " + status
		default:
			status = "! " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", result.Name, status, result.Message)
	}
	_ = w.Flush()

	if !verbose {
		return
	}
	for _, result := range results {
		if result.Status != "ok" && result.Suggestion != "" {
			_, _ = fmt.Fprintf(out, "\n%s: %s\n", result.Name, result.Suggestion)
		}
	}
}
