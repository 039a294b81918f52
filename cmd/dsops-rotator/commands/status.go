package commands

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/dsops-rotator/internal/config"
	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

// NewStatusCommand shows the versions of a secret and their stage labels.
func NewStatusCommand(cfg *config.Config) *cobra.Command {
	var secretID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show secret versions and stage labels",
		Long: `Show whether rotation is enabled for a secret and which stage labels each
version holds. Payloads are never printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore(cfg)
			if err != nil {
				return err
			}
			desc, err := store.Describe(cmd.Context(), secretID)
			if err != nil {
				return storeFailure(cfg, "describe", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Secret:   %s\n", secretID)
			_, _ = fmt.Fprintf(out, "Store:    %s\n", store.Name())
			_, _ = fmt.Fprintf(out, "Rotation: %s\n\n", enabledString(desc.RotationEnabled))

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "VERSION\tSTAGES")
			for _, token := range sortedTokens(desc) {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", token, stagesString(desc.VersionStages[token]))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&secretID, "secret-id", "", "Secret to inspect (required)")
	_ = cmd.MarkFlagRequired("secret-id")

	return cmd
}

// sortedTokens orders CURRENT first, then PENDING, then PREVIOUS, then the rest by token.
func sortedTokens(desc secretstore.Description) []string {
	rank := func(token string) int {
		for i, label := range []secretstore.StageLabel{secretstore.StageCurrent, secretstore.StagePending, secretstore.StagePrevious} {
			if desc.TokenHas(token, label) {
				return i
			}
		}
		return 3
	}

	tokens := make([]string, 0, len(desc.VersionStages))
	for token := range desc.VersionStages {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		ri, rj := rank(tokens[i]), rank(tokens[j])
		if ri != rj {
			return ri < rj
		}
		return tokens[i] < tokens[j]
	})
	return tokens
}

func stagesString(stages []secretstore.StageLabel) string {
	if len(stages) == 0 {
		return "-"
	}
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
