package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashishacharya123/PKMS-sub000/internal/output"
	"github.com/ashishacharya123/PKMS-sub000/internal/search"
	"github.com/ashishacharya123/PKMS-sub000/internal/store"
)

func newSuggestCmd() *cobra.Command {
	var owner string
	var types []string
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Suggest title completions for a prefix",
		Long: `Print title completions for a typeahead prefix, merged across
content types and ordered best-first.

Examples:
  pkms-search suggest "quarterly bud" --owner alice
  pkms-search suggest meet --owner alice --type note --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := strings.Join(args, " ")

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			q := &search.SuggestQuery{
				Owner:  owner,
				Prefix: prefix,
				Limit:  limit,
			}
			for _, t := range types {
				q.Types = append(q.Types, store.ContentType(t))
			}

			suggestions, err := e.engine.Suggest(cmd.Context(), q)
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(suggestions)
			}

			out := output.New(cmd.OutOrStdout())
			if len(suggestions) == 0 {
				out.Statusf("", "No suggestions for %q", prefix)
				return nil
			}
			for _, s := range suggestions {
				out.Status("", s.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Owner whose titles to complete (required)")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "Restrict to content types (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum suggestions (0 = configured default)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
