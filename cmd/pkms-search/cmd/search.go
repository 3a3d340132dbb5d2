package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashishacharya123/PKMS-sub000/internal/output"
	"github.com/ashishacharya123/PKMS-sub000/internal/search"
	"github.com/ashishacharya123/PKMS-sub000/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	owner           string
	types           []string
	includeTags     []string
	excludeTags     []string
	favoritesOnly   bool
	includeArchived bool
	createdAfter    string
	createdBefore   string
	mimeFamily      string
	status          string
	minPriority     int
	maxPriority     int
	minSize         int64
	maxSize         int64
	fuzzy           bool
	threshold       int
	sortBy          string
	sortDir         string
	limit           int
	offset          int
	format          string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed content",
		Long: `Search across the indexed content types with ranked results.

Results from different types are normalized onto a common score scale
before merging. Low-recall queries fall back to fuzzy re-ranking
automatically; --fuzzy requests typo-tolerant matching up front.

Examples:
  pkms-search search "quarterly budget" --owner alice
  pkms-search search meeting --owner alice --type note --type task
  pkms-search search budjet --owner alice --fuzzy --threshold 60
  pkms-search search receipts --owner alice --tag finance --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.owner, "owner", "o", "", "Owner whose content to search (required)")
	cmd.Flags().StringSliceVarP(&opts.types, "type", "t", nil, "Restrict to content types (repeatable)")
	cmd.Flags().StringSliceVar(&opts.includeTags, "tag", nil, "Require a tag (repeatable, all must match)")
	cmd.Flags().StringSliceVar(&opts.excludeTags, "exclude-tag", nil, "Exclude records with a tag (repeatable)")
	cmd.Flags().BoolVar(&opts.favoritesOnly, "favorites", false, "Only favorited records")
	cmd.Flags().BoolVar(&opts.includeArchived, "include-archived", false, "Include archived records")
	cmd.Flags().StringVar(&opts.createdAfter, "created-after", "", "Only records created after (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&opts.createdBefore, "created-before", "", "Only records created before (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&opts.mimeFamily, "mime", "", "Filter documents by MIME family")
	cmd.Flags().StringVar(&opts.status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&opts.minPriority, "min-priority", 0, "Minimum priority")
	cmd.Flags().IntVar(&opts.maxPriority, "max-priority", 0, "Maximum priority")
	cmd.Flags().Int64Var(&opts.minSize, "min-size", 0, "Minimum size in bytes")
	cmd.Flags().Int64Var(&opts.maxSize, "max-size", 0, "Maximum size in bytes")
	cmd.Flags().BoolVar(&opts.fuzzy, "fuzzy", false, "Typo-tolerant matching")
	cmd.Flags().IntVar(&opts.threshold, "threshold", 0, "Fuzzy similarity cutoff 0-100 (0 = configured default)")
	cmd.Flags().StringVar(&opts.sortBy, "sort", "", "Sort key: relevance, date, title, type")
	cmd.Flags().StringVar(&opts.sortDir, "dir", "", "Sort direction: asc, desc")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Page size (0 = configured default)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Pagination offset")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runSearch(cmd *cobra.Command, queryText string, opts searchOptions) error {
	q, err := buildQuery(queryText, opts)
	if err != nil {
		return err
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	resp, err := e.engine.Search(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return formatText(output.New(cmd.OutOrStdout()), queryText, resp)
}

func buildQuery(queryText string, opts searchOptions) (*search.Query, error) {
	q := &search.Query{
		Owner:           opts.owner,
		Text:            queryText,
		IncludeTags:     opts.includeTags,
		ExcludeTags:     opts.excludeTags,
		FavoritesOnly:   opts.favoritesOnly,
		IncludeArchived: opts.includeArchived,
		MimeFamily:      opts.mimeFamily,
		Status:          opts.status,
		MinPriority:     opts.minPriority,
		MaxPriority:     opts.maxPriority,
		MinSizeBytes:    opts.minSize,
		MaxSizeBytes:    opts.maxSize,
		Fuzzy:           opts.fuzzy,
		FuzzyThreshold:  opts.threshold,
		SortBy:          search.SortKey(opts.sortBy),
		SortDir:         search.SortDir(opts.sortDir),
		Limit:           opts.limit,
		Offset:          opts.offset,
	}

	for _, t := range opts.types {
		q.Types = append(q.Types, store.ContentType(t))
	}

	var err error
	if q.CreatedAfter, err = parseTimeFlag(opts.createdAfter); err != nil {
		return nil, fmt.Errorf("invalid --created-after: %w", err)
	}
	if q.CreatedBefore, err = parseTimeFlag(opts.createdBefore); err != nil {
		return nil, fmt.Errorf("invalid --created-before: %w", err)
	}
	return q, nil
}

// parseTimeFlag accepts a date or a full RFC3339 timestamp.
func parseTimeFlag(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

// formatText outputs results in human-readable form.
func formatText(out *output.Writer, queryText string, resp *search.Response) error {
	if resp.Reason != "" {
		out.Status("", resp.Reason)
		return nil
	}
	if len(resp.Results) == 0 {
		out.Statusf("", "No results found for %q", queryText)
		return nil
	}

	out.Statusf("🔍", "Found %d results for %q (%s, %dms):",
		resp.Total, queryText, resp.Mode, resp.Stats.TookMS)
	out.Newline()

	for i, r := range resp.Results {
		line := fmt.Sprintf("%d. [%s] %s (score: %.3f)", i+1, r.Type, r.Title, r.Score)
		if r.FuzzyScore != nil {
			line += fmt.Sprintf(" (similarity: %.0f)", *r.FuzzyScore)
		}
		out.Status("", line)
		if r.Preview != "" {
			out.Status("", "   "+r.Preview)
		}
		if len(r.Tags) > 0 {
			out.Status("", "   tags: "+strings.Join(r.Tags, ", "))
		}
		out.Newline()
	}
	return nil
}
