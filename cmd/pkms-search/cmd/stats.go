package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashishacharya123/PKMS-sub000/internal/search"
	"github.com/ashishacharya123/PKMS-sub000/internal/store"
	"github.com/ashishacharya123/PKMS-sub000/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index and query statistics",
		Long: `Display document counts per content type and query telemetry:
search mode distribution, top query terms, zero-result queries and the
latency histogram.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput, days)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days of telemetry to include")

	return cmd
}

// statsOutput is the JSON output format for stats.
type statsOutput struct {
	DocumentCounts      map[store.ContentType]int         `json:"document_counts"`
	TotalQueries        int64                             `json:"total_queries"`
	ModeCounts          map[search.Mode]int64             `json:"mode_counts"`
	TopTerms            []telemetry.TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                          `json:"zero_result_queries"`
	LatencyDistribution map[telemetry.LatencyBucket]int64 `json:"latency_distribution"`
}

func runStats(cmd *cobra.Command, jsonOutput bool, days int) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	counts, err := e.set.Documents().CountByType(cmd.Context())
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	out := &statsOutput{DocumentCounts: counts}

	metricsStore, err := telemetry.NewSQLiteMetricsStore(e.set.Documents().DB())
	if err != nil {
		return err
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	fromDate, toDate := from.Format("2006-01-02"), to.Format("2006-01-02")

	if out.ModeCounts, err = metricsStore.GetModeCounts(fromDate, toDate); err != nil {
		return fmt.Errorf("get mode counts: %w", err)
	}
	for _, n := range out.ModeCounts {
		out.TotalQueries += n
	}
	if out.TopTerms, err = metricsStore.GetTopTerms(10); err != nil {
		return fmt.Errorf("get top terms: %w", err)
	}
	if out.ZeroResultQueries, err = metricsStore.GetZeroResultQueries(10); err != nil {
		return fmt.Errorf("get zero-result queries: %w", err)
	}
	if out.LatencyDistribution, err = metricsStore.GetLatencyCounts(fromDate, toDate); err != nil {
		return fmt.Errorf("get latency counts: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return printStats(cmd, out)
}

func printStats(cmd *cobra.Command, out *statsOutput) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "Index")
	fmt.Fprintln(w, "=====")
	for _, typ := range store.AllTypes() {
		fmt.Fprintf(w, "  %-15s %d\n", typ, out.DocumentCounts[typ])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Queries")
	fmt.Fprintln(w, "=======")
	fmt.Fprintf(w, "Total: %d\n", out.TotalQueries)
	for _, mode := range []search.Mode{search.ModeExact, search.ModeHybrid, search.ModeFuzzy} {
		if n, ok := out.ModeCounts[mode]; ok {
			fmt.Fprintf(w, "  %-8s %d\n", mode, n)
		}
	}
	fmt.Fprintln(w)

	if len(out.TopTerms) > 0 {
		fmt.Fprintln(w, "Top Query Terms:")
		for i, tc := range out.TopTerms {
			fmt.Fprintf(w, "  %d. %s (%d)\n", i+1, tc.Term, tc.Count)
		}
		fmt.Fprintln(w)
	}

	if len(out.ZeroResultQueries) > 0 {
		fmt.Fprintln(w, "Recent Zero-Result Queries:")
		for _, q := range out.ZeroResultQueries {
			fmt.Fprintf(w, "  - %q\n", q)
		}
		fmt.Fprintln(w)
	}

	if len(out.LatencyDistribution) > 0 {
		fmt.Fprintln(w, "Latency Distribution:")
		buckets := []telemetry.LatencyBucket{
			telemetry.BucketP10, telemetry.BucketP50, telemetry.BucketP100,
			telemetry.BucketP500, telemetry.BucketP1000,
		}
		labels := map[telemetry.LatencyBucket]string{
			telemetry.BucketP10:   "<10ms",
			telemetry.BucketP50:   "10-50ms",
			telemetry.BucketP100:  "50-100ms",
			telemetry.BucketP500:  "100-500ms",
			telemetry.BucketP1000: ">=500ms",
		}
		for _, b := range buckets {
			if count, ok := out.LatencyDistribution[b]; ok {
				fmt.Fprintf(w, "  %-10s %d\n", labels[b], count)
			}
		}
	}
	return nil
}
