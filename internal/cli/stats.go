package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wms-platform/roadmap-service/internal/application"
)

const defaultAPI = "http://localhost:8020"

func newStatsCmd(st *state) *cobra.Command {
	var (
		recent  int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show generation statistics from a running roadmap-service",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := fetchStats(st.v.GetString("api"), recent, timeout)
			if err != nil {
				return err
			}
			return printStats(cmd, stats)
		},
	}

	cmd.Flags().String("api", defaultAPI, "roadmap-service base URL")
	cmd.Flags().IntVar(&recent, "recent", application.DefaultRecentGenerations, "number of recent generations")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	_ = st.v.BindPFlag("api", cmd.Flags().Lookup("api"))
	_ = st.v.BindEnv("api", "ROADMAP_API")

	return cmd
}

func fetchStats(base string, recent int, timeout time.Duration) (*application.GenerationStatsDTO, error) {
	endpoint, err := url.JoinPath(strings.TrimRight(base, "/"), "/api/v1/generations/stats")
	if err != nil {
		return nil, fmt.Errorf("invalid --api %q: %w", base, err)
	}
	endpoint += "?recent=" + strconv.Itoa(recent)

	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to reach roadmap-service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("roadmap-service returned %d %s: %s", resp.StatusCode, apiErr.Code, apiErr.Message)
	}

	var stats application.GenerationStatsDTO
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	return &stats, nil
}

func printStats(cmd *cobra.Command, stats *application.GenerationStatsDTO) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "generations: %d\ntasks:       %d\naverage:     %.1f\n\n",
		stats.TotalGenerations, stats.TotalTasksGenerated, stats.AverageTasksPerGeneration)

	strategies := make([]string, 0, len(stats.StrategyUsage))
	for s := range stats.StrategyUsage {
		strategies = append(strategies, s)
	}
	sort.Strings(strategies)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tRUNS")
	for _, s := range strategies {
		fmt.Fprintf(w, "%s\t%d\n", s, stats.StrategyUsage[s])
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "GENERATION\tPROJECT\tSTRATEGY\tTASKS\tUNASSIGNED\tAT")
	for _, r := range stats.Recent {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.GenerationID, r.ProjectID, r.Strategy, r.TaskCount, r.UnassignedCount, r.Timestamp.Format(time.RFC3339))
	}
	return w.Flush()
}
