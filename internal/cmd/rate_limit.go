package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/waypost/waypost/internal/output"
	"github.com/waypost/waypost/internal/server/handlers"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect outbound rate limit state",
}

var rateLimitShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show live admission state from a running gateway",
	Long: `Query the /limits endpoint of a running gateway and show the current
usage, window resets, and backoff gates for every guarded upstream endpoint.`,
	RunE: runRateLimitShow,
}

var rateLimitPolicyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show the configured outbound limit policy",
	RunE:  runRateLimitPolicy,
}

func init() {
	rateLimitShowCmd.Flags().String("server-url", "", "Base URL of a running gateway (default from server config)")
	rateLimitShowCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json")
	rateLimitPolicyCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json")

	rateLimitCmd.AddCommand(rateLimitShowCmd)
	rateLimitCmd.AddCommand(rateLimitPolicyCmd)
	rootCmd.AddCommand(rateLimitCmd)
}

func runRateLimitShow(cmd *cobra.Command, _ []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}

	baseURL, _ := cmd.Flags().GetString("server-url")
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", viper.GetString("server.host"), viper.GetInt("server.port"))
	}

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, baseURL+"/limits", nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("query %s/limits: %w (is the gateway running?)", baseURL, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query %s/limits: unexpected status %d", baseURL, resp.StatusCode)
	}

	var endpoints []handlers.EndpointLimits
	if err := json.NewDecoder(resp.Body).Decode(&endpoints); err != nil {
		return fmt.Errorf("decode limits response: %w", err)
	}

	rows := make([]output.LimitStatus, 0, len(endpoints))
	for _, endpoint := range endpoints {
		for _, limit := range endpoint.Limits {
			rows = append(rows, output.LimitStatus{
				Endpoint:     endpoint.Endpoint,
				Name:         limit.Name,
				Limit:        limit.Limit,
				Window:       limit.Window,
				Used:         limit.Used,
				NextReset:    limit.NextReset,
				BackoffUntil: endpoint.BackoffUntil,
			})
		}
	}

	rendered, err := output.FormatLimits(format, rows)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func runRateLimitPolicy(cmd *cobra.Command, _ []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}

	policy, err := loadPolicy()
	if err != nil {
		return err
	}

	var rows []output.LimitStatus
	for _, endpoint := range policy.Endpoints {
		for _, limit := range endpoint.Limits {
			rows = append(rows, output.LimitStatus{
				Endpoint: endpoint.Name,
				Limit:    limit.Limit,
				Window:   limit.Window.Duration().String(),
			})
		}
	}

	rendered, err := output.FormatLimits(format, rows)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
