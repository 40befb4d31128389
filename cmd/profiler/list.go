package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-laravel-webprofiler/profiler"
)

func newListCmd(opts *options) *cobra.Command {
	var (
		criteria profiler.Criteria
		since    time.Duration
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored profiles, newest first",
		Long: `List stored profiles, newest first.

Examples:
  # The ten latest profiles
  profiler list

  # Failed POST requests of the last hour
  profiler list --method POST --status 500 --since 1h

  # Parse with jq
  profiler list --json | jq '.[].token'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, release, err := opts.storage()
			if err != nil {
				return err
			}
			defer release()

			if since > 0 {
				criteria.Start = time.Now().Add(-since)
			}
			found, err := s.Find(cmd.Context(), criteria)
			if err != nil {
				return fmt.Errorf("find profiles: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(found)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TOKEN\tMETHOD\tSTATUS\tURL\tIP\tTIME")
			for _, p := range found {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					p.Token, p.Method, strconv.Itoa(p.StatusCode), p.URL, p.IP, p.Time.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&criteria.IP, "ip", "", "filter by client IP (substring)")
	f.StringVar(&criteria.URL, "url", "", "filter by URL (substring)")
	f.StringVarP(&criteria.Method, "method", "m", "", "filter by HTTP method")
	f.IntVarP(&criteria.StatusCode, "status", "s", 0, "filter by status code")
	f.IntVarP(&criteria.Limit, "limit", "l", profiler.DefaultLimit, "maximum number of profiles")
	f.DurationVar(&since, "since", 0, "only profiles newer than this, e.g. 30m")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
