package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/incidentfox/incidentfox/internal/services"
	"github.com/incidentfox/incidentfox/internal/utils"
)

var (
	statsJSON   bool
	pendingJSON bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show investigation history statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.investigations.Statistics(cmd.Context())
		if err != nil {
			return err
		}
		if statsJSON {
			return writeJSON(cmd.OutOrStdout(), stats)
		}
		printStatistics(cmd.OutOrStdout(), stats)
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List discoveries not yet synced to the service catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		pending, err := a.discoveries.Pending(cmd.Context())
		if err != nil {
			return err
		}
		if pendingJSON {
			return writeJSON(cmd.OutOrStdout(), pending)
		}
		printPending(cmd.OutOrStdout(), pending)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print JSON instead of text")
	pendingCmd.Flags().BoolVar(&pendingJSON, "json", false, "Print JSON instead of text")
}

func printStatistics(w io.Writer, s *services.Statistics) {
	fmt.Fprintf(w, "Investigations: %s\n", utils.FormatNumber(s.TotalInvestigations))
	for _, status := range slices.Sorted(maps.Keys(s.ByStatus)) {
		fmt.Fprintf(w, "  %-12s %s\n", status, utils.FormatNumber(s.ByStatus[status]))
	}
	fmt.Fprintf(w, "Known patterns: %s\n", utils.FormatNumber(s.KnownPatterns))

	if len(s.TopServices) > 0 {
		fmt.Fprintln(w, "\nTop services:")
		for _, sc := range s.TopServices {
			fmt.Fprintf(w, "  %-24s %s\n", sc.Service, utils.FormatNumber(sc.Count))
		}
	}
	if len(s.RecentInvestigations) > 0 {
		fmt.Fprintln(w, "\nRecent:")
		for _, inv := range s.RecentInvestigations {
			fmt.Fprintf(w, "  %s  %s  %-11s %s  %s\n",
				inv.ID,
				inv.StartedAt.Format("2006-01-02 15:04"),
				inv.Status,
				deref(inv.Service, "-"),
				utils.TruncateText(deref(inv.Summary, ""), 60))
		}
	}
}

func printPending(w io.Writer, p *services.PendingDiscoveries) {
	if p.TotalPending == 0 {
		fmt.Fprintln(w, p.Hint)
		return
	}

	if p.Services.Count > 0 {
		fmt.Fprintf(w, "Services (%d):\n", p.Services.Count)
		for _, svc := range p.Services.Items {
			fmt.Fprintf(w, "  %s  %s", svc.ID, svc.Name)
			if svc.Namespace != nil {
				fmt.Fprintf(w, " (namespace %s)", *svc.Namespace)
			}
			if len(svc.Deployments) > 0 {
				fmt.Fprintf(w, " deployments: %s", strings.Join(svc.Deployments, ", "))
			}
			fmt.Fprintln(w)
		}
	}
	if p.Dependencies.Count > 0 {
		fmt.Fprintf(w, "Dependencies (%d):\n", p.Dependencies.Count)
		for _, dep := range p.Dependencies.Items {
			fmt.Fprintf(w, "  %s  %s -> %s (confidence %.2f)\n", dep.ID, dep.FromService, dep.ToService, dep.Confidence)
		}
	}
	if p.KnownIssues.Count > 0 {
		fmt.Fprintf(w, "Known issues (%d):\n", p.KnownIssues.Count)
		for _, issue := range p.KnownIssues.Items {
			fmt.Fprintf(w, "  %s  %q seen %d times: %s\n", issue.ID, issue.Pattern, issue.Occurrences, issue.Solution)
		}
	}
	fmt.Fprintf(w, "\n%s\n", p.Hint)
}
