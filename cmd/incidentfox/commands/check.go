package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/incidentfox/incidentfox/internal/catalog"
	"github.com/incidentfox/incidentfox/internal/services"
	"github.com/incidentfox/incidentfox/internal/utils"
)

var (
	checkService string
	checkLimit   int
	checkJSON    bool
)

var checkCmd = &cobra.Command{
	Use:   "check <error message>",
	Short: "Look up an error in the catalog's known issues and past investigations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		message := strings.Join(args, " ")
		result := checkResult{Query: message, KnownIssues: []catalog.KnownIssueMatch{}}

		c, path, err := a.catalog.Load()
		switch {
		case errors.Is(err, catalog.ErrNotFound):
		case err != nil:
			return err
		default:
			result.Catalog = path
			result.KnownIssues = c.MatchKnownIssues(message)
		}

		result.Similar, err = a.investigations.FindSimilar(cmd.Context(), services.SimilarParams{
			ErrorMessage: message,
			Service:      checkService,
			Limit:        checkLimit,
		})
		if err != nil {
			return err
		}

		if checkJSON {
			return writeJSON(cmd.OutOrStdout(), result)
		}
		printCheck(cmd.OutOrStdout(), result)
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkService, "service", "", "Only consider investigations of this service")
	checkCmd.Flags().IntVar(&checkLimit, "limit", services.DefaultSimilarLimit, "Maximum similar investigations to show")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print JSON instead of text")
}

type checkResult struct {
	Query       string                         `json:"query"`
	Catalog     string                         `json:"catalog,omitempty"`
	KnownIssues []catalog.KnownIssueMatch      `json:"known_issues"`
	Similar     []services.ScoredInvestigation `json:"similar_investigations"`
}

func printCheck(w io.Writer, r checkResult) {
	if r.Catalog == "" {
		fmt.Fprintln(w, "No .incidentfox.yaml found; known issues not checked")
	} else if len(r.KnownIssues) == 0 {
		fmt.Fprintf(w, "No known issue in %s matches\n", r.Catalog)
	} else {
		fmt.Fprintf(w, "Known issues (%d):\n", len(r.KnownIssues))
		for _, m := range r.KnownIssues {
			fmt.Fprintf(w, "  %q\n    cause:    %s\n    solution: %s\n", m.Pattern, m.Cause, m.Solution)
		}
	}

	if len(r.Similar) == 0 {
		fmt.Fprintln(w, "No similar past investigations")
		return
	}
	fmt.Fprintf(w, "Similar investigations (%d):\n", len(r.Similar))
	for _, inv := range r.Similar {
		fmt.Fprintf(w, "  %s  score %-3d %s\n    root cause: %s\n    resolution: %s\n",
			inv.ID,
			inv.Score,
			deref(inv.Service, "-"),
			utils.TruncateText(deref(inv.RootCause, "-"), 100),
			utils.TruncateText(deref(inv.Resolution, "-"), 100))
	}
}
