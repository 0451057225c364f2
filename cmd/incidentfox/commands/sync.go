package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/incidentfox/incidentfox/internal/catalog"
	"github.com/incidentfox/incidentfox/internal/services"
)

var syncDryRun bool

var syncCatalogCmd = &cobra.Command{
	Use:   "sync-catalog",
	Short: "Merge pending discoveries into .incidentfox.yaml",
	Long: `Merge discovered services, dependencies and suggested known issues into the
service catalog. Existing entries and their values are kept; only missing
services, fields, dependencies and known issues are added. Comments in the
file are preserved. Merged discoveries are marked synced.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return syncCatalog(cmd, a, syncDryRun)
	},
}

func init() {
	syncCatalogCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Show the merged catalog without writing it or marking anything synced")
}

func syncCatalog(cmd *cobra.Command, a *app, dryRun bool) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	pending, err := a.discoveries.Pending(ctx)
	if err != nil {
		return err
	}
	if pending.TotalPending == 0 {
		fmt.Fprintln(out, "No pending discoveries")
		return nil
	}

	path := a.catalog.WritePath()
	doc, err := catalog.ReadDocument(path)
	if err != nil {
		return err
	}
	result, err := doc.Merge(pending.Services.Items, pending.Dependencies.Items, pending.KnownIssues.Items)
	if err != nil {
		return fmt.Errorf("cannot merge discoveries into %s: %w", path, err)
	}

	for _, change := range result.Changes {
		fmt.Fprintf(out, "  + %s\n", change)
	}
	if !result.Changed() {
		fmt.Fprintln(out, "Catalog already contains every pending discovery")
	}

	if dryRun {
		data, err := doc.Bytes()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n--- %s (dry run) ---\n%s", path, data)
		return nil
	}

	if result.Changed() {
		if err := doc.WriteFile(path); err != nil {
			return err
		}
		a.catalog.Invalidate()
		log.Info().Str("path", path).Int("changes", len(result.Changes)).Msg("Catalog updated")
	}

	counts, err := a.discoveries.MarkSynced(ctx, services.SyncRequest{
		ServiceIDs:    result.ServiceIDs,
		DependencyIDs: result.DependencyIDs,
		KnownIssueIDs: result.KnownIssueIDs,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Synced %d discoveries to %s\n", counts.Total(), path)
	return nil
}
