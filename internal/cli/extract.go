package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bluemountains/harvest/pkg/client"
	"github.com/bluemountains/harvest/pkg/pagination"
	"github.com/bluemountains/harvest/pkg/provenance"
	"github.com/bluemountains/harvest/pkg/zotero"
	"github.com/spf13/cobra"
)

var (
	extractMaxItems int
	extractResume   int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fetch all library items and extract their tags",
	Long: "extract pages through every item in the configured group library, " +
		"writes a provenance-stamped snapshot of the raw items, and derives a " +
		"tag report with per-tag item provenance.",
	RunE: extractAction,
}

func init() {
	extractCmd.Flags().IntVar(&extractMaxItems, "max-items", 0, "cap on fetched items (0 = all)")
	extractCmd.Flags().IntVar(&extractResume, "resume-from", 0, "offset cursor to resume an interrupted fetch from")
	rootCmd.AddCommand(extractCmd)
}

func extractAction(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if cfg.Zotero.GroupID == "" {
		return fmt.Errorf("zotero.group_id is not configured")
	}

	apiKey := cfg.ZoteroAPIKey()
	respCache, closeCache, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	zot, err := zotero.New(zotero.Config{
		BaseURL: cfg.Zotero.BaseURL,
		GroupID: cfg.Zotero.GroupID,
		APIKey:  apiKey,
		Limiter: limiterFor(apiKey, "zotero"),
		Cache:   respCache,
	})
	if err != nil {
		return err
	}

	total, err := zot.NumItems(ctx)
	if err != nil {
		return surfaceError(err)
	}
	fmt.Printf("Library reports %d items\n", total)

	result, err := zot.Items(ctx, pagination.Config{
		MaxItems:    extractMaxItems,
		StartCursor: extractResume,
	})
	if err != nil {
		capped, ok := requestedCapReached(err, extractMaxItems)
		if !ok {
			return surfaceError(err)
		}
		// The operator asked for the cap, so hitting it is the answer,
		// not a failure.
		fmt.Printf("Stopped at the requested cap of %d items\n", extractMaxItems)
		result = capped
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	recorder := provenance.NewRecorder("harvest", client.Version, loc)
	record := recorder.Record(cfg.Zotero.GroupID, zot.ItemsEndpoint(), len(result.Items))

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	snapshotPath := filepath.Join(cfg.Data.Dir, "raw_items.json")
	snapshot := provenance.NewSnapshot(record, "items", result.Items)
	if err := snapshot.Save(snapshotPath); err != nil {
		return err
	}
	fmt.Printf("Saved %d items to %s\n", len(result.Items), snapshotPath)

	tags, stats := zotero.ExtractTags(result.Items)
	reportPath := filepath.Join(cfg.Data.Dir, "raw_tags.json")
	report := &zotero.TagReport{
		Metadata:   record,
		Statistics: stats,
		Tags:       tags,
	}
	if err := report.Save(reportPath); err != nil {
		return err
	}

	fmt.Printf("Extracted %d unique tags (%d applications) to %s\n",
		stats.UniqueTags, stats.TotalTagApplications, reportPath)
	fmt.Printf("  Items with tags: %d\n", stats.ItemsWithTags)
	fmt.Printf("  Items without tags: %d\n", stats.ItemsWithoutTags)

	return nil
}

// requestedCapReached reports whether a fetch failure is really an
// operator-requested --max-items cap being hit, and if so converts the
// partial progress into a usable result. Guard caps the operator never
// asked for still surface as errors.
func requestedCapReached(err error, maxItems int) (*pagination.Result, bool) {
	if maxItems <= 0 || !errors.Is(err, pagination.ErrLimitExceeded) {
		return nil, false
	}
	var fetchErr *pagination.FetchError
	if !errors.As(err, &fetchErr) {
		return nil, false
	}
	return &pagination.Result{Items: fetchErr.Items, Pages: fetchErr.Pages}, true
}

// surfaceError is the operator boundary for fetch failures: fatal errors
// come out with their remediation text, aborted fetches report how much
// partial progress was lost.
func surfaceError(err error) error {
	var fetchErr *pagination.FetchError
	if errors.As(err, &fetchErr) {
		return fmt.Errorf("%d pages (%d items) fetched before failure: %w",
			fetchErr.Pages, len(fetchErr.Items), fetchErr.Err)
	}
	return err
}
