package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bluemountains/harvest/pkg/provenance"
	"github.com/bluemountains/harvest/pkg/zotero"
	"github.com/spf13/cobra"
)

var analyzeThreshold int

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze extracted tags for consolidation and quality issues",
	Long: "analyze reads the snapshots written by extract and derives the " +
		"curatorial views: similar tags that may need merging, candidate " +
		"broader/narrower hierarchies, tag co-occurrence, a frequency table, " +
		"and a data quality report (duplicates, stray non-primary records, " +
		"attachment anomalies).",
	RunE: analyzeAction,
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeThreshold, "similarity-threshold",
		zotero.DefaultSimilarityThreshold, "minimum similarity score (0-100) for reporting tag pairs")
	rootCmd.AddCommand(analyzeCmd)
}

func analyzeAction(cmd *cobra.Command, _ []string) error {
	report, err := loadTagReport(filepath.Join(cfg.Data.Dir, "raw_tags.json"))
	if err != nil {
		return err
	}
	snapshot, err := loadSnapshot(filepath.Join(cfg.Data.Dir, "raw_items.json"))
	if err != nil {
		return err
	}

	pairs := zotero.FindSimilarTags(report.Tags, analyzeThreshold)
	hierarchies := zotero.DetectHierarchies(report.Tags)
	network := zotero.Cooccurrences(report.Tags)
	frequencies := zotero.FrequencyTable(report.Tags)
	issues := zotero.AnalyzeQuality(snapshot.Items)

	fmt.Printf("Analyzed %d tags across %d items\n", len(report.Tags), len(snapshot.Items))
	fmt.Printf("  Similar pairs (threshold %d): %d\n", analyzeThreshold, len(pairs))
	fmt.Printf("  Hierarchy candidates: %d\n", len(hierarchies))
	fmt.Printf("  Co-occurring pairs: %d\n", len(network))
	fmt.Printf("  Duplicate-title items: %d\n", len(issues.Duplicates))

	reportsDir := filepath.Join(cfg.Data.Dir, "reports")
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return fmt.Errorf("create reports dir: %w", err)
	}

	if err := zotero.SaveSimilarTagsCSV(pairs, filepath.Join(cfg.Data.Dir, "similar_tags.csv")); err != nil {
		return err
	}
	if err := zotero.SaveFrequencyCSV(frequencies, filepath.Join(cfg.Data.Dir, "tag_frequency.csv")); err != nil {
		return err
	}

	net := &zotero.TagNetwork{
		GeneratedAt:   report.Metadata.GeneratedAt,
		Cooccurrences: network,
	}
	if err := net.Save(filepath.Join(cfg.Data.Dir, "tag_network.json")); err != nil {
		return err
	}

	analysis := &zotero.AnalysisReport{
		Metadata:     report.Metadata,
		SimilarPairs: pairs,
		Hierarchies:  hierarchies,
		Network:      network,
		Frequencies:  frequencies,
	}
	if err := analysis.SaveMarkdown(filepath.Join(reportsDir, "tag_analysis.md")); err != nil {
		return err
	}

	quality := &zotero.QualityReport{Metadata: snapshot.Metadata, Issues: issues}
	if err := quality.SaveMarkdown(filepath.Join(reportsDir, "data_quality_issues.md")); err != nil {
		return err
	}

	fmt.Printf("Wrote analysis outputs under %s\n", cfg.Data.Dir)
	return nil
}

func loadTagReport(path string) (*zotero.TagReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tag report (run extract first): %w", err)
	}
	var report zotero.TagReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse tag report %s: %w", path, err)
	}
	return &report, nil
}

func loadSnapshot(path string) (*provenance.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items snapshot (run extract first): %w", err)
	}
	var snapshot provenance.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse items snapshot %s: %w", path, err)
	}
	return &snapshot, nil
}
