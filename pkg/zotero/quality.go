package zotero

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bluemountains/harvest/pkg/pagination"
	"github.com/bluemountains/harvest/pkg/provenance"
)

// QualityItem identifies one item flagged by the quality analysis.
type QualityItem struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	ItemType string `json:"item_type,omitempty"`

	// NumChildren is set for attachment-count findings.
	NumChildren int `json:"num_children,omitempty"`
}

// QualityIssues groups items needing curatorial attention before
// publication.
type QualityIssues struct {
	// Duplicates are items sharing a title (case-insensitive) with at
	// least one other item. Same headline on different dates is
	// legitimate; same article entered twice is not.
	Duplicates []QualityItem `json:"duplicates"`

	// NonPrimarySources are top-level notes, annotations, and
	// attachments. These usually belong under a parent item.
	NonPrimarySources []QualityItem `json:"non_primary_sources"`

	// MultipleAttachments are items with more than one child; they may
	// bundle distinct sources under one record.
	MultipleAttachments []QualityItem `json:"multiple_attachments"`

	// NoAttachments are items with no children at all, so no source
	// document backs them.
	NoAttachments []QualityItem `json:"no_attachments"`
}

// AnalyzeQuality inspects fetched items for duplicate titles, top-level
// non-primary records, and attachment-count anomalies. Child counts come
// from each item's meta.numChildren, so no extra requests are needed.
func AnalyzeQuality(items []pagination.Item) QualityIssues {
	var issues QualityIssues

	titleMap := make(map[string][]QualityItem)

	for _, item := range items {
		key, _ := item["key"].(string)
		data, _ := item["data"].(map[string]any)

		itemType, _ := data["itemType"].(string)
		if itemType == "" {
			itemType = "unknown"
		}
		title := "[No Title]"
		if t, ok := data["title"].(string); ok && t != "" {
			title = t
		}

		entry := QualityItem{Key: key, Title: title, ItemType: itemType}
		titleMap[strings.ToLower(title)] = append(titleMap[strings.ToLower(title)], entry)

		switch itemType {
		case "note", "annotation", "attachment":
			issues.NonPrimarySources = append(issues.NonPrimarySources, entry)
		}

		numChildren := childCount(item)
		switch {
		case numChildren > 1:
			issues.MultipleAttachments = append(issues.MultipleAttachments,
				QualityItem{Key: key, Title: title, NumChildren: numChildren})
		case numChildren == 0:
			issues.NoAttachments = append(issues.NoAttachments,
				QualityItem{Key: key, Title: title})
		}
	}

	titles := make([]string, 0, len(titleMap))
	for t := range titleMap {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	for _, t := range titles {
		if group := titleMap[t]; len(group) > 1 {
			issues.Duplicates = append(issues.Duplicates, group...)
		}
	}

	return issues
}

// childCount reads meta.numChildren, tolerating the number showing up as
// either a JSON float or an int.
func childCount(item pagination.Item) int {
	meta, _ := item["meta"].(map[string]any)
	switch n := meta["numChildren"].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// QualityReport is the persisted quality analysis.
type QualityReport struct {
	Metadata provenance.Record `json:"metadata"`
	Issues   QualityIssues     `json:"issues"`
}

// Render produces the curator-facing markdown summary of the issues.
func (r *QualityReport) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Data Quality Issues Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n", r.Metadata.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Source:** %s\n\n", r.Metadata.SourceID)
	b.WriteString("Items requiring attention before tagging and publication.\n\n")

	section := func(heading, note string, items []QualityItem) {
		fmt.Fprintf(&b, "## %s\n\n**Count:** %d\n\n%s\n\n", heading, len(items), note)
		for _, it := range top(items, 30) {
			line := fmt.Sprintf("- `%s` %s", it.Key, it.Title)
			if it.ItemType != "" {
				line += fmt.Sprintf(" (%s)", it.ItemType)
			}
			if it.NumChildren > 0 {
				line += fmt.Sprintf(" [%d children]", it.NumChildren)
			}
			b.WriteString(line + "\n")
		}
		if len(items) > 30 {
			fmt.Fprintf(&b, "- ... and %d more\n", len(items)-30)
		}
		b.WriteString("\n")
	}

	section("1. Duplicate Titles",
		"Identical titles may be duplicate entries, or different articles sharing a headline.",
		r.Issues.Duplicates)
	section("2. Non-Primary Sources",
		"Top-level notes, annotations, and attachments that usually belong under a parent item.",
		r.Issues.NonPrimarySources)
	section("3. Multiple Attachments",
		"Items with several children; distinct sources may be bundled under one record.",
		r.Issues.MultipleAttachments)
	section("4. No Attachments",
		"Items with no source document attached.",
		r.Issues.NoAttachments)

	return b.String()
}

// SaveMarkdown writes the rendered report.
func (r *QualityReport) SaveMarkdown(path string) error {
	if err := os.WriteFile(path, []byte(r.Render()), 0o644); err != nil {
		return fmt.Errorf("write quality report: %w", err)
	}
	return nil
}

// Attachment pattern categories for items with multiple children.
const (
	PatternMultiplePDFs  = "multiple_pdfs"
	PatternPDFPlusNotes  = "pdf_plus_notes"
	PatternMultipleNotes = "multiple_notes"
	PatternMixedContent  = "mixed_content"
	PatternUncertain     = "uncertain"
)

// AttachmentPattern is the suggested handling for one parent item's
// children.
type AttachmentPattern struct {
	Category  string
	Reasoning string
	Action    string
}

// CategorizeAttachments classifies an item's children so curators can
// prioritize review. Multiple PDFs with no extraction notes rank highest:
// they most often hide distinct sources filed under one record.
func CategorizeAttachments(children []pagination.Item) AttachmentPattern {
	var pdfs, notes, attachments int
	for _, child := range children {
		data, _ := child["data"].(map[string]any)
		itemType, _ := data["itemType"].(string)
		contentType, _ := data["contentType"].(string)

		if contentType == "application/pdf" {
			pdfs++
		}
		switch itemType {
		case "note":
			notes++
		case "attachment":
			attachments++
		}
	}

	switch {
	case pdfs >= 2 && notes == 0:
		return AttachmentPattern{
			Category:  PatternMultiplePDFs,
			Reasoning: fmt.Sprintf("Has %d PDF files with no notes. May be distinct sources combined.", pdfs),
			Action:    "HIGH PRIORITY - Review if these are separate articles",
		}
	case pdfs >= 1 && notes >= 1:
		return AttachmentPattern{
			Category:  PatternPDFPlusNotes,
			Reasoning: fmt.Sprintf("Has %d PDF(s) and %d note(s). Likely text extraction.", pdfs, notes),
			Action:    "LOW PRIORITY - Probably legitimate structure",
		}
	case pdfs == 0 && notes >= 2:
		return AttachmentPattern{
			Category:  PatternMultipleNotes,
			Reasoning: fmt.Sprintf("Has %d notes with no PDFs. May be transcribed text sections.", notes),
			Action:    "REVIEW - Check if notes should be consolidated",
		}
	case attachments > pdfs+notes:
		return AttachmentPattern{
			Category:  PatternMixedContent,
			Reasoning: fmt.Sprintf("Has mixed attachment types: %d total attachments.", attachments),
			Action:    "REVIEW - Check attachment types and purposes",
		}
	default:
		return AttachmentPattern{
			Category:  PatternUncertain,
			Reasoning: "Pattern unclear from metadata alone.",
			Action:    "REVIEW - Manual inspection required",
		}
	}
}
