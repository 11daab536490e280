package zotero

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bluemountains/harvest/pkg/pagination"
	"github.com/bluemountains/harvest/pkg/provenance"
)

// TagUsage records every use of one tag across the library. The item keys
// and titles are the tag's provenance: they let a curator verify counts and
// trace a tag back to the records that carry it.
type TagUsage struct {
	// Count is the number of items carrying this tag.
	Count int `json:"count"`

	// Items holds the keys of those items, in retrieval order.
	Items []string `json:"items"`

	// ItemTitles holds the matching titles for human readability.
	ItemTitles []string `json:"item_titles"`
}

// TagStats summarizes tag coverage across the fetched items.
type TagStats struct {
	TotalItems           int     `json:"total_items"`
	ItemsWithTags        int     `json:"items_with_tags"`
	ItemsWithoutTags     int     `json:"items_without_tags"`
	UniqueTags           int     `json:"unique_tags"`
	TotalTagApplications int     `json:"total_tag_applications"`
	AvgTagsPerItem       float64 `json:"avg_tags_per_item"`
	MaxTagsPerItem       int     `json:"max_tags_per_item"`
	MinTagsPerItem       int     `json:"min_tags_per_item"`

	// UntaggedItemKeys lists items lacking subject metadata; they are
	// hard to discover and need curatorial attention.
	UntaggedItemKeys []string `json:"untagged_item_keys"`
}

// ExtractTags walks fetched items and builds per-tag usage with item-level
// provenance. Items without a title are recorded as "[No Title]" (notes and
// attachments may lack one).
func ExtractTags(items []pagination.Item) (map[string]*TagUsage, TagStats) {
	tags := make(map[string]*TagUsage)
	stats := TagStats{TotalItems: len(items)}

	var tagsPerItem []int

	for _, item := range items {
		key, _ := item["key"].(string)

		data, _ := item["data"].(map[string]any)
		title := "[No Title]"
		if t, ok := data["title"].(string); ok && t != "" {
			title = t
		}

		rawTags, _ := data["tags"].([]any)

		applied := 0
		for _, raw := range rawTags {
			tagObj, _ := raw.(map[string]any)
			name, _ := tagObj["tag"].(string)
			if name == "" {
				continue
			}

			usage, ok := tags[name]
			if !ok {
				usage = &TagUsage{}
				tags[name] = usage
			}
			usage.Count++
			usage.Items = append(usage.Items, key)
			usage.ItemTitles = append(usage.ItemTitles, title)

			stats.TotalTagApplications++
			applied++
		}

		if applied > 0 {
			stats.ItemsWithTags++
			tagsPerItem = append(tagsPerItem, applied)
		} else {
			stats.ItemsWithoutTags++
			stats.UntaggedItemKeys = append(stats.UntaggedItemKeys, key)
		}
	}

	stats.UniqueTags = len(tags)

	if len(tagsPerItem) > 0 {
		sum := 0
		stats.MinTagsPerItem = tagsPerItem[0]
		for _, n := range tagsPerItem {
			sum += n
			if n > stats.MaxTagsPerItem {
				stats.MaxTagsPerItem = n
			}
			if n < stats.MinTagsPerItem {
				stats.MinTagsPerItem = n
			}
		}
		stats.AvgTagsPerItem = float64(sum) / float64(len(tagsPerItem))
	}

	return tags, stats
}

// TagReport is the persisted tag extraction: provenance first, then
// statistics, then the per-tag usage data.
type TagReport struct {
	Metadata   provenance.Record    `json:"metadata"`
	Statistics TagStats             `json:"statistics"`
	Tags       map[string]*TagUsage `json:"tags"`
}

// Save writes the report as an indented UTF-8 JSON document.
func (r *TagReport) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tag report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write tag report: %w", err)
	}

	return nil
}
