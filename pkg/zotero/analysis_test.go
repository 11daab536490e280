package zotero

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bluemountains/harvest/pkg/provenance"
)

func usage(count int, items ...string) *TagUsage {
	return &TagUsage{Count: count, Items: items}
}

func TestFindSimilarTagsSpellingVariant(t *testing.T) {
	tags := map[string]*TagUsage{
		"Mining":  usage(10),
		"Minning": usage(3),
	}

	pairs := FindSimilarTags(tags, 0)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}

	p := pairs[0]
	// One edit over seven characters: 100*(1-1/7) rounds to 86.
	if p.Similarity != 86 {
		t.Errorf("similarity = %d, want 86", p.Similarity)
	}
	if p.SuggestedMerge != "Mining" {
		t.Errorf("suggested merge = %q, want the higher-count tag", p.SuggestedMerge)
	}
	if p.Count1 != 10 || p.Count2 != 3 {
		t.Errorf("counts = %d/%d, want 10/3", p.Count1, p.Count2)
	}
}

func TestFindSimilarTagsContainment(t *testing.T) {
	tags := map[string]*TagUsage{
		"Katoomba":       usage(5),
		"Katoomba Falls": usage(2),
	}

	pairs := FindSimilarTags(tags, 80)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	// The shorter name matches a window of the longer exactly.
	if pairs[0].Similarity != 100 {
		t.Errorf("similarity = %d, want 100", pairs[0].Similarity)
	}
	if pairs[0].SuggestedMerge != "Katoomba" {
		t.Errorf("suggested merge = %q, want Katoomba", pairs[0].SuggestedMerge)
	}
}

func TestFindSimilarTagsWordOrder(t *testing.T) {
	tags := map[string]*TagUsage{
		"Falls Katoomba": usage(1),
		"Katoomba Falls": usage(4),
	}

	pairs := FindSimilarTags(tags, 95)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	if pairs[0].Similarity != 100 {
		t.Errorf("token-sorted similarity = %d, want 100", pairs[0].Similarity)
	}
}

func TestFindSimilarTagsUnrelated(t *testing.T) {
	tags := map[string]*TagUsage{
		"Mining":   usage(10),
		"Railways": usage(7),
	}

	if pairs := FindSimilarTags(tags, 80); len(pairs) != 0 {
		t.Errorf("pairs = %v, want none", pairs)
	}
}

func TestDetectHierarchies(t *testing.T) {
	tags := map[string]*TagUsage{
		"Katoomba":       usage(5),
		"Katoomba Falls": usage(2),
		"Mining":         usage(10),
	}

	relations := DetectHierarchies(tags)
	if len(relations) != 1 {
		t.Fatalf("relations = %d, want 1", len(relations))
	}

	h := relations[0]
	if h.BroaderTerm != "Katoomba Falls" || h.NarrowerTerm != "Katoomba" {
		t.Errorf("relation = %s > %s, want Katoomba Falls > Katoomba", h.BroaderTerm, h.NarrowerTerm)
	}
	if h.BroaderCount != 2 || h.NarrowerCount != 5 {
		t.Errorf("counts = %d/%d, want 2/5", h.BroaderCount, h.NarrowerCount)
	}
}

func TestCooccurrences(t *testing.T) {
	tags := map[string]*TagUsage{
		"Mining":   usage(3, "A", "B", "C"),
		"Katoomba": usage(2, "A", "B"),
		"Women":    usage(1, "A"),
	}

	list := Cooccurrences(tags)
	if len(list) != 3 {
		t.Fatalf("pairs = %d, want 3", len(list))
	}

	// Item A carries all three tags, item B two, item C one.
	first := list[0]
	if first.Tag1 != "Katoomba" || first.Tag2 != "Mining" || first.Count != 2 {
		t.Errorf("top pair = %s/%s x%d, want Katoomba/Mining x2", first.Tag1, first.Tag2, first.Count)
	}
	if first.Tag1Total != 2 || first.Tag2Total != 3 {
		t.Errorf("totals = %d/%d, want 2/3", first.Tag1Total, first.Tag2Total)
	}

	// Count ties sort alphabetically.
	if list[1].Tag2 != "Women" || list[1].Tag1 != "Katoomba" {
		t.Errorf("second pair = %s/%s, want Katoomba/Women", list[1].Tag1, list[1].Tag2)
	}
	if list[2].Tag1 != "Mining" || list[2].Tag2 != "Women" {
		t.Errorf("third pair = %s/%s, want Mining/Women", list[2].Tag1, list[2].Tag2)
	}
}

func TestFrequencyTable(t *testing.T) {
	tags := map[string]*TagUsage{
		"Mining":   usage(2),
		"Katoomba": usage(1),
		"Women":    usage(1),
	}

	rows := FrequencyTable(tags)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Tag != "Mining" || rows[0].Percentage != 50.0 {
		t.Errorf("top row = %s %.2f%%, want Mining 50.00%%", rows[0].Tag, rows[0].Percentage)
	}
	if rows[1].Tag != "Katoomba" || rows[2].Tag != "Women" {
		t.Errorf("tie order = %s, %s, want alphabetical", rows[1].Tag, rows[2].Tag)
	}
	if rows[1].Percentage != 25.0 {
		t.Errorf("percentage = %.2f, want 25.00", rows[1].Percentage)
	}
}

func TestFrequencyTableEmpty(t *testing.T) {
	if rows := FrequencyTable(map[string]*TagUsage{}); len(rows) != 0 {
		t.Errorf("rows = %v, want none", rows)
	}
}

func TestSaveSimilarTagsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "similar_tags.csv")
	pairs := []SimilarPair{
		{Tag1: "Mining", Tag2: "Minning", Count1: 10, Count2: 3, Similarity: 86, SuggestedMerge: "Mining"},
	}

	if err := SaveSimilarTagsCSV(pairs, path); err != nil {
		t.Fatalf("SaveSimilarTagsCSV() error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want header plus one row", len(records))
	}
	if records[0][0] != "tag1" || records[0][5] != "suggested_merge" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][4] != "86" || records[1][5] != "Mining" {
		t.Errorf("row = %v", records[1])
	}
}

func TestTagNetworkSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tag_network.json")
	net := &TagNetwork{
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Cooccurrences: []Cooccurrence{
			{Tag1: "Katoomba", Tag2: "Mining", Count: 2, Tag1Total: 2, Tag2Total: 3},
		},
	}

	if err := net.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read network: %v", err)
	}
	var got TagNetwork
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("parse network: %v", err)
	}
	if len(got.Cooccurrences) != 1 || got.Cooccurrences[0].Count != 2 {
		t.Errorf("cooccurrences = %v", got.Cooccurrences)
	}
	if !got.GeneratedAt.Equal(net.GeneratedAt) {
		t.Errorf("generated_at = %v, want %v", got.GeneratedAt, net.GeneratedAt)
	}
}

func TestAnalysisReportRender(t *testing.T) {
	report := &AnalysisReport{
		Metadata: provenance.Record{
			GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			SourceID:    "2258643",
		},
		SimilarPairs: []SimilarPair{
			{Tag1: "Mining", Tag2: "Minning", Count1: 10, Count2: 3, Similarity: 86, SuggestedMerge: "Mining"},
		},
		Frequencies: []TagFrequency{
			{Tag: "Mining", Count: 10, Percentage: 76.92},
			{Tag: "Minning", Count: 3, Percentage: 23.08},
		},
	}

	out := report.Render()
	for _, want := range []string{
		"# Tag Analysis Report",
		"**Source:** 2258643",
		"| Mining | Minning | 86 | 10 | 3 | Mining |",
		"**Singleton tags:** 0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q", want)
		}
	}
}
