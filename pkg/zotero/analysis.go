package zotero

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/bluemountains/harvest/pkg/provenance"
)

// DefaultSimilarityThreshold is the minimum score (0-100) at which two tags
// are reported as likely variants of each other.
const DefaultSimilarityThreshold = 80

// SimilarPair records two tags whose names score above the similarity
// threshold. SuggestedMerge is the higher-count tag of the two; merging into
// the more established spelling disturbs fewer items.
type SimilarPair struct {
	Tag1           string `json:"tag1"`
	Tag2           string `json:"tag2"`
	Count1         int    `json:"count1"`
	Count2         int    `json:"count2"`
	Similarity     int    `json:"similarity"`
	SuggestedMerge string `json:"suggested_merge"`
}

// FindSimilarTags scores every tag pair with three metrics (plain edit
// ratio, best-window partial ratio, and token-sort ratio) and keeps pairs
// whose best score reaches the threshold. A threshold <= 0 uses
// DefaultSimilarityThreshold. Results are sorted by similarity descending,
// then alphabetically so output is stable run to run.
func FindSimilarTags(tags map[string]*TagUsage, threshold int) []SimilarPair {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	names := sortedTagNames(tags)

	var pairs []SimilarPair
	for i, tag1 := range names {
		for _, tag2 := range names[i+1:] {
			a, b := strings.ToLower(tag1), strings.ToLower(tag2)

			score := editRatio(a, b)
			if p := partialRatio(a, b); p > score {
				score = p
			}
			if ts := tokenSortRatio(a, b); ts > score {
				score = ts
			}

			if score < threshold {
				continue
			}

			merge := tag1
			if tags[tag2].Count > tags[tag1].Count {
				merge = tag2
			}
			pairs = append(pairs, SimilarPair{
				Tag1:           tag1,
				Tag2:           tag2,
				Count1:         tags[tag1].Count,
				Count2:         tags[tag2].Count,
				Similarity:     score,
				SuggestedMerge: merge,
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Similarity != pairs[j].Similarity {
			return pairs[i].Similarity > pairs[j].Similarity
		}
		if pairs[i].Tag1 != pairs[j].Tag1 {
			return pairs[i].Tag1 < pairs[j].Tag1
		}
		return pairs[i].Tag2 < pairs[j].Tag2
	})
	return pairs
}

// editRatio is a normalized Levenshtein similarity in 0-100.
func editRatio(a, b string) int {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(d)/float64(longest))))
}

// partialRatio slides the shorter string over the longer and returns the
// best window score, so "katoomba" still matches "katoomba falls" highly.
func partialRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		return 100
	}
	if len(ra) == len(rb) {
		return editRatio(string(ra), string(rb))
	}

	best := 0
	for start := 0; start+len(ra) <= len(rb); start++ {
		window := string(rb[start : start+len(ra)])
		if score := editRatio(string(ra), window); score > best {
			best = score
		}
	}
	return best
}

// tokenSortRatio compares the two strings with their words sorted, which
// catches reorderings like "falls katoomba" vs "katoomba falls".
func tokenSortRatio(a, b string) int {
	return editRatio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Hierarchy records a potential broader/narrower relationship: the narrower
// term's name appears inside the broader term's name ("Katoomba" inside
// "Katoomba Falls"). These are candidates for review, not assertions.
type Hierarchy struct {
	BroaderTerm   string `json:"broader_term"`
	NarrowerTerm  string `json:"narrower_term"`
	BroaderCount  int    `json:"broader_count"`
	NarrowerCount int    `json:"narrower_count"`
}

// DetectHierarchies finds tag pairs where one name is a case-insensitive
// substring of another. Results are sorted by narrower then broader term.
func DetectHierarchies(tags map[string]*TagUsage) []Hierarchy {
	names := sortedTagNames(tags)

	var relations []Hierarchy
	for _, narrower := range names {
		narrowerLower := strings.ToLower(narrower)
		for _, broader := range names {
			if narrower == broader {
				continue
			}
			broaderLower := strings.ToLower(broader)
			if narrowerLower == broaderLower || !strings.Contains(broaderLower, narrowerLower) {
				continue
			}
			relations = append(relations, Hierarchy{
				BroaderTerm:   broader,
				NarrowerTerm:  narrower,
				BroaderCount:  tags[broader].Count,
				NarrowerCount: tags[narrower].Count,
			})
		}
	}
	return relations
}

// Cooccurrence counts how many items carry both tags. Tag1 sorts before
// Tag2 so each unordered pair appears exactly once.
type Cooccurrence struct {
	Tag1      string `json:"tag1"`
	Tag2      string `json:"tag2"`
	Count     int    `json:"count"`
	Tag1Total int    `json:"tag1_total"`
	Tag2Total int    `json:"tag2_total"`
}

// Cooccurrences inverts the per-tag item lists into per-item tag sets and
// counts every pair of tags applied to the same item. Results are sorted by
// count descending, then alphabetically.
func Cooccurrences(tags map[string]*TagUsage) []Cooccurrence {
	itemTags := make(map[string][]string)
	for name, usage := range tags {
		for _, key := range usage.Items {
			itemTags[key] = append(itemTags[key], name)
		}
	}

	type pair struct{ a, b string }
	counts := make(map[pair]int)
	for _, names := range itemTags {
		if len(names) < 2 {
			continue
		}
		sort.Strings(names)
		for i, a := range names {
			for _, b := range names[i+1:] {
				if a == b {
					continue
				}
				counts[pair{a, b}]++
			}
		}
	}

	list := make([]Cooccurrence, 0, len(counts))
	for p, n := range counts {
		list = append(list, Cooccurrence{
			Tag1:      p.a,
			Tag2:      p.b,
			Count:     n,
			Tag1Total: tags[p.a].Count,
			Tag2Total: tags[p.b].Count,
		})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		if list[i].Tag1 != list[j].Tag1 {
			return list[i].Tag1 < list[j].Tag1
		}
		return list[i].Tag2 < list[j].Tag2
	})
	return list
}

// TagFrequency is one row of the frequency table. Percentage is of total
// tag applications (not of items), rounded to two decimals.
type TagFrequency struct {
	Tag        string  `json:"tag"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// FrequencyTable lists every tag with its share of all tag applications,
// sorted by count descending then alphabetically.
func FrequencyTable(tags map[string]*TagUsage) []TagFrequency {
	total := 0
	for _, usage := range tags {
		total += usage.Count
	}

	rows := make([]TagFrequency, 0, len(tags))
	for name, usage := range tags {
		pct := 0.0
		if total > 0 {
			pct = math.Round(float64(usage.Count)/float64(total)*100*100) / 100
		}
		rows = append(rows, TagFrequency{Tag: name, Count: usage.Count, Percentage: pct})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Tag < rows[j].Tag
	})
	return rows
}

// sortedTagNames gives a deterministic iteration order over the tag map.
func sortedTagNames(tags map[string]*TagUsage) []string {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SaveSimilarTagsCSV writes the pair list for spreadsheet review.
func SaveSimilarTagsCSV(pairs []SimilarPair, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create similar tags csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"tag1", "tag2", "count1", "count2", "similarity", "suggested_merge"}); err != nil {
		return fmt.Errorf("write similar tags header: %w", err)
	}
	for _, p := range pairs {
		row := []string{
			p.Tag1, p.Tag2,
			strconv.Itoa(p.Count1), strconv.Itoa(p.Count2),
			strconv.Itoa(p.Similarity), p.SuggestedMerge,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write similar tags row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// SaveFrequencyCSV writes the tag frequency table.
func SaveFrequencyCSV(rows []TagFrequency, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create frequency csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"tag", "count", "percentage"}); err != nil {
		return fmt.Errorf("write frequency header: %w", err)
	}
	for _, r := range rows {
		row := []string{r.Tag, strconv.Itoa(r.Count), strconv.FormatFloat(r.Percentage, 'f', 2, 64)}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write frequency row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// TagNetwork is the persisted co-occurrence data, consumable by graph
// tooling.
type TagNetwork struct {
	GeneratedAt   time.Time      `json:"generated_at"`
	Cooccurrences []Cooccurrence `json:"cooccurrences"`
}

// Save writes the network as indented JSON.
func (n *TagNetwork) Save(path string) error {
	if n.Cooccurrences == nil {
		n.Cooccurrences = []Cooccurrence{}
	}
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tag network: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write tag network: %w", err)
	}
	return nil
}

// AnalysisReport bundles the derived views of one tag extraction for the
// curator-facing markdown summary.
type AnalysisReport struct {
	Metadata     provenance.Record
	SimilarPairs []SimilarPair
	Hierarchies  []Hierarchy
	Network      []Cooccurrence
	Frequencies  []TagFrequency
}

// Render produces the markdown review document: similar tags first because
// consolidation candidates need the earliest curatorial decision, then
// hierarchies, co-occurrence, and the frequency head and tail.
func (r *AnalysisReport) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Tag Analysis Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n", r.Metadata.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Source:** %s\n\n", r.Metadata.SourceID)

	fmt.Fprintf(&b, "## 1. Similar Tags\n\n")
	fmt.Fprintf(&b, "Found **%d** pairs of similar tags that may need consolidation.\n\n", len(r.SimilarPairs))
	if len(r.SimilarPairs) > 0 {
		b.WriteString("| Tag 1 | Tag 2 | Similarity | Count 1 | Count 2 | Merge To |\n")
		b.WriteString("|-------|-------|------------|---------|---------|----------|\n")
		for _, p := range top(r.SimilarPairs, 20) {
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %s |\n",
				p.Tag1, p.Tag2, p.Similarity, p.Count1, p.Count2, p.SuggestedMerge)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## 2. Potential Hierarchies\n\n")
	fmt.Fprintf(&b, "Found **%d** substring relationships (candidate broader/narrower terms).\n\n", len(r.Hierarchies))
	if len(r.Hierarchies) > 0 {
		b.WriteString("| Broader Term | Narrower Term | Broader Count | Narrower Count |\n")
		b.WriteString("|--------------|---------------|---------------|----------------|\n")
		for _, h := range top(r.Hierarchies, 20) {
			fmt.Fprintf(&b, "| %s | %s | %d | %d |\n",
				h.BroaderTerm, h.NarrowerTerm, h.BroaderCount, h.NarrowerCount)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## 3. Tag Co-occurrence\n\n")
	fmt.Fprintf(&b, "Found **%d** tag pairs applied to the same item at least once.\n\n", len(r.Network))
	if len(r.Network) > 0 {
		b.WriteString("| Tag 1 | Tag 2 | Together | Tag 1 Total | Tag 2 Total |\n")
		b.WriteString("|-------|-------|----------|-------------|-------------|\n")
		for _, c := range top(r.Network, 20) {
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d |\n",
				c.Tag1, c.Tag2, c.Count, c.Tag1Total, c.Tag2Total)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## 4. Tag Frequency\n\n")
	if len(r.Frequencies) > 0 {
		b.WriteString("Top tags by share of all tag applications:\n\n")
		b.WriteString("| Tag | Count | % of Applications |\n")
		b.WriteString("|-----|-------|--------------------|\n")
		for _, f := range top(r.Frequencies, 20) {
			fmt.Fprintf(&b, "| %s | %d | %.2f |\n", f.Tag, f.Count, f.Percentage)
		}
		singles := 0
		for _, f := range r.Frequencies {
			if f.Count == 1 {
				singles++
			}
		}
		fmt.Fprintf(&b, "\n**Singleton tags:** %d used exactly once (merge or removal candidates).\n", singles)
	}

	return b.String()
}

// SaveMarkdown writes the rendered report.
func (r *AnalysisReport) SaveMarkdown(path string) error {
	if err := os.WriteFile(path, []byte(r.Render()), 0o644); err != nil {
		return fmt.Errorf("write analysis report: %w", err)
	}
	return nil
}

// top returns at most n leading elements without copying.
func top[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
