package catalog

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML/JSON on-disk schema.
type catalogFile struct {
	Pages            map[string]map[string][]string `yaml:"pages"`
	Outlinks         []Outlink                      `yaml:"outlinks"`
	Downloads        []string                       `yaml:"downloads"`
	SearchTerms      []string                       `yaml:"search_terms"`
	SearchCategories []string                       `yaml:"search_categories"`
	UserAgents       []string                       `yaml:"user_agents"`
}

// LoadFile reads a catalog from disk. YAML and JSON files carry the full
// hierarchical schema; anything else is treated as the legacy flat URL list
// (one URL per line, optional title after whitespace, # comments), with the
// hierarchy derived from URL path segments.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return parseHierarchical(data)
	default:
		return parseFlat(data)
	}
}

func parseHierarchical(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}

	categories := make([]Category, 0, len(file.Pages))
	catNames := make([]string, 0, len(file.Pages))
	for name := range file.Pages {
		catNames = append(catNames, name)
	}
	sort.Strings(catNames)
	for _, catName := range catNames {
		subs := file.Pages[catName]
		subNames := make([]string, 0, len(subs))
		for name := range subs {
			subNames = append(subNames, name)
		}
		sort.Strings(subNames)

		category := Category{Name: catName}
		for _, subName := range subNames {
			category.Subcategories = append(category.Subcategories, Subcategory{
				Name:  subName,
				Pages: subs[subName],
			})
		}
		categories = append(categories, category)
	}

	return New(categories,
		WithOutlinks(file.Outlinks),
		WithDownloads(file.Downloads),
		WithSearchTerms(file.SearchTerms),
		WithSearchCategories(file.SearchCategories),
		WithUserAgents(file.UserAgents),
	)
}

// fieldSplit matches the flat format's URL/title separator: a tab or a run of
// two or more spaces.
var fieldSplit = regexp.MustCompile(`\t+|\s{2,}`)

func parseFlat(data []byte) (*Catalog, error) {
	// Preserve insertion order per subcategory while grouping.
	type subKey struct{ cat, sub string }
	pages := make(map[subKey][]string)
	var order []subKey

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raw := fieldSplit.Split(line, 2)[0]

		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("catalog: line %d: invalid URL %q", lineNo, raw)
		}

		cat, sub := deriveHierarchy(parsed.Path)
		key := subKey{cat, sub}
		if _, seen := pages[key]; !seen {
			order = append(order, key)
		}
		pages[key] = append(pages[key], raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("catalog: scan: %w", err)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("catalog: no URLs found")
	}

	// Group subcategories under their categories, keeping first-seen order.
	var categories []Category
	index := make(map[string]int)
	for _, key := range order {
		idx, ok := index[key.cat]
		if !ok {
			idx = len(categories)
			index[key.cat] = idx
			categories = append(categories, Category{Name: key.cat})
		}
		categories[idx].Subcategories = append(categories[idx].Subcategories, Subcategory{
			Name:  key.sub,
			Pages: pages[key],
		})
	}

	return New(categories)
}

// deriveHierarchy maps a URL path onto (category, subcategory). The first
// path segment is the category, the second the subcategory; shallow paths
// collapse into home/index so every page lands somewhere.
func deriveHierarchy(path string) (string, string) {
	segments := make([]string, 0, 3)
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	switch len(segments) {
	case 0:
		return "home", "index"
	case 1:
		return segments[0], "index"
	default:
		return segments[0], segments[1]
	}
}
