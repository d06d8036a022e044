// Package catalog holds the static URL universe a traffic run draws from:
// a category → subcategory → page hierarchy plus outlink, download and
// site-search tables. A Catalog is built once at startup and never mutated.
package catalog

import (
	"fmt"
	"net/url"
	"strings"
)

// Outlink is one external link target with a coarse kind label.
type Outlink struct {
	URL  string `yaml:"url"`
	Kind string `yaml:"kind"`
}

// Subcategory is an ordered list of page URLs under one subcategory name.
type Subcategory struct {
	Name  string
	Pages []string
}

// Category groups subcategories under one top-level section name.
type Category struct {
	Name          string
	Subcategories []Subcategory
}

// Catalog is the full read-only input table for visit composition.
type Catalog struct {
	Categories       []Category
	Outlinks         []Outlink
	Downloads        []string
	SearchTerms      []string
	SearchCategories []string
	UserAgents       []string
}

// New assembles a catalog from the given hierarchy, filling every empty
// auxiliary table with the built-in defaults.
func New(categories []Category, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		Categories:       categories,
		Outlinks:         defaultOutlinks,
		Downloads:        defaultDownloads,
		SearchTerms:      defaultSearchTerms,
		SearchCategories: defaultSearchCategories,
		UserAgents:       defaultUserAgents,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Option customizes one auxiliary table of a Catalog under construction.
type Option func(*Catalog)

func WithOutlinks(outlinks []Outlink) Option {
	return func(c *Catalog) {
		if len(outlinks) > 0 {
			c.Outlinks = outlinks
		}
	}
}

func WithDownloads(downloads []string) Option {
	return func(c *Catalog) {
		if len(downloads) > 0 {
			c.Downloads = downloads
		}
	}
}

func WithSearchTerms(terms []string) Option {
	return func(c *Catalog) {
		if len(terms) > 0 {
			c.SearchTerms = terms
		}
	}
}

func WithSearchCategories(categories []string) Option {
	return func(c *Catalog) {
		if len(categories) > 0 {
			c.SearchCategories = categories
		}
	}
}

func WithUserAgents(agents []string) Option {
	return func(c *Catalog) {
		if len(agents) > 0 {
			c.UserAgents = agents
		}
	}
}

func (c *Catalog) validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("catalog: no page categories")
	}
	for _, cat := range c.Categories {
		if len(cat.Subcategories) == 0 {
			return fmt.Errorf("catalog: category %q has no subcategories", cat.Name)
		}
		for _, sub := range cat.Subcategories {
			if len(sub.Pages) == 0 {
				return fmt.Errorf("catalog: subcategory %q/%q has no pages", cat.Name, sub.Name)
			}
			for _, page := range sub.Pages {
				if err := validatePageURL(page); err != nil {
					return fmt.Errorf("catalog: %q/%q: %w", cat.Name, sub.Name, err)
				}
			}
		}
	}
	return nil
}

// validatePageURL enforces the same constraints the original URL file
// validator did: absolute http(s) URL with a host.
func validatePageURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid page URL %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("page URL %q must use http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("page URL %q must include a host", raw)
	}
	return nil
}

// PageCount returns the number of pages across the whole hierarchy.
func (c *Catalog) PageCount() int {
	total := 0
	for _, cat := range c.Categories {
		for _, sub := range cat.Subcategories {
			total += len(sub.Pages)
		}
	}
	return total
}
