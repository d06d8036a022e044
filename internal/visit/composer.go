package visit

import (
	"math/rand"
	"sync"
	"time"

	"github.com/visitforge/visitforge/internal/catalog"
	"github.com/visitforge/visitforge/internal/config"
)

// searchCategoryProbability is the chance a search event carries a category.
const searchCategoryProbability = 0.3

// maxSearchResults bounds the sampled search result count (inclusive).
const maxSearchResults = 25

// Composer turns configuration plus catalog into visit plans. All randomness
// flows through the injected rand source, so a seeded Composer produces a
// reproducible stream of plans.
type Composer struct {
	cfg   *config.Config
	cat   *catalog.Catalog
	pages []string // every catalog page, entry-referrer pool

	mu  sync.Mutex
	rng *rand.Rand
}

// NewComposer creates a Composer. A nil rng gets a time-based seed.
func NewComposer(cfg *config.Config, cat *catalog.Catalog, rng *rand.Rand) *Composer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	pages := make([]string, 0, cat.PageCount())
	for _, category := range cat.Categories {
		for _, sub := range category.Subcategories {
			pages = append(pages, sub.Pages...)
		}
	}
	return &Composer{cfg: cfg, cat: cat, pages: pages, rng: rng}
}

// Compose samples one complete visit plan. It performs no I/O; the returned
// plan is validated before being handed out, so a non-nil plan always honors
// the ordering, referrer and timing invariants.
func (c *Composer) Compose() (*Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	numPVs := c.intBetween(c.cfg.PageviewsMin, c.cfg.PageviewsMax)

	category := c.cat.Categories[c.rng.Intn(len(c.cat.Categories))]
	sub := category.Subcategories[c.rng.Intn(len(category.Subcategories))]
	pages := c.drawPages(sub.Pages, numPVs)

	events := make([]Event, 0, numPVs+3)
	for _, page := range pages {
		events = append(events, Event{Kind: KindPageview, URL: page})
	}

	wantSearch := c.rng.Float64() < c.cfg.SiteSearchProbability
	wantOutlink := c.rng.Float64() < c.cfg.OutlinksProbability
	wantDownload := c.rng.Float64() < c.cfg.DownloadsProbability

	// A single-pageview visit has no page that can precede a special event,
	// so inclusion is suppressed outright.
	if numPVs > 1 {
		if wantSearch {
			events = c.insertAfterFirst(events, c.sampleSearch())
		}
		if wantOutlink {
			events = c.insertAfterFirst(events, c.sampleOutlink())
		}
		if wantDownload {
			events = c.insertAfterFirst(events, c.sampleDownload())
		}
	}

	var pauses time.Duration
	for i := 1; i < len(events); i++ {
		pause := c.durationBetween(c.cfg.PauseMin, c.cfg.PauseMax)
		events[i].Delay = pause
		pauses += pause
	}

	duration := c.durationBetween(c.cfg.VisitDurationMin, c.cfg.VisitDurationMax)
	dwell := duration - pauses
	if dwell < 0 {
		dwell = 0
	}

	// The visit arrives from somewhere: a random catalog page stands in for
	// the external referrer on the opening pageview.
	entryRef := c.pages[c.rng.Intn(len(c.pages))]
	threadReferrers(events, entryRef)

	plan := &Plan{
		Events:      events,
		Dwell:       dwell,
		Duration:    duration,
		Category:    category.Name,
		Subcategory: sub.Name,
		UserAgent:   c.cat.UserAgents[c.rng.Intn(len(c.cat.UserAgents))],
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// drawPages picks n pages from the subcategory: distinct while the pool
// allows it, with replacement once n exceeds the pool.
func (c *Composer) drawPages(pool []string, n int) []string {
	if n <= len(pool) {
		pages := make([]string, 0, n)
		for _, idx := range c.rng.Perm(len(pool))[:n] {
			pages = append(pages, pool[idx])
		}
		return pages
	}
	pages := make([]string, n)
	for i := range pages {
		pages[i] = pool[c.rng.Intn(len(pool))]
	}
	return pages
}

// insertAfterFirst places evt at a random position strictly after index 0.
func (c *Composer) insertAfterFirst(events []Event, evt Event) []Event {
	pos := 1 + c.rng.Intn(len(events))
	events = append(events, Event{})
	copy(events[pos+1:], events[pos:])
	events[pos] = evt
	return events
}

func (c *Composer) sampleSearch() Event {
	evt := Event{
		Kind:        KindSearch,
		SearchTerm:  c.cat.SearchTerms[c.rng.Intn(len(c.cat.SearchTerms))],
		SearchCount: c.rng.Intn(maxSearchResults + 1),
	}
	if len(c.cat.SearchCategories) > 0 && c.rng.Float64() < searchCategoryProbability {
		evt.SearchCategory = c.cat.SearchCategories[c.rng.Intn(len(c.cat.SearchCategories))]
	}
	return evt
}

func (c *Composer) sampleOutlink() Event {
	link := c.cat.Outlinks[c.rng.Intn(len(c.cat.Outlinks))]
	return Event{Kind: KindOutlink, URL: link.URL}
}

func (c *Composer) sampleDownload() Event {
	return Event{Kind: KindDownload, URL: c.cat.Downloads[c.rng.Intn(len(c.cat.Downloads))]}
}

func (c *Composer) intBetween(min, max int) int {
	if max <= min {
		return min
	}
	return min + c.rng.Intn(max-min+1)
}

func (c *Composer) durationBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(c.rng.Int63n(int64(max-min)+1))
}

// threadReferrers wires each event to the page that logically precedes it:
// the opening pageview carries the entry referrer, later pageviews refer to
// the previous pageview, searches happen on the nearest preceding page, and
// outlinks/downloads record that page as their referrer.
func threadReferrers(events []Event, entryRef string) {
	lastPage := entryRef
	lastPageReferrer := ""
	for i := range events {
		switch events[i].Kind {
		case KindPageview:
			events[i].Referrer = lastPage
			lastPageReferrer = lastPage
			lastPage = events[i].URL
		case KindSearch:
			events[i].URL = lastPage
			events[i].Referrer = lastPageReferrer
		case KindOutlink, KindDownload:
			events[i].Referrer = lastPage
		}
	}
}
