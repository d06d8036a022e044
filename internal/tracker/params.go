package tracker

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"path"
	"strconv"

	"github.com/visitforge/visitforge/internal/visit"
)

// BuildParams converts one event of a visit into the flat tracking-API
// parameter set. It is a pure function of its inputs: identical calls yield
// identical parameter sets, which keeps request building trivially testable
// and lets callers retry or trace without re-sampling anything.
//
// index is the event's position in the plan, total the plan's event count;
// the first event of a visit opens it with new_visit=1.
func BuildParams(evt visit.Event, index, total int, vc VisitContext, tgt Target) (url.Values, error) {
	params := url.Values{}
	params.Set("idsite", strconv.Itoa(tgt.SiteID))
	params.Set("rec", "1")
	params.Set("_id", vc.VisitorID)
	params.Set("rand", strconv.FormatUint(uint64(cacheBuster(vc.VisitorID, index, evt.URL)), 10))
	if tgt.TokenAuth != "" {
		params.Set("token_auth", tgt.TokenAuth)
	}
	if index == 0 {
		params.Set("new_visit", "1")
	}
	if evt.Referrer != "" {
		params.Set("urlref", evt.Referrer)
	}

	switch evt.Kind {
	case visit.KindPageview:
		params.Set("url", evt.URL)
		params.Set("action_name", fmt.Sprintf("LoadTest PV %d/%d", index+1, total))

	case visit.KindSearch:
		params.Set("url", evt.URL)
		params.Set("search", evt.SearchTerm)
		if evt.SearchCategory != "" {
			params.Set("search_cat", evt.SearchCategory)
		}
		params.Set("search_count", strconv.Itoa(evt.SearchCount))
		params.Set("action_name", "Search: "+evt.SearchTerm)

	case visit.KindOutlink:
		if err := requireReferrer(evt, total); err != nil {
			return nil, err
		}
		// url carries the clicked href, urlref the page that contained it.
		params.Set("link", evt.URL)
		params.Set("url", evt.URL)
		params.Set("urlref", evt.Referrer)
		params.Set("action_name", "Outlink: "+evt.URL)

	case visit.KindDownload:
		if err := requireReferrer(evt, total); err != nil {
			return nil, err
		}
		resolved, err := resolveDownloadURL(evt.URL, evt.Referrer)
		if err != nil {
			return nil, err
		}
		params.Set("download", resolved)
		params.Set("url", resolved)
		params.Set("urlref", evt.Referrer)
		params.Set("action_name", "Download: "+path.Base(resolved))

	default:
		return nil, fmt.Errorf("tracker: unknown event kind %q", evt.Kind)
	}

	return params, nil
}

func requireReferrer(evt visit.Event, total int) error {
	if evt.Referrer == "" && total > 1 {
		return &visit.InvariantError{Reason: fmt.Sprintf("%s event reached request building without a referrer", evt.Kind)}
	}
	return nil
}

// resolveDownloadURL turns a possibly site-relative download descriptor into
// an absolute URL rooted at the referring page's scheme and host.
func resolveDownloadURL(raw, referrer string) (string, error) {
	target, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("tracker: invalid download target %q: %w", raw, err)
	}
	if target.IsAbs() {
		return raw, nil
	}
	base, err := url.Parse(referrer)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("tracker: cannot resolve %q against referrer %q", raw, referrer)
	}
	root := &url.URL{Scheme: base.Scheme, Host: base.Host}
	return root.ResolveReference(target).String(), nil
}

// cacheBuster derives the tracking API's cache-busting value from the event
// identity instead of fresh randomness, keeping BuildParams pure.
func cacheBuster(visitorID string, index int, target string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(visitorID))
	h.Write([]byte{byte(index), byte(index >> 8)})
	h.Write([]byte(target))
	return h.Sum32()
}
