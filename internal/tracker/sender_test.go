package tracker_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/visitforge/visitforge/internal/tracker"
)

func TestHTTPSenderSend(t *testing.T) {
	var gotPath, gotUA, gotSite string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.UserAgent()
		gotSite = r.URL.Query().Get("idsite")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	params := url.Values{}
	params.Set("idsite", "9")
	hit := tracker.Hit{
		Target:    tracker.Target{Name: "t", URL: srv.URL, SiteID: 9, Enabled: true},
		Params:    params,
		UserAgent: "Mozilla/5.0 (bench)",
	}

	sender := tracker.NewHTTPSenderWithClient(srv.Client())
	if err := sender.Send(context.Background(), hit); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/matomo.php" {
		t.Errorf("path = %q, want /matomo.php", gotPath)
	}
	if gotUA != "Mozilla/5.0 (bench)" {
		t.Errorf("user agent = %q", gotUA)
	}
	if gotSite != "9" {
		t.Errorf("idsite = %q, want 9", gotSite)
	}
}

func TestHTTPSenderExplicitEndpointKept(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	hit := tracker.Hit{
		Target: tracker.Target{Name: "t", URL: srv.URL + "/piwik.php", Enabled: true},
		Params: url.Values{},
	}
	sender := tracker.NewHTTPSenderWithClient(srv.Client())
	if err := sender.Send(context.Background(), hit); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/piwik.php" {
		t.Errorf("path = %q, want /piwik.php", gotPath)
	}
}

func TestHTTPSenderExtraHeaders(t *testing.T) {
	var gotTrace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get("Traceparent")
	}))
	defer srv.Close()

	headers := http.Header{}
	headers.Set("Traceparent", "00-abc-def-01")
	hit := tracker.Hit{
		Target:  tracker.Target{Name: "t", URL: srv.URL, Enabled: true},
		Params:  url.Values{},
		Headers: headers,
	}
	sender := tracker.NewHTTPSenderWithClient(srv.Client())
	if err := sender.Send(context.Background(), hit); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotTrace != "00-abc-def-01" {
		t.Errorf("traceparent = %q", gotTrace)
	}
}

func TestHTTPSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "site does not exist", http.StatusBadRequest)
	}))
	defer srv.Close()

	hit := tracker.Hit{
		Target: tracker.Target{Name: "t", URL: srv.URL, Enabled: true},
		Params: url.Values{},
	}
	sender := tracker.NewHTTPSenderWithClient(srv.Client())
	err := sender.Send(context.Background(), hit)

	var httpErr *tracker.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", httpErr.StatusCode)
	}
	if httpErr.Body != "site does not exist" {
		t.Errorf("body = %q", httpErr.Body)
	}
}

func TestHTTPSenderContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	hit := tracker.Hit{
		Target: tracker.Target{Name: "t", URL: srv.URL, Enabled: true},
		Params: url.Values{},
	}
	sender := tracker.NewHTTPSenderWithClient(srv.Client())
	if err := sender.Send(ctx, hit); err == nil {
		t.Fatal("Send with cancelled context succeeded")
	}
}
