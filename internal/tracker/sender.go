package tracker

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBodyBytes = 1024

// Hit is one fully prepared tracking call.
type Hit struct {
	Target    Target
	Params    url.Values
	UserAgent string
	Headers   http.Header // optional extras, e.g. trace propagation
}

// Sender issues one tracking call. Implementations own their transport and
// per-call timeout; the engine never retries: a failed hit is an outcome.
type Sender interface {
	Send(ctx context.Context, hit Hit) error
}

// HTTPError reports a tracking endpoint response with status >= 400.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("tracking endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("tracking endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// HTTPSender sends hits as GET requests against each target's tracking URL.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender builds a sender with a tuned transport; timeout caps each
// tracking call (0 means no cap).
func NewHTTPSender(timeout time.Duration) *HTTPSender {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPSender{client: &http.Client{Timeout: timeout, Transport: transport}}
}

// NewHTTPSenderWithClient is the test seam for injecting a client.
func NewHTTPSenderWithClient(client *http.Client) *HTTPSender {
	return &HTTPSender{client: client}
}

// Send issues the hit and drains the response so connections get reused.
func (s *HTTPSender) Send(ctx context.Context, hit Hit) error {
	endpoint := hit.Target.TrackingURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+hit.Params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("tracker: build request for %s: %w", endpoint, err)
	}
	if hit.UserAgent != "" {
		req.Header.Set("User-Agent", hit.UserAgent)
	}
	for key, values := range hit.Headers {
		for _, val := range values {
			req.Header.Add(key, val)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
