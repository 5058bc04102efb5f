// Package tenor implements dispatcher.GifSearch against the Tenor GIF
// search API, grounded on the original project's random_gif_for_query
// (github_scbot_api/src/gif.rs): query Tenor's /v1/random endpoint,
// collect every result's medium-quality GIF URL, and return one at
// random. Retry posture mirrors internal/ghclient's backoff-on-
// transport-error loop, since Tenor is just another flaky upstream.
package tenor

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const (
	baseURL        = "https://g.tenor.com/v1"
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// CallCounter is incremented once per upstream call, feeding the
// tenor_api_calls metric from spec.md §6.
type CallCounter interface {
	Inc()
}

type noopCounter struct{}

func (noopCounter) Inc() {}

// Client searches Tenor for a random GIF matching a query.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	metrics    CallCounter
	rand       *rand.Rand
}

// New builds a Client. counter may be nil.
func New(apiKey string, httpClient *http.Client, counter CallCounter) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if counter == nil {
		counter = noopCounter{}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey, metrics: counter, rand: rand.New(rand.NewSource(1))}
}

type mediaObject struct {
	URL string `json:"url"`
}

type gifObject struct {
	Media []map[string]mediaObject `json:"media"`
}

type randomResponse struct {
	Results []gifObject `json:"results"`
}

// Search returns a GIF URL matching query, or "" if Tenor has no
// results, per spec.md §4.2's `gif` verb falling back to a plain
// "no results" comment when this returns an empty string.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	u := c.baseURL + "/random?" + url.Values{
		"q":             {query},
		"key":           {c.apiKey},
		"limit":         {"20"},
		"contentfilter": {"low"},
		"media_filter":  {"minimal"},
		"ar_range":      {"wide"},
	}.Encode()

	var resp randomResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", nil
	}

	shuffled := append([]gifObject(nil), resp.Results...)
	c.rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	for _, result := range shuffled {
		for _, media := range result.Media {
			if m, ok := media["mediumgif"]; ok {
				return m.URL, nil
			}
		}
	}
	return "", nil
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) error {
	c.metrics.Inc()
	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return errors.Wrap(err, "build tenor request")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			lastErr = errors.Errorf("tenor: status %d", resp.StatusCode)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}
		if resp.StatusCode >= 400 {
			return errors.Errorf("tenor: status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return errors.Wrap(lastErr, "tenor: exhausted retries")
}
