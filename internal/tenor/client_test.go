package tenor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New("key", srv.Client(), nil)
	c.baseURL = srv.URL
	return c
}

func TestSearchReturnsMediumGifURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"media":[{"mediumgif":{"url":"https://example.com/a.gif"}}]}]}`))
	})

	url, err := c.Search(context.Background(), "cat")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.gif", url)
}

func TestSearchReturnsEmptyStringOnNoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	})

	url, err := c.Search(context.Background(), "cat")
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestSearchSkipsResultsWithoutMediumGif(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"media":[{"tinygif":{"url":"https://example.com/skip.gif"}}]},{"media":[{"mediumgif":{"url":"https://example.com/b.gif"}}]}]}`))
	})

	url, err := c.Search(context.Background(), "cat")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b.gif", url)
}

func TestSearchPropagatesUpstream4xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.Search(context.Background(), "cat")
	assert.Error(t, err)
}

func TestSearchCountsEachCall(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"results":[]}`))
	})
	counted := &countingCounter{}
	c.metrics = counted

	_, err := c.Search(context.Background(), "cat")
	require.NoError(t, err)
	assert.Equal(t, 1, counted.n)
	assert.Equal(t, 1, calls)
}

type countingCounter struct{ n int }

func (c *countingCounter) Inc() { c.n++ }
