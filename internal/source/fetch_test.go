package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_ConditionalGet(t *testing.T) {
	var hits, conditional atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	ctx := context.Background()

	p, err := f.Get(ctx, srv.URL+"/feed.ics", "")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(p.Body))
	assert.False(t, p.FromCache)

	p, err = f.Get(ctx, srv.URL+"/feed.ics", "")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(p.Body))
	assert.True(t, p.FromCache)
	assert.EqualValues(t, 2, hits.Load())
	assert.EqualValues(t, 1, conditional.Load())
}

func TestFetcher_StaleFallback(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("good"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	ctx := context.Background()

	_, err := f.Get(ctx, srv.URL, "")
	require.NoError(t, err)

	fail.Store(true)
	p, err := f.Get(ctx, srv.URL, "")
	require.NoError(t, err)
	assert.True(t, p.FromCache)
	assert.Equal(t, "good", string(p.Body))

	// A URL that never succeeded has nothing to fall back to.
	_, err = f.Get(ctx, srv.URL+"/other", "")
	assert.ErrorContains(t, err, "502")
}

func TestFetcher_EmptyURL(t *testing.T) {
	_, err := NewFetcher(t.TempDir(), nil).Get(context.Background(), "", "")
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.com/...(redacted)", redactURL("https://calendar.example.com/private/abc.ics?token=s3cret"))
	assert.Equal(t, "(redacted)", redactURL("not a url"))
}
