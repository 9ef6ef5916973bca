package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v55/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mcpherson-lab/pubsync/internal/domain"
	apperrors "github.com/mcpherson-lab/pubsync/internal/errors"
)

func testCollector(rawBaseURL string) *githubCollector {
	return &githubCollector{
		client:      github.NewClient(nil),
		http:        &http.Client{Timeout: 5 * time.Second},
		rateLimiter: NewRateLimiter(),
		retry:       RetryPolicy{MaxAttempts: 2, InitialInterval: time.Millisecond},
		log:         zap.NewNop(),
		rawBaseURL:  rawBaseURL,
		siteBaseURL: "https://github.com",
	}
}

func TestBuildEntry(t *testing.T) {
	items := []*github.RepositoryContent{
		{
			Type:        github.String("file"),
			Name:        github.String("index.qmd"),
			DownloadURL: github.String("https://raw.example/index.qmd"),
			HTMLURL:     github.String("https://github.example/index.qmd"),
		},
		{
			Type:        github.String("file"),
			Name:        github.String("featured.png"),
			DownloadURL: github.String("https://raw.example/featured.png"),
		},
		{
			Type: github.String("file"),
			Name: github.String("notes.txt"),
		},
		{
			Type: github.String("dir"),
			Name: github.String("data"),
		},
	}

	entry := buildEntry("attention-2024", items)
	require.NotNil(t, entry)
	assert.Equal(t, "attention-2024", entry.DirName)
	assert.Equal(t, "index.qmd", entry.IndexName)
	assert.Equal(t, "https://raw.example/index.qmd", entry.DownloadURL)
	assert.Equal(t, "https://github.example/index.qmd", entry.SourceURL)
	require.Len(t, entry.Assets, 1)
	assert.Equal(t, "featured.png", entry.Assets[0].Name)
}

func TestBuildEntryNoIndex(t *testing.T) {
	items := []*github.RepositoryContent{
		{Type: github.String("file"), Name: github.String("featured.png")},
	}
	assert.Nil(t, buildEntry("attention-2024", items))
}

func TestListViaRawProbesKnownDirs(t *testing.T) {
	content := "---\ntitle: Attention\n---\n\nbody\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/asmith/asmith.github.io/main/publications/attention-2024/index.qmd":
			w.Write([]byte(content))
		case "/asmith/asmith.github.io/main/publications/attention-2024/featured.png":
			w.Write([]byte("img"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := testCollector(srv.URL)
	m := &domain.Member{
		Username:  "asmith",
		Active:    true,
		KnownDirs: []string{"attention-2024", "missing-dir"},
	}

	entries, err := c.listViaRaw(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "attention-2024", entry.DirName)
	assert.Equal(t, "index.qmd", entry.IndexName)
	assert.Equal(t, content, string(entry.Content), "raw probe pre-fills the content")
	require.Len(t, entry.Assets, 1)
	assert.Equal(t, "featured.png", entry.Assets[0].Name)
	assert.Equal(t, "img", string(entry.Assets[0].Data))
}

func TestFetchEntrySkipsPrefilledPayloads(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("asset-bytes"))
	}))
	defer srv.Close()

	c := testCollector(srv.URL)
	entry := &domain.RemoteEntry{
		DirName:   "attention-2024",
		IndexName: "index.qmd",
		Content:   []byte("already here"),
		Assets: []domain.RemoteAsset{
			{Name: "featured.png", DownloadURL: srv.URL + "/featured.png"},
		},
	}

	err := c.FetchEntry(context.Background(), &domain.Member{Username: "asmith"}, entry)
	require.NoError(t, err)

	assert.Equal(t, "already here", string(entry.Content))
	assert.Equal(t, "asset-bytes", string(entry.Assets[0].Data))
	assert.Equal(t, 1, hits, "only the missing payload is downloaded")
}

func TestDownloadRetriesTransientFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testCollector(srv.URL)
	data, err := c.download(context.Background(), srv.URL+"/file")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, 2, hits)
}

func TestDownloadNotFoundIsPermanent(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := testCollector(srv.URL)
	_, err := c.download(context.Background(), srv.URL+"/file")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, 1, hits, "404 is not retried")
}

func TestRetryPolicyStopsOnPermanent(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialInterval: time.Millisecond}

	var calls int
	err := p.Do(context.Background(), func() error {
		calls++
		return backoff.Permanent(assert.AnError)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := RetryPolicy{MaxAttempts: 5, InitialInterval: 10 * time.Millisecond}
	err := p.Do(ctx, func() error { return assert.AnError })
	require.Error(t, err)
}
