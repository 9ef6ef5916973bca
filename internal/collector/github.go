package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v55/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/mcpherson-lab/pubsync/internal/domain"
	apperrors "github.com/mcpherson-lab/pubsync/internal/errors"
)

var indexNames = []string{"index.qmd", "index.md"}

var assetExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg"}

// githubCollector implements Collector against the GitHub contents API,
// with a raw-content fallback for when the API is denied or rate-limited
type githubCollector struct {
	client      *github.Client
	http        *http.Client
	rateLimiter RateLimiter
	retry       RetryPolicy
	log         *zap.Logger

	rawBaseURL  string
	siteBaseURL string
}

// NewGitHubCollector creates a collector. An empty token uses
// unauthenticated API access.
func NewGitHubCollector(token string, log *zap.Logger) Collector {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	var client *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		client = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		client = github.NewClient(httpClient)
	}

	return &githubCollector{
		client:      client,
		http:        httpClient,
		rateLimiter: NewRateLimiter(),
		retry:       DefaultRetryPolicy(),
		log:         log,
		rawBaseURL:  "https://raw.githubusercontent.com",
		siteBaseURL: "https://github.com",
	}
}

// ListEntries lists publication directories for a member. A missing
// publications directory is normal (the member has no publications yet)
// and yields zero entries. When the API lookup fails for any other reason
// the raw-content fallback probes the member's known directories.
func (c *githubCollector) ListEntries(ctx context.Context, m *domain.Member) ([]*domain.RemoteEntry, []EntryFailure, error) {
	entries, failures, err := c.listViaAPI(ctx, m)
	if err == nil {
		return entries, failures, nil
	}
	if apperrors.IsNotFound(err) {
		c.log.Debug("publications directory not found, member has no publications yet",
			zap.String("member", m.Username))
		return nil, nil, nil
	}

	c.log.Warn("GitHub API listing failed, falling back to raw content",
		zap.String("member", m.Username), zap.Error(err))

	entries, rawErr := c.listViaRaw(ctx, m)
	if rawErr != nil {
		return nil, nil, rawErr
	}
	if len(entries) == 0 && len(m.KnownDirs) == 0 {
		// Nothing to probe, surface the original failure
		return nil, nil, err
	}
	return entries, nil, nil
}

func (c *githubCollector) listViaAPI(ctx context.Context, m *domain.Member) ([]*domain.RemoteEntry, []EntryFailure, error) {
	dir, err := c.getContents(ctx, m, m.PubPath())
	if err != nil {
		return nil, nil, err
	}

	var entries []*domain.RemoteEntry
	var failures []EntryFailure
	for _, item := range dir {
		if item.GetType() != "dir" || strings.HasPrefix(item.GetName(), "_") {
			continue
		}

		sub, err := c.getContents(ctx, m, item.GetPath())
		if err != nil {
			// One unreadable directory should not sink the listing
			c.log.Warn("could not list entry directory",
				zap.String("member", m.Username),
				zap.String("dir", item.GetName()), zap.Error(err))
			failures = append(failures, EntryFailure{DirName: item.GetName(), Err: err})
			continue
		}

		entry := buildEntry(item.GetName(), sub)
		if entry == nil {
			c.log.Debug("directory has no index file, skipping",
				zap.String("member", m.Username), zap.String("dir", item.GetName()))
			continue
		}
		entries = append(entries, entry)
	}

	return entries, failures, nil
}

// getContents calls the contents API under the rate limiter and retry
// policy. 404 maps to a permanent not-found error.
func (c *githubCollector) getContents(ctx context.Context, m *domain.Member, path string) ([]*github.RepositoryContent, error) {
	var dir []*github.RepositoryContent
	err := c.retry.Do(ctx, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		_, d, resp, err := c.client.Repositories.GetContents(ctx, m.Username, m.SiteRepo(), path, nil)
		if resp != nil && resp.Rate.Remaining >= 0 {
			c.rateLimiter.UpdateLimit(resp.Rate.Remaining, resp.Rate.Reset.Time)
		}
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return backoff.Permanent(apperrors.NewNotFoundError(path))
			}
			return err
		}
		dir = d
		return nil
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, err
		}
		return nil, apperrors.NewFetchError(fmt.Sprintf("listing %s/%s/%s", m.Username, m.SiteRepo(), path), err)
	}
	return dir, nil
}

// buildEntry assembles a RemoteEntry from a directory listing, or nil when
// the directory holds no index file
func buildEntry(dirName string, items []*github.RepositoryContent) *domain.RemoteEntry {
	var entry *domain.RemoteEntry
	var assets []domain.RemoteAsset

	for _, item := range items {
		if item.GetType() != "file" {
			continue
		}
		name := strings.ToLower(item.GetName())

		for _, indexName := range indexNames {
			if name == indexName && entry == nil {
				entry = &domain.RemoteEntry{
					DirName:     dirName,
					IndexName:   indexName,
					DownloadURL: item.GetDownloadURL(),
					SourceURL:   item.GetHTMLURL(),
				}
			}
		}

		if strings.HasPrefix(name, "featured.") && hasAssetExtension(name) {
			assets = append(assets, domain.RemoteAsset{
				Name:        item.GetName(),
				DownloadURL: item.GetDownloadURL(),
			})
		}
	}

	if entry == nil {
		return nil
	}
	entry.Assets = assets
	return entry
}

func hasAssetExtension(name string) bool {
	for _, ext := range assetExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// listViaRaw probes the member's known entry directories through
// raw.githubusercontent.com. The raw host has no directory listing, so
// discovery is limited to directories named in the roster.
func (c *githubCollector) listViaRaw(ctx context.Context, m *domain.Member) ([]*domain.RemoteEntry, error) {
	var entries []*domain.RemoteEntry

	for _, dirName := range m.KnownDirs {
		entry := c.probeRawEntry(ctx, m, dirName)
		if entry == nil {
			continue
		}
		entries = append(entries, entry)
		c.log.Debug("found entry via raw fallback",
			zap.String("member", m.Username), zap.String("dir", dirName))
	}

	return entries, nil
}

func (c *githubCollector) probeRawEntry(ctx context.Context, m *domain.Member, dirName string) *domain.RemoteEntry {
	for _, indexName := range indexNames {
		rawURL := c.rawURL(m, dirName, indexName)
		content, err := c.download(ctx, rawURL)
		if err != nil {
			continue
		}

		entry := &domain.RemoteEntry{
			DirName:     dirName,
			IndexName:   indexName,
			DownloadURL: rawURL,
			SourceURL: fmt.Sprintf("%s/%s/%s/blob/main/%s/%s/%s",
				c.siteBaseURL, m.Username, m.SiteRepo(), m.PubPath(), dirName, indexName),
			Content: content,
		}

		// Only one featured image per entry
		for _, ext := range assetExtensions {
			assetName := "featured" + ext
			data, err := c.download(ctx, c.rawURL(m, dirName, assetName))
			if err != nil {
				continue
			}
			entry.Assets = append(entry.Assets, domain.RemoteAsset{
				Name:        assetName,
				DownloadURL: c.rawURL(m, dirName, assetName),
				Data:        data,
			})
			break
		}

		return entry
	}
	return nil
}

func (c *githubCollector) rawURL(m *domain.Member, dirName, fileName string) string {
	return fmt.Sprintf("%s/%s/%s/main/%s/%s/%s",
		c.rawBaseURL, m.Username, m.SiteRepo(), m.PubPath(), dirName, fileName)
}

// FetchEntry downloads the entry's content and asset payloads. Payloads
// already present (filled by the raw fallback) are not fetched again.
func (c *githubCollector) FetchEntry(ctx context.Context, m *domain.Member, entry *domain.RemoteEntry) error {
	if entry.Content == nil {
		content, err := c.download(ctx, entry.DownloadURL)
		if err != nil {
			return apperrors.NewFetchError(fmt.Sprintf("fetching %s/%s/%s", m.Username, entry.DirName, entry.IndexName), err)
		}
		entry.Content = content
	}

	for i := range entry.Assets {
		if entry.Assets[i].Data != nil {
			continue
		}
		data, err := c.download(ctx, entry.Assets[i].DownloadURL)
		if err != nil {
			return apperrors.NewFetchError(fmt.Sprintf("fetching asset %s/%s/%s", m.Username, entry.DirName, entry.Assets[i].Name), err)
		}
		entry.Assets[i].Data = data
	}

	return nil
}

// download gets a URL body under the retry policy
func (c *githubCollector) download(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(apperrors.NewNotFoundError(url))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %s for %s", resp.Status, url)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
