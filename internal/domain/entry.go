package domain

import "strings"

// RemoteAsset is a media file attached to a remote publication entry
type RemoteAsset struct {
	Name        string
	DownloadURL string
	Data        []byte
}

// RemoteEntry is one publication directory on a member's site.
// ListEntries fills the identifying fields; FetchEntry fills Content
// and the asset payloads.
type RemoteEntry struct {
	DirName     string
	IndexName   string // "index.qmd" or "index.md"
	DownloadURL string
	SourceURL   string
	Assets      []RemoteAsset
	Content     []byte
}

// LocalEntryName returns the namespaced directory name for a synced entry.
// The transformation is deterministic and total: no escaping beyond the
// optional username lowercasing, so the filter's existence check and the
// copier's write target always agree.
func LocalEntryName(username, dirName string, lowercase bool) string {
	if lowercase {
		username = strings.ToLower(username)
	}
	return username + "-" + dirName
}
