package collector

import (
	"context"

	"github.com/mcpherson-lab/pubsync/internal/domain"
)

// EntryFailure records a publication directory that was seen in the listing
// but could not be read
type EntryFailure struct {
	DirName string
	Err     error
}

// Collector defines the interface for listing and fetching remote
// publication entries from a member's site
type Collector interface {
	// ListEntries lists the publication directories on the member's site.
	// Entries come back with names and download locations only; content is
	// fetched separately so the filter can reject entries before any
	// payload moves. Directories that could not be read are reported as
	// failures alongside the readable entries; the returned error is
	// reserved for the listing as a whole.
	ListEntries(ctx context.Context, member *domain.Member) ([]*domain.RemoteEntry, []EntryFailure, error)

	// FetchEntry downloads the entry's content file and asset payloads
	// in place
	FetchEntry(ctx context.Context, member *domain.Member, entry *domain.RemoteEntry) error
}
