package domain

import "time"

// Counts holds the per-run entry classification counters
type Counts struct {
	Considered      int `json:"considered"`
	Created         int `json:"created"`
	SkippedExisting int `json:"skipped_existing"`
	SkippedCap      int `json:"skipped_cap"`
	SkippedInvalid  int `json:"skipped_invalid"`
	FetchFailed     int `json:"fetch_failed"`
	WriteFailed     int `json:"write_failed"`
}

// Add accumulates other into c
func (c *Counts) Add(other Counts) {
	c.Considered += other.Considered
	c.Created += other.Created
	c.SkippedExisting += other.SkippedExisting
	c.SkippedCap += other.SkippedCap
	c.SkippedInvalid += other.SkippedInvalid
	c.FetchFailed += other.FetchFailed
	c.WriteFailed += other.WriteFailed
}

// MemberSummary is the per-member slice of a run summary
type MemberSummary struct {
	Username string `json:"username"`
	Inactive bool   `json:"inactive,omitempty"`
	Counts
	Errors []string `json:"errors,omitempty"`
}

// SyncRun is the summary of one sync invocation. It exists in memory for
// reporting; persistence into the run history store is optional and happens
// after the run finishes.
type SyncRun struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	DryRun     bool             `json:"dry_run"`
	Members    []*MemberSummary `json:"members"`
	Totals     Counts           `json:"totals"`
}

// NewSyncRun creates a run summary with the clock started
func NewSyncRun(id string, dryRun bool, now time.Time) *SyncRun {
	return &SyncRun{
		ID:        id,
		StartedAt: now,
		DryRun:    dryRun,
	}
}

// Member returns the summary slot for username, creating it on first use
func (r *SyncRun) Member(username string) *MemberSummary {
	for _, m := range r.Members {
		if m.Username == username {
			return m
		}
	}
	m := &MemberSummary{Username: username}
	r.Members = append(r.Members, m)
	return m
}

// Finish stamps the end time and rolls member counters into Totals
func (r *SyncRun) Finish(now time.Time) {
	r.FinishedAt = now
	r.Totals = Counts{}
	for _, m := range r.Members {
		r.Totals.Add(m.Counts)
	}
}

// MemberStats is a member's lifetime totals across recorded runs
type MemberStats struct {
	Username    string     `json:"username"`
	Runs        int        `json:"runs"`
	Created     int        `json:"created"`
	FetchFailed int        `json:"fetch_failed"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
}
