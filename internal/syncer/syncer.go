// Package syncer runs the member publication sync: roster in, namespaced
// local entries and a run summary out. Members are processed sequentially;
// failures below the roster level are isolated per member or per entry and
// recorded in the summary, never fatal.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcpherson-lab/pubsync/internal/collector"
	"github.com/mcpherson-lab/pubsync/internal/config"
	"github.com/mcpherson-lab/pubsync/internal/domain"
	apperrors "github.com/mcpherson-lab/pubsync/internal/errors"
	"github.com/mcpherson-lab/pubsync/internal/frontmatter"
)

// PublicationsDir is the local subtree the sync job owns. Entries it did
// not create (no {username}- prefix from the roster) are never touched.
const PublicationsDir = "publications"

// Options control a single run
type Options struct {
	// DryRun computes and reports intended actions without writing
	DryRun bool
	// Force re-syncs entries that are already present
	Force bool
	// Member restricts the run to one roster member
	Member string
	// Now supplies the run clock; defaults to time.Now
	Now func() time.Time
}

// Syncer executes sync runs
type Syncer struct {
	roster *config.Roster
	coll   collector.Collector
	copier *Copier
	log    *zap.Logger
	opts   Options
}

// New creates a syncer writing into fs (rooted at the site tree)
func New(roster *config.Roster, coll collector.Collector, fs billy.Filesystem, log *zap.Logger, opts Options) *Syncer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{
		roster: roster,
		coll:   coll,
		copier: NewCopier(fs, PublicationsDir),
		log:    log,
		opts:   opts,
	}
}

// Run executes one sync pass over the roster and returns the run summary.
// The returned error is non-nil only for roster-level problems (unknown
// --member) or context cancellation; per-member and per-entry failures are
// recorded in the summary.
func (s *Syncer) Run(ctx context.Context) (*domain.SyncRun, error) {
	members := s.roster.Members
	if s.opts.Member != "" {
		m := s.roster.Find(s.opts.Member)
		if m == nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("member %s not found in roster", s.opts.Member), nil)
		}
		members = []*domain.Member{m}
	}

	run := domain.NewSyncRun(uuid.NewString(), s.opts.DryRun, s.opts.Now())
	s.log.Info("starting sync run",
		zap.String("run_id", run.ID),
		zap.Int("members", len(members)),
		zap.Bool("dry_run", s.opts.DryRun))

	for _, m := range members {
		if err := ctx.Err(); err != nil {
			run.Finish(s.opts.Now())
			return run, err
		}

		ms := run.Member(m.Username)
		if !m.Active {
			ms.Inactive = true
			s.log.Info("skipping inactive member", zap.String("member", m.Username))
			continue
		}
		s.syncMember(ctx, m, ms)
	}

	run.Finish(s.opts.Now())
	return run, nil
}

func (s *Syncer) syncMember(ctx context.Context, m *domain.Member, ms *domain.MemberSummary) {
	log := s.log.With(zap.String("member", m.Username))

	entries, failures, err := s.coll.ListEntries(ctx, m)
	if err != nil {
		// Partial-failure isolation: record and continue with the others
		ms.Errors = append(ms.Errors, err.Error())
		log.Warn("could not list remote entries", zap.Error(err))
		return
	}
	log.Info("listed remote entries", zap.Int("count", len(entries)))

	// Directories the listing saw but could not read count as failed entries
	for _, f := range failures {
		ms.Considered++
		ms.FetchFailed++
		ms.Errors = append(ms.Errors, fmt.Sprintf("%s: %v", f.DirName, f.Err))
		log.Warn("could not list entry directory",
			zap.String("entry", f.DirName), zap.Error(f.Err))
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		s.syncEntry(ctx, m, ms, entry, log)
	}
}

// syncEntry classifies and, when accepted, materializes one entry.
// Evaluation order: existence, then cap, then validity. Existence
// short-circuits before any content is fetched.
func (s *Syncer) syncEntry(ctx context.Context, m *domain.Member, ms *domain.MemberSummary, entry *domain.RemoteEntry, log *zap.Logger) {
	ms.Considered++
	cfg := s.roster.SyncConfig
	localName := domain.LocalEntryName(m.Username, entry.DirName, cfg.LowercaseUsernames)
	elog := log.With(zap.String("entry", entry.DirName))

	if !s.opts.Force && s.copier.Exists(localName) {
		ms.SkippedExisting++
		elog.Debug("already synced, skipping")
		return
	}
	if cfg.MaxPostsPerMember > 0 && ms.Created >= cfg.MaxPostsPerMember {
		ms.SkippedCap++
		elog.Debug("member cap reached, skipping")
		return
	}

	if err := s.coll.FetchEntry(ctx, m, entry); err != nil {
		ms.FetchFailed++
		ms.Errors = append(ms.Errors, fmt.Sprintf("%s: %v", entry.DirName, err))
		elog.Warn("fetch failed", zap.Error(err))
		return
	}

	doc, err := frontmatter.Parse(entry.Content)
	if err != nil {
		ms.SkippedInvalid++
		ms.Errors = append(ms.Errors, fmt.Sprintf("%s: %v", entry.DirName, err))
		elog.Warn("invalid front matter, entry excluded", zap.Error(err))
		return
	}
	if doc.Fields.Title == "" {
		ms.SkippedInvalid++
		elog.Warn("entry has no title, skipping")
		return
	}

	rewritten := frontmatter.Rewrite(doc, frontmatter.Attribution{
		MemberName:  m.Name,
		Username:    m.Username,
		ProfileURL:  m.ProfileURL,
		OriginalURL: entry.SourceURL,
		Directory:   entry.DirName,
	}, frontmatter.Options{
		AddAttribution: cfg.AddAttribution,
		PreserveDates:  cfg.PreserveDates,
		SyncDate:       s.opts.Now(),
	})

	if s.opts.DryRun {
		ms.Created++
		elog.Info("[dry-run] would create entry",
			zap.String("path", PublicationsDir+"/"+localName))
		return
	}

	if err := s.copier.Materialize(localName, entry.IndexName, rewritten, entry.Assets); err != nil {
		ms.WriteFailed++
		ms.Errors = append(ms.Errors, fmt.Sprintf("%s: %v", entry.DirName, err))
		elog.Warn("write failed", zap.Error(err))
		return
	}

	ms.Created++
	elog.Info("created entry", zap.String("path", PublicationsDir+"/"+localName))
}
