// Package archive exports and prunes aged tasks once per calendar day.
package archive

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/asifanwar1/taskothon/domain"
	"github.com/asifanwar1/taskothon/export"
	"github.com/asifanwar1/taskothon/notify"
)

// checkpointKey holds the device-local date of the last archive check.
// The checkpoint records "checked today", not "archived": it is written
// even when the archive itself is skipped, so the job never re-runs within
// the same calendar day.
const checkpointKey = "lastArchiveCheck"

// Database reads the full unfiltered collection and prunes archived rows.
// The scheduler deliberately bypasses the task cache, which may be scoped
// to the signed-in identity.
type Database interface {
	ReadAll(ctx context.Context) ([]domain.Task, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}

// Checkpoints persists the single archive checkpoint. Satisfied by kv.Store.
type Checkpoints interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Exporter hands archived rows to the spreadsheet collaborator.
type Exporter interface {
	ExportRows(tasks []domain.Task, filename string) error
}

// IdentitySource reports the authenticated principal.
type IdentitySource interface {
	Snapshot() *domain.Identity
}

// Service implements the archival job.
type Service struct {
	db          Database
	checkpoints Checkpoints
	exporter    Exporter
	notifier    notify.Notifier
	ids         IdentitySource
	logger      *log.Logger
	now         func() time.Time
}

// New creates the service. now defaults to time.Now.
func New(db Database, checkpoints Checkpoints, exporter Exporter, notifier notify.Notifier, ids IdentitySource, logger *log.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:          db,
		checkpoints: checkpoints,
		exporter:    exporter,
		notifier:    notifier,
		ids:         ids,
		logger:      logger,
		now:         now,
	}
}

// CheckAndArchive is the once-per-day scheduled check. It is a no-op when
// the checkpoint already names today or no identity is present; otherwise
// it archives the previous month and records the checkpoint. Failures leave
// the checkpoint untouched so the next calendar day retries.
func (s *Service) CheckAndArchive(ctx context.Context) error {
	now := s.now()
	today := now.Format(domain.DateLayout)

	last, err := s.checkpoints.Get(ctx, checkpointKey)
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	if last == today {
		return nil
	}
	if s.ids.Snapshot() == nil {
		// No checkpoint write: retry at the next opportunity once signed in.
		return nil
	}

	if now.Day() > 1 {
		year, month := previousMonth(now)
		if err := s.archiveMonth(ctx, year, month, false); err != nil {
			s.notifier.Notify(notify.Error, "Failed to archive tasks. Please try again.")
			return err
		}
	}
	// "Checked" is recorded even when archiving was skipped on the 1st.
	if err := s.checkpoints.Set(ctx, checkpointKey, today); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// ArchivePreviousMonth exports and deletes all tasks dated in the previous
// calendar month. On the first day of a month it does nothing: records for
// the just-ended month may still be settling.
func (s *Service) ArchivePreviousMonth(ctx context.Context) error {
	if s.ids.Snapshot() == nil {
		return domain.ErrAuthRequired
	}
	now := s.now()
	if now.Day() <= 1 {
		return nil
	}
	year, month := previousMonth(now)
	if err := s.archiveMonth(ctx, year, month, false); err != nil {
		s.notifier.Notify(notify.Error, "Failed to archive tasks. Please try again.")
		return err
	}
	return nil
}

// ArchiveMonth is the on-demand variant: no first-of-month skip, no
// once-per-day gate. Safe to call repeatedly; a month already archived
// yields an empty set and succeeds as a no-op.
func (s *Service) ArchiveMonth(ctx context.Context, year int, month time.Month) error {
	if s.ids.Snapshot() == nil {
		return domain.ErrAuthRequired
	}
	if err := s.archiveMonth(ctx, year, month, true); err != nil {
		s.notifier.Notify(notify.Error, "Failed to archive tasks. Please try again.")
		return err
	}
	return nil
}

// ArchivableTasks previews everything dated before the current month.
func (s *Service) ArchivableTasks(ctx context.Context) ([]domain.Task, error) {
	if s.ids.Snapshot() == nil {
		return nil, domain.ErrAuthRequired
	}
	all, err := s.db.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)

	out := []domain.Task{}
	for _, t := range all {
		if t.When().Before(monthStart) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Service) archiveMonth(ctx context.Context, year int, month time.Month, notifyEmpty bool) error {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, 0)

	all, err := s.db.ReadAll(ctx)
	if err != nil {
		return &domain.ExportError{Stage: "read", Err: err}
	}

	batch := []domain.Task{}
	for _, t := range all {
		when := t.When()
		if !when.Before(start) && when.Before(end) {
			batch = append(batch, t)
		}
	}
	if len(batch) == 0 {
		if notifyEmpty {
			s.notifier.Notify(notify.Info, "No tasks found for the selected month.")
		}
		return nil
	}

	filename := export.MonthFilename(year, int(month))
	if err := s.exporter.ExportRows(batch, filename); err != nil {
		return &domain.ExportError{Stage: "export", Err: err}
	}

	ids := make([]string, 0, len(batch))
	for _, t := range batch {
		ids = append(ids, t.ID)
	}
	if err := s.db.DeleteByIDs(ctx, ids); err != nil {
		return &domain.ExportError{Stage: "delete", Err: err}
	}

	monthName := fmt.Sprintf("%s %d", month, year)
	s.notifier.Notify(notify.Success, fmt.Sprintf("Archived %d tasks from %s", len(batch), monthName))
	s.logger.WithFields(log.Fields{
		"month":    monthName,
		"archived": len(batch),
		"file":     filename,
	}).Info("archive complete")
	return nil
}

func previousMonth(now time.Time) (int, time.Month) {
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local).AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}
