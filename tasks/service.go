// Package tasks implements the task CRUD operations. Every operation checks
// for an authenticated identity before touching storage and fails fast with
// domain.ErrAuthRequired otherwise.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/asifanwar1/taskothon/domain"
)

// Database is the slice of the local database the service uses.
type Database interface {
	ReadAll(ctx context.Context) ([]domain.Task, error)
	Insert(ctx context.Context, draft domain.Draft) (string, error)
	UpdateFields(ctx context.Context, id string, fields domain.Fields) error
	DeleteByID(ctx context.Context, id string) error
	LookupByIndex(ctx context.Context, field, value string) ([]domain.Task, error)
}

// IdentitySource reports the authenticated principal.
type IdentitySource interface {
	Snapshot() *domain.Identity
}

// DateRange limits reads to a trailing window.
type DateRange string

const (
	RangeToday DateRange = "today"
	RangeWeek  DateRange = "week"
	RangeMonth DateRange = "month"
	RangeAll   DateRange = "all"
)

// Service executes task operations against the local database.
type Service struct {
	db  Database
	ids IdentitySource
	now func() time.Time
}

// New creates the service. now defaults to time.Now.
func New(db Database, ids IdentitySource, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{db: db, ids: ids, now: now}
}

func (s *Service) requireIdentity() error {
	if s.ids.Snapshot() == nil {
		return domain.ErrAuthRequired
	}
	return nil
}

// List returns all tasks, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Task, error) {
	if err := s.requireIdentity(); err != nil {
		return nil, err
	}
	tasks, err := s.db.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	domain.SortByDateDesc(tasks)
	return tasks, nil
}

// Filtered returns tasks filtered by status ("all" or "" disables the
// status filter) and trailing date range, newest first.
func (s *Service) Filtered(ctx context.Context, status string, dateRange DateRange) ([]domain.Task, error) {
	if err := s.requireIdentity(); err != nil {
		return nil, err
	}
	tasks, err := s.db.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	if status != "" && status != "all" {
		tasks = filterByStatus(tasks, domain.Status(status))
	}
	if dateRange != "" && dateRange != RangeAll {
		tasks = s.filterByDateRange(tasks, dateRange)
	}
	domain.SortByDateDesc(tasks)
	return tasks, nil
}

// ByID returns one task, or NotFound.
func (s *Service) ByID(ctx context.Context, id string) (domain.Task, error) {
	if err := s.requireIdentity(); err != nil {
		return domain.Task{}, err
	}
	tasks, err := s.db.ReadAll(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Task{}, domain.NotFoundError(id)
}

// ByStatus returns tasks in the given state, newest first.
func (s *Service) ByStatus(ctx context.Context, status domain.Status) ([]domain.Task, error) {
	if err := s.requireIdentity(); err != nil {
		return nil, err
	}
	tasks, err := s.db.LookupByIndex(ctx, "status", string(status))
	if err != nil {
		return nil, err
	}
	domain.SortByDateDesc(tasks)
	return tasks, nil
}

// ByCategory returns tasks in the given category, newest first.
func (s *Service) ByCategory(ctx context.Context, category string) ([]domain.Task, error) {
	if err := s.requireIdentity(); err != nil {
		return nil, err
	}
	tasks, err := s.db.LookupByIndex(ctx, "category", category)
	if err != nil {
		return nil, err
	}
	domain.SortByDateDesc(tasks)
	return tasks, nil
}

// Create validates and stores a new task, returning it with its assigned id.
func (s *Service) Create(ctx context.Context, draft domain.Draft) (domain.Task, error) {
	if err := s.requireIdentity(); err != nil {
		return domain.Task{}, err
	}
	if strings.TrimSpace(draft.Title) == "" {
		return domain.Task{}, fmt.Errorf("%w: title must not be empty", domain.ErrInvalidInput)
	}
	if !draft.Status.Valid() {
		return domain.Task{}, fmt.Errorf("%w: unknown status", domain.ErrInvalidInput)
	}
	if _, err := time.Parse(domain.DateLayout, draft.Date); err != nil {
		return domain.Task{}, fmt.Errorf("%w: invalid date", domain.ErrInvalidInput)
	}
	if _, err := time.Parse(domain.TimeLayout, draft.Time); err != nil {
		return domain.Task{}, fmt.Errorf("%w: invalid time", domain.ErrInvalidInput)
	}

	id, err := s.db.Insert(ctx, draft)
	if err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID:          id,
		Title:       draft.Title,
		Description: draft.Description,
		Date:        draft.Date,
		Time:        draft.Time,
		Status:      draft.Status,
		JiraLink:    draft.JiraLink,
		Category:    draft.Category,
	}, nil
}

// Update applies a partial update. The combined date+time is immutable and
// is not part of Fields at all.
func (s *Service) Update(ctx context.Context, id string, fields domain.Fields) error {
	if err := s.requireIdentity(); err != nil {
		return err
	}
	if fields.Status != nil && !fields.Status.Valid() {
		return fmt.Errorf("%w: unknown status", domain.ErrInvalidInput)
	}
	if fields.Title != nil && strings.TrimSpace(*fields.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", domain.ErrInvalidInput)
	}
	return s.db.UpdateFields(ctx, id, fields)
}

// Delete removes one task.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.requireIdentity(); err != nil {
		return err
	}
	return s.db.DeleteByID(ctx, id)
}

func filterByStatus(tasks []domain.Task, status domain.Status) []domain.Task {
	out := tasks[:0:0]
	for _, t := range tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

func (s *Service) filterByDateRange(tasks []domain.Task, dateRange DateRange) []domain.Task {
	now := s.now()
	var cutoff time.Time
	switch dateRange {
	case RangeToday:
		cutoff = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case RangeWeek:
		cutoff = now.AddDate(0, 0, -7)
	case RangeMonth:
		cutoff = now.AddDate(0, -1, 0)
	default:
		return tasks
	}

	out := tasks[:0:0]
	for _, t := range tasks {
		if !t.When().Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
