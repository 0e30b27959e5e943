package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/asifanwar1/taskothon/domain"
	"github.com/asifanwar1/taskothon/notify"
)

type memDB struct {
	tasks     []domain.Task
	readErr   error
	deleteErr error
	deletions [][]string
}

func (m *memDB) ReadAll(context.Context) ([]domain.Task, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]domain.Task, len(m.tasks))
	copy(out, m.tasks)
	return out, nil
}

func (m *memDB) DeleteByIDs(_ context.Context, ids []string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletions = append(m.deletions, ids)
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.tasks[:0]
	for _, t := range m.tasks {
		if !drop[t.ID] {
			kept = append(kept, t)
		}
	}
	m.tasks = kept
	return nil
}

type memCheckpoints struct {
	vals   map[string]string
	getErr error
	setErr error
}

func newMemCheckpoints() *memCheckpoints { return &memCheckpoints{vals: map[string]string{}} }

func (m *memCheckpoints) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.vals[key], nil
}

func (m *memCheckpoints) Set(_ context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.vals[key] = value
	return nil
}

type recExporter struct {
	err       error
	filenames []string
	batches   [][]domain.Task
}

func (r *recExporter) ExportRows(tasks []domain.Task, filename string) error {
	if r.err != nil {
		return r.err
	}
	r.filenames = append(r.filenames, filename)
	r.batches = append(r.batches, tasks)
	return nil
}

type fixedIdentity struct{ id *domain.Identity }

func (f fixedIdentity) Snapshot() *domain.Identity { return f.id }

var signedIn = fixedIdentity{id: &domain.Identity{ID: "u1"}}
var signedOut = fixedIdentity{}

func fixedNow(s string) func() time.Time {
	ts, err := time.ParseInLocation(domain.DateLayout, s, time.Local)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return ts }
}

type fixture struct {
	svc         *Service
	db          *memDB
	checkpoints *memCheckpoints
	exporter    *recExporter
	notifier    *notify.Recorder
}

func newFixture(db *memDB, ids IdentitySource, now func() time.Time) *fixture {
	f := &fixture{
		db:          db,
		checkpoints: newMemCheckpoints(),
		exporter:    &recExporter{},
		notifier:    &notify.Recorder{},
	}
	f.svc = New(db, f.checkpoints, f.exporter, f.notifier, ids, log.New(), now)
	return f
}

func TestArchivePreviousMonthSelectsOnlyThatMonth(t *testing.T) {
	db := &memDB{tasks: []domain.Task{
		{ID: "1", Title: "jan", Date: "2024-01-15", Time: "09:00", Status: domain.StatusDone},
		{ID: "2", Title: "feb", Date: "2024-02-01", Time: "08:00", Status: domain.StatusTodo},
	}}
	f := newFixture(db, signedIn, fixedNow("2024-02-10"))

	if err := f.svc.ArchivePreviousMonth(context.Background()); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if len(f.exporter.filenames) != 1 || f.exporter.filenames[0] != "tasks-2024-01.xlsx" {
		t.Fatalf("unexpected export files: %v", f.exporter.filenames)
	}
	if len(f.exporter.batches[0]) != 1 || f.exporter.batches[0][0].ID != "1" {
		t.Fatalf("unexpected batch: %v", f.exporter.batches[0])
	}
	if len(db.tasks) != 1 || db.tasks[0].ID != "2" {
		t.Fatalf("february task should survive: %v", db.tasks)
	}
	sent := f.notifier.Sent()
	if len(sent) != 1 || sent[0].Kind != notify.Success {
		t.Fatalf("expected success notification, got %v", sent)
	}
	if sent[0].Message != "Archived 1 tasks from January 2024" {
		t.Fatalf("unexpected message: %q", sent[0].Message)
	}
}

func TestArchiveSameMonthTwiceIsIdempotent(t *testing.T) {
	db := &memDB{tasks: []domain.Task{
		{ID: "1", Date: "2024-01-15", Time: "09:00"},
		{ID: "2", Date: "2024-01-20", Time: "10:00"},
	}}
	f := newFixture(db, signedIn, fixedNow("2024-02-10"))
	ctx := context.Background()

	if err := f.svc.ArchiveMonth(ctx, 2024, time.January); err != nil {
		t.Fatalf("first archive: %v", err)
	}
	if err := f.svc.ArchiveMonth(ctx, 2024, time.January); err != nil {
		t.Fatalf("second archive should succeed as no-op: %v", err)
	}

	if len(f.exporter.filenames) != 1 {
		t.Fatalf("second call must not re-export, got %v", f.exporter.filenames)
	}
	if len(db.deletions) != 1 {
		t.Fatalf("second call must not re-delete, got %v", db.deletions)
	}
	// Second call reports the empty set.
	sent := f.notifier.Sent()
	if sent[len(sent)-1].Kind != notify.Info {
		t.Fatalf("expected info notification for empty set, got %v", sent)
	}
}

func TestCheckAndArchiveOncePerDay(t *testing.T) {
	db := &memDB{tasks: []domain.Task{{ID: "1", Date: "2024-01-15", Time: "09:00"}}}
	f := newFixture(db, signedIn, fixedNow("2024-02-10"))
	ctx := context.Background()

	if err := f.svc.CheckAndArchive(ctx); err != nil {
		t.Fatalf("first check: %v", err)
	}
	if err := f.svc.CheckAndArchive(ctx); err != nil {
		t.Fatalf("second check: %v", err)
	}

	if len(f.exporter.filenames) != 1 {
		t.Fatalf("archive ran %d times, want 1", len(f.exporter.filenames))
	}
	if f.checkpoints.vals[checkpointKey] != "2024-02-10" {
		t.Fatalf("unexpected checkpoint: %q", f.checkpoints.vals[checkpointKey])
	}
}

func TestCheckAndArchiveWithoutIdentitySkipsSilently(t *testing.T) {
	db := &memDB{tasks: []domain.Task{{ID: "1", Date: "2024-01-15", Time: "09:00"}}}
	f := newFixture(db, signedOut, fixedNow("2024-02-10"))

	if err := f.svc.CheckAndArchive(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(f.exporter.filenames) != 0 {
		t.Fatal("must not archive without identity")
	}
	// No checkpoint: the job retries once authenticated.
	if f.checkpoints.vals[checkpointKey] != "" {
		t.Fatalf("checkpoint written without identity: %q", f.checkpoints.vals[checkpointKey])
	}
}

func TestCheckAndArchiveFirstOfMonthSkipsButRecordsCheck(t *testing.T) {
	db := &memDB{tasks: []domain.Task{{ID: "1", Date: "2024-01-15", Time: "09:00"}}}
	f := newFixture(db, signedIn, fixedNow("2024-02-01"))

	if err := f.svc.CheckAndArchive(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(f.exporter.filenames) != 0 {
		t.Fatal("must not archive on the first of the month")
	}
	if f.checkpoints.vals[checkpointKey] != "2024-02-01" {
		t.Fatalf(`"checked" must still be recorded on day-1 skip, got %q`, f.checkpoints.vals[checkpointKey])
	}
}

func TestCheckAndArchiveEmptyMonthStillCheckpoints(t *testing.T) {
	f := newFixture(&memDB{}, signedIn, fixedNow("2024-02-10"))

	if err := f.svc.CheckAndArchive(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(f.exporter.filenames) != 0 {
		t.Fatal("nothing to export")
	}
	if f.checkpoints.vals[checkpointKey] != "2024-02-10" {
		t.Fatalf("empty month should still checkpoint, got %q", f.checkpoints.vals[checkpointKey])
	}
}

func TestExportFailureLeavesCheckpointAndData(t *testing.T) {
	db := &memDB{tasks: []domain.Task{{ID: "1", Date: "2024-01-15", Time: "09:00"}}}
	f := newFixture(db, signedIn, fixedNow("2024-02-10"))
	f.exporter.err = errors.New("disk full")

	err := f.svc.CheckAndArchive(context.Background())
	var exportErr *domain.ExportError
	if !errors.As(err, &exportErr) {
		t.Fatalf("expected ExportError, got %v", err)
	}
	if f.checkpoints.vals[checkpointKey] != "" {
		t.Fatal("checkpoint must not be written on failure")
	}
	if len(db.tasks) != 1 {
		t.Fatal("tasks must not be deleted when export fails")
	}
	sent := f.notifier.Sent()
	if len(sent) == 0 || sent[len(sent)-1].Kind != notify.Error {
		t.Fatalf("expected error notification, got %v", sent)
	}
}

func TestDeleteFailureLeavesCheckpoint(t *testing.T) {
	db := &memDB{
		tasks:     []domain.Task{{ID: "1", Date: "2024-01-15", Time: "09:00"}},
		deleteErr: errors.New("locked"),
	}
	f := newFixture(db, signedIn, fixedNow("2024-02-10"))

	err := f.svc.CheckAndArchive(context.Background())
	var exportErr *domain.ExportError
	if !errors.As(err, &exportErr) || exportErr.Stage != "delete" {
		t.Fatalf("expected delete-stage ExportError, got %v", err)
	}
	if f.checkpoints.vals[checkpointKey] != "" {
		t.Fatal("checkpoint must not be written on failure")
	}
}

func TestManualArchiveRequiresIdentity(t *testing.T) {
	f := newFixture(&memDB{}, signedOut, fixedNow("2024-02-10"))
	if err := f.svc.ArchiveMonth(context.Background(), 2024, time.January); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestManualArchiveIgnoresGates(t *testing.T) {
	db := &memDB{tasks: []domain.Task{{ID: "1", Date: "2024-01-15", Time: "09:00"}}}
	f := newFixture(db, signedIn, fixedNow("2024-02-01")) // day 1
	f.checkpoints.vals[checkpointKey] = "2024-02-01"      // already checked today

	if err := f.svc.ArchiveMonth(context.Background(), 2024, time.January); err != nil {
		t.Fatalf("manual archive: %v", err)
	}
	if len(f.exporter.filenames) != 1 {
		t.Fatal("manual archive must run despite day-1 and checkpoint gates")
	}
}

func TestArchivableTasksPreview(t *testing.T) {
	db := &memDB{tasks: []domain.Task{
		{ID: "old", Date: "2024-01-15", Time: "09:00"},
		{ID: "cur", Date: "2024-02-05", Time: "09:00"},
	}}
	f := newFixture(db, signedIn, fixedNow("2024-02-10"))

	got, err := f.svc.ArchivableTasks(context.Background())
	if err != nil {
		t.Fatalf("archivable: %v", err)
	}
	if len(got) != 1 || got[0].ID != "old" {
		t.Fatalf("unexpected preview: %v", got)
	}
}

func TestSchedulerTickSwallowsFailures(t *testing.T) {
	db := &memDB{readErr: errors.New("db gone")}
	f := newFixture(db, signedIn, fixedNow("2024-02-10"))
	sched := NewScheduler(f.svc, time.Hour, log.New())

	sched.Tick() // must not panic or propagate
}

func TestSchedulerCancelBeforeFire(t *testing.T) {
	db := &memDB{tasks: []domain.Task{{ID: "1", Date: "2024-01-15", Time: "09:00"}}}
	f := newFixture(db, signedIn, fixedNow("2024-02-10"))
	sched := NewScheduler(f.svc, time.Hour, log.New())

	sched.Arm()
	sched.Cancel()
	sched.Cancel() // harmless when disarmed

	time.Sleep(10 * time.Millisecond)
	if len(f.exporter.filenames) != 0 {
		t.Fatal("cancelled timer must not archive")
	}
}
