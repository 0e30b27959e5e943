package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/asifanwar1/taskothon/domain"
)

//go:embed schema.sql
var schemaSQL string

// DB is the local task database. Reads always return tasks in insertion
// order (rowid); callers that care about the date+time order sort on top.
//
// Every successful write notifies the live-query broker, so registered live
// queries re-materialize after each mutation.
type DB struct {
	db     *sql.DB
	broker *broker
}

// Open creates or opens the SQLite database at path and applies the schema.
// WAL mode with a single writer connection avoids SQLITE_BUSY under the
// app's write pattern.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{db: db, broker: newBroker()}, nil
}

// Close closes the database. Live query handles become inert.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

const taskColumns = "id, title, description, date, time, status, jira_link, category"

func scanTasks(rows *sql.Rows) ([]domain.Task, error) {
	tasks := []domain.Task{}
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Date, &t.Time, &t.Status, &t.JiraLink, &t.Category); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ReadAll returns every task in insertion order.
func (d *DB) ReadAll(ctx context.Context) ([]domain.Task, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT "+taskColumns+" FROM tasks ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// indexedFields maps the lookup fields exposed by LookupByIndex to their
// columns. Anything else is rejected rather than interpolated.
var indexedFields = map[string]string{
	"status":   "status",
	"category": "category",
	"date":     "date",
}

// LookupByIndex returns tasks whose indexed field equals value, in
// insertion order.
func (d *DB) LookupByIndex(ctx context.Context, field, value string) ([]domain.Task, error) {
	col, ok := indexedFields[field]
	if !ok {
		return nil, fmt.Errorf("lookup: field %q is not indexed", field)
	}
	rows, err := d.db.QueryContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE "+col+" = ? ORDER BY rowid", value)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", field, err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// Insert stores a new task and returns its assigned id.
func (d *DB) Insert(ctx context.Context, draft domain.Draft) (string, error) {
	id := uuid.NewString()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, date, time, status, jira_link, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, draft.Title, draft.Description, draft.Date, draft.Time, draft.Status, draft.JiraLink, draft.Category)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	d.broker.notify()
	return id, nil
}

// UpdateFields applies a partial update. The date and time columns are never
// touched: the combined timestamp is immutable after creation.
func (d *DB) UpdateFields(ctx context.Context, id string, fields domain.Fields) error {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if fields.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *fields.Title)
	}
	if fields.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *fields.Description)
	}
	if fields.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *fields.Status)
	}
	if fields.JiraLink != nil {
		sets = append(sets, "jira_link = ?")
		args = append(args, *fields.JiraLink)
	}
	if fields.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *fields.Category)
	}
	if len(sets) == 0 {
		// Nothing to change, but the target must still exist.
		var one int
		err := d.db.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE id = ?", id).Scan(&one)
		if err == sql.ErrNoRows {
			return domain.NotFoundError(id)
		}
		return err
	}

	args = append(args, id)
	res, err := d.db.ExecContext(ctx, "UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n == 0 {
		return domain.NotFoundError(id)
	}
	d.broker.notify()
	return nil
}

// DeleteByID removes one task. Deleting a missing id fails with NotFound.
func (d *DB) DeleteByID(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n == 0 {
		return domain.NotFoundError(id)
	}
	d.broker.notify()
	return nil
}

// DeleteByIDs removes the given ids in one statement. Ids that are already
// gone are ignored, which keeps the archive delete step idempotent.
func (d *DB) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?, ", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := d.db.ExecContext(ctx, "DELETE FROM tasks WHERE id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	d.broker.notify()
	return nil
}
