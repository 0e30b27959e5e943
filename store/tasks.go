package store

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/asifanwar1/taskothon/domain"
	"github.com/asifanwar1/taskothon/storage"
)

// NewTaskCache wires a Cache over the local database's live query, scoped to
// the authenticated identity. With no identity present the materialization
// is the empty list and the cache still reports loaded: there is nothing to
// wait for. Identity changes re-run the query even without a table write.
func NewTaskCache(db *storage.DB, ids *IdentityStore, logger *log.Logger) *Cache[domain.Task] {
	return NewCache(func(deliver func([]domain.Task, error)) func() {
		handle := db.SubscribeToChanges(func(ctx context.Context) ([]domain.Task, error) {
			if ids.Snapshot() == nil {
				return []domain.Task{}, nil
			}
			tasks, err := db.ReadAll(ctx)
			if err != nil {
				logger.WithError(err).Error("task cache: read failed")
				return []domain.Task{}, nil
			}
			domain.SortByDateDesc(tasks)
			return tasks, nil
		}, deliver)

		unsubIdentity := ids.Subscribe(handle.Refresh)
		return func() {
			unsubIdentity()
			handle.Close()
		}
	})
}
