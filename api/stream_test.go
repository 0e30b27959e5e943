package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/asifanwar1/taskothon/domain"
	"github.com/asifanwar1/taskothon/store"
)

type flushRecorder struct{ *httptest.ResponseRecorder }

func (flushRecorder) Flush() {}

// pushCache builds a cache whose deliveries are driven by the returned func.
func pushCache(initial []domain.Task) (*store.Cache[domain.Task], func([]domain.Task)) {
	var sink func([]domain.Task, error)
	cache := store.NewCache[domain.Task](func(deliver func([]domain.Task, error)) func() {
		sink = deliver
		deliver(initial, nil)
		return func() { sink = nil }
	})
	push := func(tasks []domain.Task) {
		if sink != nil {
			sink(tasks, nil)
		}
	}
	return cache, push
}

func TestStreamWritesSnapshotOnConnect(t *testing.T) {
	tasksList := []domain.Task{{ID: "1", Title: "t", Date: "2024-02-01", Time: "09:00", Status: domain.StatusTodo}}
	cache, _ := pushCache(tasksList)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := flushRecorder{httptest.NewRecorder()}
	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)
	c := e.NewContext(req, rec)

	errCh := make(chan error, 1)
	go func() { errCh <- streamTasks(cache)(c) }()
	time.Sleep(100 * time.Millisecond)
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("handler error: %v", err)
	}

	data, _ := sonic.ConfigStd.Marshal(tasksList)
	expected := "data: " + string(data) + "\n\n"
	if rec.Body.String() != expected {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestStreamPushesUpdates(t *testing.T) {
	cache, push := pushCache([]domain.Task{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := flushRecorder{httptest.NewRecorder()}
	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)
	c := e.NewContext(req, rec)

	errCh := make(chan error, 1)
	go func() { errCh <- streamTasks(cache)(c) }()
	time.Sleep(50 * time.Millisecond)
	push([]domain.Task{{ID: "1", Title: "added", Date: "2024-02-01", Time: "09:00", Status: domain.StatusTodo}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("handler error: %v", err)
	}

	events := strings.Count(rec.Body.String(), "data: ")
	if events != 2 {
		t.Fatalf("expected 2 events, got %d in %q", events, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"added"`) {
		t.Fatalf("update missing from stream: %q", rec.Body.String())
	}
}

func TestStreamReleasesSubscription(t *testing.T) {
	cache, _ := pushCache([]domain.Task{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := flushRecorder{httptest.NewRecorder()}
	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)
	c := e.NewContext(req, rec)

	errCh := make(chan error, 1)
	go func() { errCh <- streamTasks(cache)(c) }()
	time.Sleep(50 * time.Millisecond)
	if got := cache.SubscriberCount(); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got := cache.SubscriberCount(); got != 0 {
		t.Fatalf("expected subscription released, got %d", got)
	}
}
