package layoutcache

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/commitcanvas/pkg/graph"
)

type countingStore struct {
	*MemoryStore
	saves atomic.Int32
}

func (c *countingStore) Save(ctx context.Context, repo string, p graph.Positions) error {
	c.saves.Add(1)
	return c.MemoryStore.Save(ctx, repo, p)
}

func quietWriter(s Store, opts WriterOptions) *Writer {
	opts.Logger = log.New(io.Discard)
	return NewWriter(s, opts)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWriterCoalescesBursts(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	w := quietWriter(store, WriterOptions{Delay: 30 * time.Millisecond})
	defer w.Close()

	for i := range 10 {
		w.Schedule("/repo", graph.Positions{"a": {X: float64(i)}})
	}
	if !w.Pending("/repo") {
		t.Fatal("write should be pending")
	}

	waitFor(t, func() bool { return store.saves.Load() == 1 })
	time.Sleep(60 * time.Millisecond)
	if n := store.saves.Load(); n != 1 {
		t.Errorf("saves = %d, want 1 (trailing edge only)", n)
	}

	got, _ := store.Get(context.Background(), "/repo")
	if got["a"].X != 9 {
		t.Errorf("persisted a = %v, want last scheduled value", got["a"])
	}
}

func TestWriterFlush(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	w := quietWriter(store, WriterOptions{Delay: time.Hour})

	w.Schedule("/a", graph.Positions{"x": {X: 1}})
	w.Schedule("/b/", graph.Positions{"y": {X: 2}})
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n := store.saves.Load(); n != 2 {
		t.Errorf("saves = %d, want 2", n)
	}
	if w.Pending("/a") {
		t.Error("nothing should be pending after Flush")
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	w.Schedule("/a", graph.Positions{"x": {}})
	if w.Pending("/a") {
		t.Error("Schedule after Close should be ignored")
	}
}

func TestWriterCancel(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	w := quietWriter(store, WriterOptions{Delay: time.Hour})
	w.Schedule("/a", graph.Positions{"x": {}})
	w.Cancel("/a")
	_ = w.Close()
	if n := store.saves.Load(); n != 0 {
		t.Errorf("saves = %d, want 0", n)
	}
}

// gatedStore blocks Save until release is closed.
type gatedStore struct {
	*MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Save(ctx context.Context, repo string, p graph.Positions) error {
	g.entered <- struct{}{}
	<-g.release
	return g.MemoryStore.Save(ctx, repo, p)
}

func TestWriterCancelWaitsForRunningWrite(t *testing.T) {
	store := &gatedStore{
		MemoryStore: NewMemoryStore(),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	w := quietWriter(store, WriterOptions{Delay: time.Millisecond})
	defer w.Close()

	w.Schedule("/repo", graph.Positions{"a": {X: 1}})
	<-store.entered

	var cancelled atomic.Bool
	done := make(chan struct{})
	go func() {
		w.Cancel("/repo")
		cancelled.Store(true)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	if cancelled.Load() {
		t.Fatal("Cancel returned while a write was still running")
	}
	close(store.release)
	<-done

	// Anything deleted after Cancel stays deleted.
	ctx := context.Background()
	if err := store.Delete(ctx, "/repo"); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Get(ctx, "/repo"); len(got) != 0 {
		t.Errorf("store = %v after Cancel and Delete", got)
	}
}

type flakyStore struct {
	*MemoryStore
	failures atomic.Int32
}

func (f *flakyStore) Save(ctx context.Context, repo string, p graph.Positions) error {
	if f.failures.Add(-1) >= 0 {
		return Retryable(errors.New("connection reset"))
	}
	return f.MemoryStore.Save(ctx, repo, p)
}

func TestWriterRetriesAndReports(t *testing.T) {
	flaky := &flakyStore{MemoryStore: NewMemoryStore()}
	flaky.failures.Store(1)

	var mu sync.Mutex
	var reported []error
	w := quietWriter(flaky, WriterOptions{
		Delay:    time.Hour,
		Attempts: 2,
		Backoff:  time.Millisecond,
		OnError: func(repo string, err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		},
	})

	w.Schedule("/a", graph.Positions{"x": {X: 1}})
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("Flush after one transient failure: %v", err)
	}

	flaky.failures.Store(5)
	w.Schedule("/a", graph.Positions{"x": {X: 2}})
	if err := w.Flush(context.Background()); err == nil {
		t.Fatal("Flush should fail once retries are exhausted")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(reported) != 1 {
		t.Errorf("OnError called %d times, want 1", len(reported))
	}
}
