package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"media-transcription-proxy/internal/models"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sampleResult() models.TranscriptionResult {
	return models.TranscriptionResult{
		Text: "Hello, how are you today? I'm doing great.",
		Segments: []models.Segment{
			{
				ID: 1, Text: "Hello, how are you today?", Start: 0.5, End: 2.3,
				AvgLogprob: -0.12, Language: "en", Speaker: "A",
				Words: []models.Word{{Word: "Hello", Start: 0.5, End: 0.9, Score: 0.98, Speaker: "A"}},
			},
			{
				ID: 2, Text: "I'm doing great.", Start: 2.5, End: 4.2,
				AvgLogprob: -0.08, Language: "en", Speaker: "B", Words: []models.Word{},
			},
		},
	}
}

func newTestMemory(clock *fakeClock) *Memory {
	return NewMemory(DefaultPolicy(), WithClock(clock.Now))
}

func TestMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestMemory(clock)

	want := sampleResult()
	id, err := s.Store(ctx, want)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	clock.Advance(DefaultPolicy().RetentionAfterRetrieval + time.Second)

	if _, err := s.Get(ctx, id); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after retention window, got %v", err)
	}
}

func TestMemory_GetDoesNotDeleteImmediately(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestMemory(clock)

	id, _ := s.Store(ctx, sampleResult())
	if _, err := s.Get(ctx, id); err != nil {
		t.Fatalf("first Get failed: %v", err)
	}

	clock.Advance(30 * time.Second)
	if _, err := s.Get(ctx, id); err != nil {
		t.Errorf("second Get within retention window should succeed, got %v", err)
	}
	if n, _ := s.Len(ctx); n != 1 {
		t.Errorf("expected entry to remain until sweep, got %d entries", n)
	}
}

func TestMemory_RetrievedAtStampedOnce(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestMemory(clock)

	id, _ := s.Store(ctx, sampleResult())

	clock.Advance(10 * time.Second)
	s.Get(ctx, id)
	first, _ := s.Entry(id)
	if first.RetrievedAt == nil {
		t.Fatal("expected RetrievedAt to be stamped")
	}

	clock.Advance(40 * time.Second)
	s.Get(ctx, id)
	second, _ := s.Entry(id)
	if !second.RetrievedAt.Equal(*first.RetrievedAt) {
		t.Errorf("RetrievedAt reset: first=%v second=%v", first.RetrievedAt, second.RetrievedAt)
	}

	// retention is measured from the first retrieval: 40s + 21s > 60s
	clock.Advance(21 * time.Second)
	if _, err := s.Get(ctx, id); err != ErrNotFound {
		t.Errorf("expected retention to be measured from first retrieval, got %v", err)
	}
}

func TestMemory_HasDoesNotMarkRetrieval(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestMemory(clock)

	id, _ := s.Store(ctx, sampleResult())

	ok, err := s.Has(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Has() = %v, %v; want true, nil", ok, err)
	}
	e, _ := s.Entry(id)
	if e.RetrievedAt != nil {
		t.Error("Has must not stamp RetrievedAt")
	}

	if ok, _ := s.Has(ctx, "missing"); ok {
		t.Error("Has should be false for unknown id")
	}
}

func TestMemory_AgeExpiryWithoutGet(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestMemory(clock)

	id, _ := s.Store(ctx, sampleResult())

	clock.Advance(DefaultPolicy().MaxAge - time.Second)
	stats, _ := s.Sweep(ctx)
	if stats.Total() != 0 {
		t.Fatalf("expected nothing swept before MaxAge, got %+v", stats)
	}

	clock.Advance(2 * time.Second)
	stats, _ = s.Sweep(ctx)
	if stats.Aged != 1 || stats.Retrieved != 0 {
		t.Errorf("expected one aged entry, got %+v", stats)
	}
	if ok, _ := s.Has(ctx, id); ok {
		t.Error("entry should be gone after age expiry")
	}
	if n, _ := s.Len(ctx); n != 0 {
		t.Errorf("expected empty store, got %d", n)
	}
}

func TestMemory_SweepRetrievedEntries(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestMemory(clock)

	retrieved, _ := s.Store(ctx, sampleResult())
	pending, _ := s.Store(ctx, sampleResult())
	s.Get(ctx, retrieved)

	clock.Advance(2 * time.Minute)
	stats, _ := s.Sweep(ctx)

	if stats.Retrieved != 1 || stats.Aged != 0 {
		t.Errorf("expected one retrieved entry swept, got %+v", stats)
	}
	if ok, _ := s.Has(ctx, pending); !ok {
		t.Error("unretrieved entry within MaxAge must survive the sweep")
	}
}

func TestMemory_StoreAs(t *testing.T) {
	ctx := context.Background()
	s := newTestMemory(newFakeClock())

	if err := s.StoreAs(ctx, "task-123", sampleResult()); err != nil {
		t.Fatalf("StoreAs failed: %v", err)
	}
	if _, err := s.Get(ctx, "task-123"); err != nil {
		t.Errorf("Get after StoreAs failed: %v", err)
	}
	if err := s.StoreAs(ctx, "", sampleResult()); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestMemory_IDsAreUnique(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(DefaultPolicy())

	numGoroutines := 50
	perGoroutine := 20

	var wg sync.WaitGroup
	ids := make(chan string, numGoroutines*perGoroutine)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id, _ := s.Store(ctx, sampleResult())
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
	if n, _ := s.Len(ctx); n != numGoroutines*perGoroutine {
		t.Errorf("expected %d entries, got %d", numGoroutines*perGoroutine, n)
	}
}

func TestMemory_RegeneratesCollidingIDs(t *testing.T) {
	ctx := context.Background()
	seq := []string{"dup", "dup", "fresh"}
	i := 0
	gen := func() string {
		id := seq[i%len(seq)]
		i++
		return id
	}
	s := NewMemory(DefaultPolicy(), WithIDGenerator(gen))

	first, _ := s.Store(ctx, sampleResult())
	second, _ := s.Store(ctx, sampleResult())
	if first != "dup" || second != "fresh" {
		t.Errorf("expected dup then fresh, got %s then %s", first, second)
	}
}

func TestStoredTranscription_Expiry(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	retrieved := base.Add(10 * time.Minute)
	p := DefaultPolicy()

	tests := []struct {
		name  string
		entry StoredTranscription
		at    time.Time
		want  ExpiryReason
	}{
		{"fresh", StoredTranscription{Timestamp: base}, base.Add(time.Minute), NotExpired},
		{"exactly max age", StoredTranscription{Timestamp: base}, base.Add(time.Hour), NotExpired},
		{"past max age", StoredTranscription{Timestamp: base}, base.Add(time.Hour + time.Nanosecond), ExpiredAge},
		{"retrieved within window", StoredTranscription{Timestamp: base, RetrievedAt: &retrieved}, retrieved.Add(30 * time.Second), NotExpired},
		{"retrieved past window", StoredTranscription{Timestamp: base, RetrievedAt: &retrieved}, retrieved.Add(61 * time.Second), ExpiredRetrieved},
		{"age wins when both apply", StoredTranscription{Timestamp: base, RetrievedAt: &retrieved}, base.Add(2 * time.Hour), ExpiredAge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Expiry(tt.at, p); got != tt.want {
				t.Errorf("Expiry() = %q, want %q", got, tt.want)
			}
		})
	}
}

func ExampleMemory() {
	ctx := context.Background()
	s := NewMemory(DefaultPolicy(), WithIDGenerator(func() string { return "result-1" }))

	id, _ := s.Store(ctx, models.TranscriptionResult{Text: "hello"})
	r, _ := s.Get(ctx, id)
	fmt.Println(id, r.Text)
	// Output: result-1 hello
}
