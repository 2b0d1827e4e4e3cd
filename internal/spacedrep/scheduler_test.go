package spacedrep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rodrick-mpofu/teachback-ai/internal/observability"
	"github.com/rodrick-mpofu/teachback-ai/internal/store"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

type fakeReviewRepo struct {
	mu      sync.Mutex
	loadErr error
	loads   int
	stored  map[string][]store.ReviewItemRecord
	saved   []store.ReviewItemRecord
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{stored: make(map[string][]store.ReviewItemRecord)}
}

func (f *fakeReviewRepo) LoadReviewItems(_ context.Context, owner string) ([]store.ReviewItemRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.stored[owner], nil
}

func (f *fakeReviewRepo) SaveReviewItem(_ context.Context, rec store.ReviewItemRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, rec)
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestScheduler(repo store.ReviewRepo) (*Scheduler, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	s := NewScheduler(repo, nil, nil)
	s.SetClock(clk.now)
	return s, clk
}

func TestEnsureItem_New(t *testing.T) {
	s, clk := newTestScheduler(nil)
	it, err := s.EnsureItem(context.Background(), "u1", "Recursion")
	if err != nil {
		t.Fatalf("EnsureItem: %v", err)
	}
	if it.Repetitions != 0 || it.EaseFactor != 2.5 || it.IntervalDays != 1 {
		t.Errorf("new item = %+v", it)
	}
	if !it.NextDue.Equal(clk.t.Add(24 * time.Hour)) {
		t.Errorf("NextDue = %v, want tomorrow", it.NextDue)
	}

	again, _ := s.EnsureItem(context.Background(), "u1", "  recursion ")
	if again.Topic != "Recursion" || !again.NextDue.Equal(it.NextDue) {
		t.Errorf("EnsureItem should return the existing item, got %+v", again)
	}
}

func TestEnsureItem_EmptyTopic(t *testing.T) {
	s, _ := newTestScheduler(nil)
	if _, err := s.EnsureItem(context.Background(), "u1", "  "); !errors.Is(err, ErrEmptyTopic) {
		t.Errorf("err = %v, want ErrEmptyTopic", err)
	}
}

func TestRecordReview_PerfectSequence(t *testing.T) {
	s, clk := newTestScheduler(nil)
	ctx := context.Background()

	want := []int{1, 6, 15, 38, 95}
	prevEF := 0.0
	for i, interval := range want {
		it, err := s.RecordReview(ctx, "u1", "Sorting", 5)
		if err != nil {
			t.Fatalf("review %d: %v", i, err)
		}
		if it.IntervalDays != interval {
			t.Errorf("review %d: interval = %d, want %d", i, it.IntervalDays, interval)
		}
		if it.EaseFactor > MaxEaseFactor || it.EaseFactor < prevEF {
			t.Errorf("review %d: ease factor %v out of order (prev %v)", i, it.EaseFactor, prevEF)
		}
		if it.Repetitions != i+1 {
			t.Errorf("review %d: repetitions = %d", i, it.Repetitions)
		}
		prevEF = it.EaseFactor
		clk.t = it.NextDue
	}
}

func TestRecordReview_Lapse(t *testing.T) {
	s, clk := newTestScheduler(nil)
	ctx := context.Background()
	s.RecordReview(ctx, "u1", "Graphs", 5)
	s.RecordReview(ctx, "u1", "Graphs", 4)

	it, err := s.RecordReview(ctx, "u1", "Graphs", 2)
	if err != nil {
		t.Fatalf("RecordReview: %v", err)
	}
	if it.Repetitions != 0 || it.IntervalDays != 1 {
		t.Errorf("lapse should reset, got n=%d I=%d", it.Repetitions, it.IntervalDays)
	}
	if !it.NextDue.Equal(clk.t.Add(24 * time.Hour)) {
		t.Errorf("NextDue = %v", it.NextDue)
	}
	if len(it.History) != 3 || it.History[2] != 2 {
		t.Errorf("history = %v", it.History)
	}
	// 2.5 stays at the cap for q=5 and q=4, then q=2 subtracts 0.32.
	if diff := it.EaseFactor - 2.18; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("ease factor = %v, want 2.18", it.EaseFactor)
	}
}

func TestRecordReview_EaseFloor(t *testing.T) {
	s, _ := newTestScheduler(nil)
	var it Item
	for range 10 {
		it, _ = s.RecordReview(context.Background(), "u1", "Heaps", 0)
	}
	if it.EaseFactor != MinEaseFactor {
		t.Errorf("ease factor = %v, want floor %v", it.EaseFactor, MinEaseFactor)
	}
}

func TestRecordReview_InvalidQuality(t *testing.T) {
	s, _ := newTestScheduler(nil)
	for _, q := range []int{-1, 6} {
		if _, err := s.RecordReview(context.Background(), "u1", "Heaps", q); !errors.Is(err, ErrInvalidQuality) {
			t.Errorf("q=%d: err = %v, want ErrInvalidQuality", q, err)
		}
	}
	if _, ok := s.Get(context.Background(), "u1", "Heaps"); ok {
		t.Error("invalid review must not create an item")
	}
}

func TestDueItems_Order(t *testing.T) {
	s, clk := newTestScheduler(nil)
	ctx := context.Background()
	s.EnsureItem(ctx, "u1", "Tries")
	s.EnsureItem(ctx, "u1", "Arrays")
	clk.t = clk.t.Add(-time.Hour)
	s.EnsureItem(ctx, "u1", "Queues")
	clk.t = clk.t.Add(time.Hour)
	s.RecordReview(ctx, "u1", "Stacks", 4)
	s.RecordReview(ctx, "u1", "Stacks", 4) // six days out

	got := s.DueItems(ctx, "u1", clk.t.Add(48*time.Hour))
	var topics []string
	for _, it := range got {
		topics = append(topics, it.Topic)
	}
	want := []string{"Queues", "Arrays", "Tries"}
	if len(topics) != len(want) {
		t.Fatalf("due = %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("due[%d] = %q, want %q", i, topics[i], want[i])
		}
	}

	if other := s.DueItems(ctx, "u2", clk.t.Add(48*time.Hour)); len(other) != 0 {
		t.Errorf("other owner sees %d items", len(other))
	}
}

func TestScheduler_LoadsAndSavesThroughRepo(t *testing.T) {
	repo := newFakeReviewRepo()
	due := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	repo.stored["u1"] = []store.ReviewItemRecord{
		{Owner: "u1", Topic: "Hashing", EaseFactor: 2.2, Repetitions: 2, IntervalDays: 6, NextDue: due, History: []int{4, 4}},
	}
	s, _ := newTestScheduler(repo)
	ctx := context.Background()

	items := s.DueItems(ctx, "u1", due)
	if len(items) != 1 || items[0].EaseFactor != 2.2 {
		t.Fatalf("loaded items = %+v", items)
	}

	it, err := s.RecordReview(ctx, "u1", "hashing", 5)
	if err != nil {
		t.Fatalf("RecordReview: %v", err)
	}
	if it.IntervalDays != 13 { // round(6 * 2.2)
		t.Errorf("interval = %d, want 13", it.IntervalDays)
	}
	if len(repo.saved) != 1 || repo.saved[0].Topic != "Hashing" || len(repo.saved[0].History) != 3 {
		t.Errorf("saved = %+v", repo.saved)
	}

	s.Items(ctx, "u1")
	if repo.loads != 1 {
		t.Errorf("loads = %d, want 1", repo.loads)
	}
}

func TestScheduler_LoadFailureIsRetried(t *testing.T) {
	repo := newFakeReviewRepo()
	repo.loadErr = errors.New("disk gone")
	s, _ := newTestScheduler(repo)
	ctx := context.Background()

	if _, err := s.RecordReview(ctx, "u1", "Tries", 4); err != nil {
		t.Fatalf("store failure must not fail the review: %v", err)
	}
	repo.loadErr = nil
	s.Items(ctx, "u1")
	if repo.loads != 2 {
		t.Errorf("loads = %d, want 2", repo.loads)
	}
}

func TestRecordReview_EmitsEvent(t *testing.T) {
	rec := &observability.Recorder{}
	s := NewScheduler(nil, rec, nil)
	s.RecordReview(context.Background(), "u1", "Tries", 4)
	evs := rec.Named(observability.EventReviewRecorded)
	if len(evs) != 1 || evs[0].Fields["topic"] != "Tries" {
		t.Errorf("events = %+v", evs)
	}
}

func TestReviewFromSession(t *testing.T) {
	s, _ := newTestScheduler(nil)
	analyses := []tutor.AnalysisResult{
		{Confidence: 0.9, Clarity: 0.9},
		{Confidence: 0.9, Clarity: 0.9},
	}
	it, q, err := s.ReviewFromSession(context.Background(), "u1", "Binary Search", analyses)
	if err != nil {
		t.Fatalf("ReviewFromSession: %v", err)
	}
	if q != 4 || it.Repetitions != 1 || it.History[0] != 4 {
		t.Errorf("q=%d item=%+v", q, it)
	}
}
