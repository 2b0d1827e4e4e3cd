package spacedrep

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
	"github.com/rodrick-mpofu/teachback-ai/internal/observability"
	"github.com/rodrick-mpofu/teachback-ai/internal/store"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

var (
	ErrInvalidQuality = errors.New("review quality must be between 0 and 5")
	ErrEmptyTopic     = errors.New("review topic must not be empty")
)

// Scheduler manages SM-2 review items per owner. Items are loaded from the
// repo on first use of an owner and saved after every mutation.
type Scheduler struct {
	repo store.ReviewRepo
	sink observability.Sink
	log  *logger.Logger
	now  func() time.Time

	mu     sync.Mutex
	items  map[string]map[string]*Item
	loaded map[string]bool

	// saveMu orders repo writes; each write sends the item's latest state.
	saveMu sync.Mutex
}

// NewScheduler creates a scheduler. repo may be nil for an in-memory
// scheduler.
func NewScheduler(repo store.ReviewRepo, sink observability.Sink, log *logger.Logger) *Scheduler {
	return &Scheduler{
		repo:   repo,
		sink:   observability.OrNop(sink),
		log:    logger.OrNop(log).With("component", "spacedrep"),
		now:    func() time.Time { return time.Now().UTC() },
		items:  make(map[string]map[string]*Item),
		loaded: make(map[string]bool),
	}
}

// SetClock replaces the time source. Used by tests and replay tooling.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ensureLoaded pulls an owner's items from the repo the first time the
// owner is seen. A load failure is logged and retried on the next call.
func (s *Scheduler) ensureLoaded(ctx context.Context, owner string) {
	s.mu.Lock()
	done := s.loaded[owner] || s.repo == nil
	s.mu.Unlock()
	if done {
		return
	}

	recs, err := s.repo.LoadReviewItems(ctx, owner)
	if err != nil {
		s.log.Warn("load review items", "owner", owner, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded[owner] {
		return
	}
	byTopic := s.ownerItems(owner)
	for _, rec := range recs {
		key := topicKey(rec.Topic)
		if _, ok := byTopic[key]; ok {
			continue
		}
		byTopic[key] = itemFromRecord(rec)
	}
	s.loaded[owner] = true
}

// ownerItems must be called with mu held.
func (s *Scheduler) ownerItems(owner string) map[string]*Item {
	byTopic, ok := s.items[owner]
	if !ok {
		byTopic = make(map[string]*Item)
		s.items[owner] = byTopic
	}
	return byTopic
}

func topicKey(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}

func (s *Scheduler) save(ctx context.Context, it Item) {
	if s.repo == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	rec := it.record()
	if cur, ok := s.items[it.Owner][topicKey(it.Topic)]; ok {
		rec = cur.record()
	}
	s.mu.Unlock()

	if err := s.repo.SaveReviewItem(ctx, rec); err != nil {
		s.log.Warn("save review item", "owner", rec.Owner, "topic", rec.Topic, "error", err)
	}
}

// EnsureItem returns the existing item for topic or creates a new one due
// tomorrow.
func (s *Scheduler) EnsureItem(ctx context.Context, owner, topic string) (Item, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Item{}, ErrEmptyTopic
	}
	s.ensureLoaded(ctx, owner)

	s.mu.Lock()
	byTopic := s.ownerItems(owner)
	it, ok := byTopic[topicKey(topic)]
	if ok {
		out := it.clone()
		s.mu.Unlock()
		return out, nil
	}
	it = newItem(owner, topic, s.now())
	byTopic[topicKey(topic)] = it
	out := it.clone()
	s.mu.Unlock()

	s.save(ctx, out)
	return out, nil
}

// RecordReview applies one review of the given quality. Unknown topics are
// created first.
func (s *Scheduler) RecordReview(ctx context.Context, owner, topic string, quality int) (Item, error) {
	if quality < 0 || quality > MaxQuality {
		return Item{}, fmt.Errorf("%w: got %d", ErrInvalidQuality, quality)
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Item{}, ErrEmptyTopic
	}
	s.ensureLoaded(ctx, owner)

	s.mu.Lock()
	now := s.now()
	byTopic := s.ownerItems(owner)
	it, ok := byTopic[topicKey(topic)]
	if !ok {
		it = newItem(owner, topic, now)
		byTopic[topicKey(topic)] = it
	}
	it.apply(quality, now)
	out := it.clone()
	s.mu.Unlock()

	s.save(ctx, out)
	s.sink.Emit(ctx, observability.Event{
		Name: observability.EventReviewRecorded,
		Fields: map[string]any{
			"owner":         owner,
			"topic":         out.Topic,
			"quality":       quality,
			"interval_days": out.IntervalDays,
			"ease_factor":   out.EaseFactor,
		},
		At: now,
	})
	s.log.Debug("review recorded", "owner", owner, "topic", out.Topic,
		"quality", quality, "interval_days", out.IntervalDays)
	return out, nil
}

// ReviewFromSession derives a quality from a finished session's analyses
// and records it against topic.
func (s *Scheduler) ReviewFromSession(ctx context.Context, owner, topic string, analyses []tutor.AnalysisResult) (Item, int, error) {
	if _, err := s.EnsureItem(ctx, owner, topic); err != nil {
		return Item{}, 0, err
	}
	q := DeriveQuality(analyses)
	it, err := s.RecordReview(ctx, owner, topic, q)
	return it, q, err
}

// Get returns the item for topic, if any.
func (s *Scheduler) Get(ctx context.Context, owner, topic string) (Item, bool) {
	s.ensureLoaded(ctx, owner)
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[owner][topicKey(topic)]
	if !ok {
		return Item{}, false
	}
	return it.clone(), true
}

// Items returns copies of all of owner's items, sorted by due date with a
// topic tie-break.
func (s *Scheduler) Items(ctx context.Context, owner string) []Item {
	s.ensureLoaded(ctx, owner)
	s.mu.Lock()
	out := make([]Item, 0, len(s.items[owner]))
	for _, it := range s.items[owner] {
		out = append(out, it.clone())
	}
	s.mu.Unlock()
	sortByDue(out)
	return out
}

// DueItems returns owner's items due at or before asOf, earliest first.
func (s *Scheduler) DueItems(ctx context.Context, owner string, asOf time.Time) []Item {
	var due []Item
	for _, it := range s.Items(ctx, owner) {
		if it.IsDue(asOf) {
			due = append(due, it)
		}
	}
	if due == nil {
		due = []Item{}
	}
	return due
}

func (s *Scheduler) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

func sortByDue(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].NextDue.Equal(items[j].NextDue) {
			return items[i].NextDue.Before(items[j].NextDue)
		}
		return items[i].Topic < items[j].Topic
	})
}
