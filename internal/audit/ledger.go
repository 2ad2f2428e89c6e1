package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink receives a copy of every appended entry, typically for durable
// storage. The in-memory ledger stays authoritative; sink failures are
// logged and never fail the append.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Filter narrows a ledger query. All supplied predicates must match.
// A zero filter matches everything.
type Filter struct {
	From       time.Time
	To         time.Time
	ActorIDs   []int64
	ProjectIDs []int64
	Kinds      []Kind
}

// Ledger is the append-only record of accepted mutations. Entries are never
// edited or deleted.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
	sink    Sink
	logger  *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the timestamp source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithSink mirrors appended entries into a durable sink.
func WithSink(sink Sink) Option {
	return func(l *Ledger) { l.sink = sink }
}

// WithLogger sets the logger used to report sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// NewLedger constructs an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records one entry. The impact is derived from the structured kind
// and the timestamp from the ledger clock. Append cannot fail; once
// appended, the entry is permanent.
func (l *Ledger) Append(ctx context.Context, rec Record) Entry {
	entry := Entry{
		ID:        uuid.New(),
		Actor:     rec.Actor,
		ProjectID: rec.ProjectID,
		Kind:      rec.Kind,
		Action:    rec.Action,
		Detail:    rec.Detail,
		Impact:    ImpactOf(rec.Kind),
	}

	l.mu.Lock()
	entry.At = l.now()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.Record(ctx, entry); err != nil {
			l.logger.Warn("audit sink record", slog.String("entry", entry.ID.String()), slog.Any("error", err))
		}
	}
	return entry
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Query returns entries matching every supplied predicate, newest first.
// A date range with From after To yields an empty result, not an error;
// this is a read-only convenience path.
func (l *Ledger) Query(filter Filter) []Entry {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil
	}

	actors := toSet(filter.ActorIDs)
	projects := toSet(filter.ProjectIDs)
	kinds := make(map[Kind]struct{}, len(filter.Kinds))
	for _, k := range filter.Kinds {
		kinds[k] = struct{}{}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0; i-- {
		entry := l.entries[i]
		if !filter.From.IsZero() && entry.At.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && entry.At.After(filter.To) {
			continue
		}
		if len(actors) > 0 {
			if _, ok := actors[entry.Actor.ID]; !ok {
				continue
			}
		}
		if len(projects) > 0 {
			if _, ok := projects[entry.ProjectID]; !ok {
				continue
			}
		}
		if len(kinds) > 0 {
			if _, ok := kinds[entry.Kind]; !ok {
				continue
			}
		}
		out = append(out, entry)
	}
	return out
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
