// Package visits applies permission-gated mutations to visit entries and
// their access passes, then announces each committed change.
package visits

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"guest-visits-backend/internal/access"
	"guest-visits-backend/internal/apperr"
	"guest-visits-backend/internal/events"
	"guest-visits-backend/internal/model"
	"guest-visits-backend/internal/parse"
	"guest-visits-backend/internal/projection"
	"guest-visits-backend/internal/realtime"
	"guest-visits-backend/internal/store"
)

// minSuggestQuery is the shortest prefix answered by Suggest.
const minSuggestQuery = 3

// Publisher delivers a broadcast envelope to live subscribers.
type Publisher interface {
	Publish(env events.Envelope) (realtime.PublishResult, error)
}

// Notifier hands a committed change to outbound notification delivery.
// Dispatch must not block.
type Notifier interface {
	Dispatch(typ events.Type, change events.Change)
}

// CreateInput is a new entry as submitted by a client.
type CreateInput struct {
	Name        string  `json:"name"`
	Responsible *string `json:"responsible"`
	DateTime    string  `json:"datetime"`
}

// UpdateInput carries the editable descriptive fields of an entry.
type UpdateInput struct {
	Name        string  `json:"name"`
	Responsible *string `json:"responsible"`
}

// Service owns entry and pass mutations.
type Service struct {
	store     store.Store
	builder   *projection.Builder
	publisher Publisher
	notifier  Notifier
	loc       *time.Location
	limit     int
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates the entry service. notifier may be nil.
func NewService(st store.Store, builder *projection.Builder, publisher Publisher, notifier Notifier, loc *time.Location, autocompleteLimit int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if autocompleteLimit <= 0 {
		autocompleteLimit = 100
	}
	return &Service{
		store:     st,
		builder:   builder,
		publisher: publisher,
		notifier:  notifier,
		loc:       loc,
		limit:     autocompleteLimit,
		logger:    logger.With("component", "visits"),
		now:       time.Now,
	}
}

func (s *Service) timestamp() string {
	return parse.Timestamp(s.now(), s.loc)
}

// Window returns the projection around ref, or the current week when ref is empty.
func (s *Service) Window(ctx context.Context, p access.Principal, ref string) (*projection.Window, error) {
	if err := access.Authorize(p, access.CanView); err != nil {
		return nil, err
	}
	return s.builder.Build(ctx, ref)
}

// Calendar returns the day structure around ref without entries.
func (s *Service) Calendar(ctx context.Context, p access.Principal, ref string) (*projection.Calendar, error) {
	if err := access.Authorize(p, access.CanView); err != nil {
		return nil, err
	}
	return s.builder.Calendar(ctx, ref)
}

// Get returns one entry by id, including soft-deleted ones.
func (s *Service) Get(ctx context.Context, p access.Principal, id string) (*store.EntryView, error) {
	if err := access.Authorize(p, access.CanView); err != nil {
		return nil, err
	}
	view, err := s.store.GetEntryView(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("entry %s", id)
	} else if err != nil {
		return nil, apperr.Internal("load entry", err)
	}
	return view, nil
}

// Suggest returns the distinct responsible values from the principal's own
// recent entries that start with q, ignoring case.
func (s *Service) Suggest(ctx context.Context, p access.Principal, q string) ([]string, error) {
	suggestions := []string{}
	if utf8.RuneCountInString(q) < minSuggestQuery {
		return suggestions, nil
	}

	values, err := s.store.RecentResponsibles(ctx, p.ID, s.limit)
	if err != nil {
		return nil, apperr.Internal("load responsible values", err)
	}

	prefix := strings.ToLower(q)
	seen := make(map[string]struct{})
	for _, v := range values {
		if _, dup := seen[v]; dup || !strings.HasPrefix(strings.ToLower(v), prefix) {
			continue
		}
		seen[v] = struct{}{}
		suggestions = append(suggestions, v)
	}
	sort.Strings(suggestions)
	return suggestions, nil
}

// Create stores a new active entry.
func (s *Service) Create(ctx context.Context, p access.Principal, in CreateInput) (*store.EntryView, error) {
	if err := access.Authorize(p, access.CanAdd); err != nil {
		return nil, err
	}
	name, err := validName(in.Name)
	if err != nil {
		return nil, err
	}
	scheduled, err := parse.NormalizeDateTime(in.DateTime, s.loc)
	if err != nil {
		return nil, apperr.BadRequest("datetime must be ISO 8601 (YYYY-MM-DDTHH:MM:SS), got %q", in.DateTime)
	}

	entry := &model.Entry{
		ID:          uuid.NewString(),
		Name:        name,
		Responsible: cleanOptional(in.Responsible),
		ScheduledAt: scheduled,
		CreatedBy:   p.ID,
		CreatedAt:   s.timestamp(),
	}

	var view *store.EntryView
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateEntry(ctx, entry); err != nil {
			return apperr.Internal("create entry", err)
		}
		view, err = tx.GetEntryView(ctx, entry.ID)
		if err != nil {
			return apperr.Internal("reload entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("entry created", "entry", entry.ID, "datetime", entry.ScheduledAt, "user", p.Username)
	s.announce(ctx, events.EntryCreated, s.change(p, view))
	return view, nil
}

// Update replaces the name and responsible party of an entry.
func (s *Service) Update(ctx context.Context, p access.Principal, id string, in UpdateInput) (*store.EntryView, error) {
	if err := access.Authorize(p, access.CanEditEntry); err != nil {
		return nil, err
	}
	name, err := validName(in.Name)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, p, id, events.EntryUpdated, func(_ store.Store, e *model.Entry, _ string, _ *events.Change) error {
		e.Name = name
		e.Responsible = cleanOptional(in.Responsible)
		return nil
	})
}

// SetCompleted marks or clears the arrival flag.
func (s *Service) SetCompleted(ctx context.Context, p access.Principal, id string, completed bool) (*store.EntryView, error) {
	code, typ := access.CanUnmarkCompleted, events.EntryUncompleted
	if completed {
		code, typ = access.CanMarkCompleted, events.EntryCompleted
	}
	if err := access.Authorize(p, code); err != nil {
		return nil, err
	}
	return s.mutate(ctx, p, id, typ, func(_ store.Store, e *model.Entry, _ string, _ *events.Change) error {
		e.IsCompleted = completed
		return nil
	})
}

// SetCancelled marks or clears the cancellation flag.
func (s *Service) SetCancelled(ctx context.Context, p access.Principal, id string, cancelled bool) (*store.EntryView, error) {
	code, typ := access.CanUnmarkCancelled, events.VisitUncancelled
	if cancelled {
		code, typ = access.CanMarkCancelled, events.VisitCancelled
	}
	if err := access.Authorize(p, code); err != nil {
		return nil, err
	}
	return s.mutate(ctx, p, id, typ, func(_ store.Store, e *model.Entry, _ string, _ *events.Change) error {
		e.IsCancelled = cancelled
		return nil
	})
}

// Move reschedules an entry.
func (s *Service) Move(ctx context.Context, p access.Principal, id, datetime string) (*store.EntryView, error) {
	if err := access.Authorize(p, access.CanMoveEntry); err != nil {
		return nil, err
	}
	scheduled, err := parse.NormalizeDateTime(datetime, s.loc)
	if err != nil {
		return nil, apperr.BadRequest("datetime must be ISO 8601 (YYYY-MM-DDTHH:MM:SS), got %q", datetime)
	}
	return s.mutate(ctx, p, id, events.EntryMoved, func(_ store.Store, e *model.Entry, _ string, change *events.Change) error {
		change.PreviousTime = e.ScheduledAt
		e.ScheduledAt = scheduled
		return nil
	})
}

// Delete soft-deletes an entry. Deleting it again is a conflict.
func (s *Service) Delete(ctx context.Context, p access.Principal, id string) error {
	if err := access.Authorize(p, access.CanDeleteEntry); err != nil {
		return err
	}

	var view *store.EntryView
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		e, err := tx.GetEntry(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("entry %s", id)
		} else if err != nil {
			return apperr.Internal("load entry", err)
		}
		if e.IsDeleted() {
			return apperr.Conflict("entry %s is already deleted", id)
		}

		at := s.timestamp()
		e.DeletedAt = &at
		e.DeletedBy = &p.ID
		if err := tx.SaveEntry(ctx, e); err != nil {
			return apperr.Internal("delete entry", err)
		}
		view, err = tx.GetEntryView(ctx, id)
		if err != nil {
			return apperr.Internal("reload entry", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("entry deleted", "entry", id, "user", p.Username)
	s.announce(ctx, events.EntryDeleted, s.change(p, view))
	return nil
}

// DeleteAll irrecoverably removes every entry and pass. Administrators only.
func (s *Service) DeleteAll(ctx context.Context, p access.Principal) (int64, error) {
	if err := access.RequireAdmin(p); err != nil {
		return 0, err
	}

	var count int64
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		n, err := tx.DeleteAllEntries(ctx)
		if err != nil {
			return apperr.Internal("delete all entries", err)
		}
		count = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Warn("all entries deleted", "count", count, "user", p.Username)
	change := s.change(p, nil)
	change.DeletedCount = &count
	s.announce(ctx, events.EntriesDeletedAll, change)
	return count, nil
}

// DeleteFuture soft-deletes every visible entry scheduled on or after
// fromDate (YYYY-MM-DD). Administrators only.
func (s *Service) DeleteFuture(ctx context.Context, p access.Principal, fromDate string) (int64, error) {
	if err := access.RequireAdmin(p); err != nil {
		return 0, err
	}
	from, err := parse.Date(fromDate, s.loc)
	if err != nil {
		return 0, apperr.BadRequest("invalid date %q", fromDate)
	}

	var count int64
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		n, err := tx.SoftDeleteEntriesFrom(ctx, from.Format(parse.DateTimeLayout), p.ID, s.timestamp())
		if err != nil {
			return apperr.Internal("delete future entries", err)
		}
		count = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("future entries deleted", "from", from.Format(parse.DateLayout), "count", count, "user", p.Username)
	change := s.change(p, nil)
	change.DeletedCount = &count
	change.FromDate = from.Format(parse.DateLayout)
	s.announce(ctx, events.EntriesDeletedFuture, change)
	return count, nil
}

// OrderPass requests a new access pass for the entry's date and makes it
// current. A previously current pass is left as it was.
func (s *Service) OrderPass(ctx context.Context, p access.Principal, id string) (*store.EntryView, error) {
	if err := access.Authorize(p, access.CanMarkPass); err != nil {
		return nil, err
	}
	return s.mutate(ctx, p, id, events.PassOrdered, func(tx store.Store, e *model.Entry, at string, change *events.Change) error {
		scheduled, err := parse.DateTime(e.ScheduledAt, s.loc)
		if err != nil {
			return apperr.Internal("read scheduled date", err)
		}
		pass := &model.Pass{
			ID:        uuid.NewString(),
			EntryID:   e.ID,
			Date:      scheduled.Format(parse.DateLayout),
			RequestID: uuid.NewString(),
			Status:    model.PassOrdered,
			CreatedAt: at,
		}
		if err := tx.CreatePass(ctx, pass); err != nil {
			return apperr.Internal("create pass", err)
		}
		e.CurrentPassID = &pass.ID
		change.Pass = pass
		return nil
	})
}

// RevokePass revokes the entry's current pass. The entry keeps pointing at
// the revoked pass.
func (s *Service) RevokePass(ctx context.Context, p access.Principal, id string) (*store.EntryView, error) {
	if err := access.Authorize(p, access.CanRevokePass); err != nil {
		return nil, err
	}
	return s.mutate(ctx, p, id, events.PassRevoked, func(tx store.Store, e *model.Entry, at string, change *events.Change) error {
		if e.CurrentPassID == nil {
			return apperr.Conflict("entry %s has no current pass", e.ID)
		}
		pass, err := tx.GetPass(ctx, *e.CurrentPassID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Conflict("entry %s has no current pass", e.ID)
		} else if err != nil {
			return apperr.Internal("load pass", err)
		}
		if pass.Status == model.PassRevoked {
			return apperr.Conflict("pass %s is already revoked", pass.ID)
		}

		pass.Status = model.PassRevoked
		pass.UpdatedAt = &at
		pass.UpdatedBy = &p.ID
		if err := tx.SavePass(ctx, pass); err != nil {
			return apperr.Internal("revoke pass", err)
		}
		change.Pass = pass
		return nil
	})
}

// applyFunc changes a loaded, visible entry inside the mutation transaction.
type applyFunc func(tx store.Store, e *model.Entry, at string, change *events.Change) error

// mutate loads a visible entry, applies fn, stamps the updater and saves it
// in one transaction, then announces the change.
func (s *Service) mutate(ctx context.Context, p access.Principal, id string, typ events.Type, fn applyFunc) (*store.EntryView, error) {
	var (
		view   *store.EntryView
		change events.Change
	)
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		e, err := tx.GetEntry(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("entry %s", id)
		} else if err != nil {
			return apperr.Internal("load entry", err)
		}
		if e.IsDeleted() {
			return apperr.NotFound("entry %s is deleted", id)
		}

		at := s.timestamp()
		if err := fn(tx, e, at, &change); err != nil {
			return err
		}
		e.UpdatedAt = &at
		e.UpdatedBy = &p.ID
		if err := tx.SaveEntry(ctx, e); err != nil {
			return apperr.Internal("save entry", err)
		}

		view, err = tx.GetEntryView(ctx, id)
		if err != nil {
			return apperr.Internal("reload entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("entry changed", "event", typ, "entry", id, "user", p.Username)
	full := s.change(p, view)
	full.PreviousTime = change.PreviousTime
	full.Pass = change.Pass
	s.announce(ctx, typ, full)
	return view, nil
}

func (s *Service) change(p access.Principal, view *store.EntryView) events.Change {
	c := events.Change{Actor: p.Name(), ActorID: p.ID}
	if view != nil {
		entry := view.Entry
		c.Entry = &entry
	}
	return c
}

// announce rebuilds the current window and broadcasts it with the change,
// then hands the change to notifications. Failures here never reach the
// caller; the mutation has already committed.
func (s *Service) announce(ctx context.Context, typ events.Type, change events.Change) {
	ctx = context.WithoutCancel(ctx)

	window, err := s.builder.Build(ctx, "")
	if err != nil {
		s.logger.Error("failed to rebuild window for broadcast", "event", typ, "error", err)
	} else if res, err := s.publisher.Publish(events.Envelope{Type: typ, Change: change, Data: window}); err != nil {
		s.logger.Error("failed to publish event", "event", typ, "error", err)
	} else if res.Dropped > 0 {
		s.logger.Warn("event delivery dropped subscribers", "event", typ, "delivered", res.Delivered, "dropped", res.Dropped)
	}

	if s.notifier != nil {
		s.notifier.Dispatch(typ, change)
	}
}

func validName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperr.BadRequest("name must not be empty")
	}
	return name, nil
}

func cleanOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
