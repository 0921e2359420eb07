// Package sync owns the authoritative local view of the task list: an
// ordered snapshot reconciled against the remote store, plus the one
// active edit draft. All other components read store results or feed
// events; only the engine writes the snapshot.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/chepyr/go-task-sync/client/auth"
	"github.com/chepyr/go-task-sync/client/feed"
	"github.com/chepyr/go-task-sync/client/store"
	"github.com/chepyr/go-task-sync/shared/models"
)

// Store is the subset of the task store client the engine needs.
type Store interface {
	List(ctx context.Context) ([]models.Task, error)
	Create(ctx context.Context, title, description, owner string) (models.Task, error)
	Update(ctx context.Context, id, title, description string) error
	Delete(ctx context.Context, id string) error
}

// Sessions exposes the active session and its transitions; satisfied
// by *session.Guard.
type Sessions interface {
	Current() *auth.Session
	OnChange(handler func(*auth.Session))
}

// Feed opens change-event subscriptions.
type Feed interface {
	Subscribe(onEvent func(feed.Event)) (Subscription, error)
}

// Subscription is an active feed channel that can be torn down.
type Subscription interface {
	Unsubscribe()
}

// ListenerFeed adapts *feed.Listener to the Feed interface.
type ListenerFeed struct {
	Listener *feed.Listener
}

func (f ListenerFeed) Subscribe(onEvent func(feed.Event)) (Subscription, error) {
	return f.Listener.Subscribe(onEvent)
}

// Draft is the ephemeral form state of an in-progress create or
// update. TargetID is empty in "new task" mode.
type Draft struct {
	TargetID    string
	Title       string
	Description string
}

// Engine reconciles local edits, remote reads and feed events into a
// single consistent task list. At most one Draft is active at a time;
// starting a new one discards any unsaved previous draft.
type Engine struct {
	store Store
	feed  Feed
	guard Sessions

	mu       sync.Mutex
	snapshot []models.Task
	draft    *Draft
	lastErr  error
	sub      Subscription
	onChange []func()
}

func NewEngine(st Store, fd Feed, guard Sessions) *Engine {
	return &Engine{store: st, feed: fd, guard: guard}
}

// Start ties the engine lifecycle to session transitions: a session
// appearing triggers the initial read and the feed subscription, a
// session ending tears the subscription down and clears local state.
func (e *Engine) Start(ctx context.Context) {
	e.guard.OnChange(func(s *auth.Session) {
		if s != nil {
			e.activate(ctx)
		} else {
			e.deactivate()
		}
	})
	if e.guard.Current() != nil {
		e.activate(ctx)
	}
}

func (e *Engine) activate(ctx context.Context) {
	if err := e.Refresh(ctx); err != nil {
		log.Printf("Initial task list read failed: %v", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sub != nil {
		return
	}
	sub, err := e.feed.Subscribe(func(event feed.Event) {
		e.OnFeedEvent(ctx, event)
	})
	if err != nil {
		log.Printf("Feed subscription failed: %v", err)
		return
	}
	e.sub = sub
}

func (e *Engine) deactivate() {
	e.mu.Lock()
	sub := e.sub
	e.sub = nil
	e.snapshot = nil
	e.draft = nil
	e.lastErr = nil
	e.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	e.notify()
}

// Refresh re-runs the canonical read and replaces the snapshot
// wholesale. A full replace is always trustworthy no matter how many
// feed events were missed or duplicated; the prior snapshot is kept
// untouched on failure.
func (e *Engine) Refresh(ctx context.Context) error {
	if err := e.requireSession(); err != nil {
		return err
	}

	tasks, err := e.store.List(ctx)
	if err != nil {
		e.setErr(err)
		return err
	}

	e.mu.Lock()
	e.snapshot = tasks
	e.lastErr = nil
	e.mu.Unlock()
	e.notify()
	return nil
}

// OnFeedEvent treats every remote change notification purely as a
// refresh trigger. No incremental patching: the feed offers no
// ordering or deduplication guarantees, a full re-read sidesteps both.
func (e *Engine) OnFeedEvent(ctx context.Context, event feed.Event) {
	if err := e.Refresh(ctx); err != nil {
		log.Printf("Refresh after %s event failed: %v", event.Kind, err)
	}
}

// BeginEdit opens a draft. With an id it seeds the draft from the
// matching snapshot entry and no-ops if the id is absent (e.g. the
// task was deleted remotely meanwhile); with an empty id it opens a
// fresh "new task" draft. Any unsaved previous draft is discarded.
func (e *Engine) BeginEdit(id string) {
	e.mu.Lock()
	if id == "" {
		e.draft = &Draft{}
	} else {
		found := false
		for _, task := range e.snapshot {
			if task.ID.String() == id {
				e.draft = &Draft{
					TargetID:    id,
					Title:       task.Title,
					Description: task.Description,
				}
				found = true
				break
			}
		}
		if !found {
			e.mu.Unlock()
			return
		}
	}
	e.mu.Unlock()
	e.notify()
}

// UpdateDraft replaces the draft's form fields. No-op when no draft
// is active.
func (e *Engine) UpdateDraft(title, description string) {
	e.mu.Lock()
	if e.draft == nil {
		e.mu.Unlock()
		return
	}
	e.draft.Title = title
	e.draft.Description = description
	e.mu.Unlock()
	e.notify()
}

// CancelEdit discards the draft without touching the snapshot.
func (e *Engine) CancelEdit() {
	e.mu.Lock()
	e.draft = nil
	e.mu.Unlock()
	e.notify()
}

// SubmitEdit validates the draft and sends it to the store: update
// when the draft targets an existing task, create otherwise. On
// success the draft is cleared and the snapshot refreshed; on remote
// failure the draft is preserved so the user's input is not lost.
func (e *Engine) SubmitEdit(ctx context.Context) error {
	// capture once so a concurrent sign-out cannot land between the
	// session check and the owner read
	session := e.guard.Current()
	if session == nil {
		return fmt.Errorf("%w: sign in first", store.ErrUnauthenticated)
	}

	e.mu.Lock()
	if e.draft == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: no active draft", store.ErrValidationRejected)
	}
	draft := *e.draft
	e.mu.Unlock()

	title := strings.TrimSpace(draft.Title)
	description := strings.TrimSpace(draft.Description)
	if title == "" {
		err := fmt.Errorf("%w: title is required", store.ErrValidationRejected)
		e.setErr(err)
		return err
	}

	var err error
	if draft.TargetID != "" {
		err = e.store.Update(ctx, draft.TargetID, title, description)
	} else {
		_, err = e.store.Create(ctx, title, description, session.UserID)
	}
	if err != nil {
		e.setErr(err)
		return err
	}

	e.mu.Lock()
	e.draft = nil
	e.mu.Unlock()
	return e.Refresh(ctx)
}

// DeleteTask removes a task from the store and refreshes. A NotFound
// result means the record is already gone, which matches intent, so
// it counts as success.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	if err := e.requireSession(); err != nil {
		return err
	}

	if err := e.store.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		e.setErr(err)
		return err
	}
	return e.Refresh(ctx)
}

// Snapshot returns a copy of the current task list, newest first.
// Readers get a replaceable whole, never a view into engine state.
func (e *Engine) Snapshot() []models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	tasks := make([]models.Task, len(e.snapshot))
	copy(tasks, e.snapshot)
	return tasks
}

// Draft returns the active draft, or nil when idle.
func (e *Engine) Draft() *Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return nil
	}
	draft := *e.draft
	return &draft
}

// Err returns the transient status error from the last failed
// operation; it is cleared by the next successful refresh.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// OnChange registers a render hook called after every state change.
func (e *Engine) OnChange(handler func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = append(e.onChange, handler)
}

func (e *Engine) requireSession() error {
	if e.guard.Current() == nil {
		return fmt.Errorf("%w: sign in first", store.ErrUnauthenticated)
	}
	return nil
}

func (e *Engine) setErr(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) notify() {
	e.mu.Lock()
	handlers := make([]func(), len(e.onChange))
	copy(handlers, e.onChange)
	e.mu.Unlock()

	for _, handler := range handlers {
		handler()
	}
}
