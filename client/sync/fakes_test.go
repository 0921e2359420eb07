package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/chepyr/go-task-sync/client/auth"
	"github.com/chepyr/go-task-sync/client/feed"
	"github.com/chepyr/go-task-sync/client/store"
	"github.com/chepyr/go-task-sync/shared/models"
	"github.com/google/uuid"
)

// in-memory stand-in for the remote task store, with per-method error
// injection and call counting
type fakeStore struct {
	mu    gosync.Mutex
	tasks []models.Task
	clock time.Time

	ListErr   error
	CreateErr error
	UpdateErr error
	DeleteErr error

	ListCalls   int
	CreateCalls int
	UpdateCalls int
	DeleteCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// seed inserts a task directly, bypassing call counters
func (f *fakeStore) seed(title, description string) models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Minute)
	task := models.Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		CreatedAt:   f.clock,
		UpdatedAt:   f.clock,
	}
	// newest first, like the remote store's ordered select
	f.tasks = append([]models.Task{task}, f.tasks...)
	return task
}

func (f *fakeStore) List(ctx context.Context) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	tasks := make([]models.Task, len(f.tasks))
	copy(tasks, f.tasks)
	return tasks, nil
}

func (f *fakeStore) Create(ctx context.Context, title, description, owner string) (models.Task, error) {
	f.mu.Lock()
	f.CreateCalls++
	if f.CreateErr != nil {
		f.mu.Unlock()
		return models.Task{}, f.CreateErr
	}
	f.mu.Unlock()

	task := f.seed(title, description)
	ownerID, _ := uuid.Parse(owner)
	task.OwnerID = ownerID

	f.mu.Lock()
	f.tasks[0].OwnerID = ownerID
	f.mu.Unlock()
	return task, nil
}

func (f *fakeStore) Update(ctx context.Context, id, title, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID.String() == id {
			f.tasks[i].Title = title
			f.tasks[i].Description = description
			return nil
		}
	}
	return fmt.Errorf("%w: task %s", store.ErrNotFound, id)
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID.String() == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: task %s", store.ErrNotFound, id)
}

type fakeSessions struct {
	mu       gosync.Mutex
	current  *auth.Session
	handlers []func(*auth.Session)
}

func signedIn() *fakeSessions {
	return &fakeSessions{current: &auth.Session{
		UserID: uuid.New().String(),
		Email:  "user@example.com",
		Token:  "test-token",
	}}
}

func (f *fakeSessions) Current() *auth.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeSessions) OnChange(handler func(*auth.Session)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler)
}

func (f *fakeSessions) set(session *auth.Session) {
	f.mu.Lock()
	f.current = session
	handlers := make([]func(*auth.Session), len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.Unlock()
	for _, handler := range handlers {
		handler(session)
	}
}

type fakeFeed struct {
	mu           gosync.Mutex
	handler      func(feed.Event)
	subscribes   int
	unsubscribes int

	SubscribeErr error
}

func (f *fakeFeed) Subscribe(onEvent func(feed.Event)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}
	f.subscribes++
	f.handler = onEvent
	return &fakeSubscription{feed: f}, nil
}

// emit pushes an event to the active subscriber, if any
func (f *fakeFeed) emit(event feed.Event) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}

type fakeSubscription struct {
	feed *fakeFeed
}

func (s *fakeSubscription) Unsubscribe() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	s.feed.unsubscribes++
	s.feed.handler = nil
}
