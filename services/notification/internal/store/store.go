package store

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"coin-pulse/pkg/logger"
	"coin-pulse/services/notification/internal/entity"
)

// Listener receives every new notification created for the user it is
// registered under. Listeners run on their own goroutines; a failing or
// panicking listener never affects the creating caller or other listeners.
type Listener func(notification entity.Notification) error

// CreateInput carries the creation parameters. Level, Category and Priority
// default to info/system/medium when empty.
type CreateInput struct {
	UserID    string
	Message   string
	Level     entity.Level
	Title     string
	Category  entity.Category
	Priority  entity.Priority
	Data      map[string]interface{}
	ExpiresAt *time.Time
}

// ListOptions filters and bounds List results. A zero Category or empty
// Priorities slice means no filtering on that axis.
type ListOptions struct {
	Limit      int
	Category   entity.Category
	UnreadOnly bool
	Priorities []entity.Priority
}

// Store owns all notification records for all users, keyed by user id, plus
// the per-user listener registrations for live delivery. Purely in-memory:
// constructed once at process start, no teardown required.
//
// Each user's collection is guarded by its own mutex so operations on
// unrelated users never serialize against each other. Notification ids come
// from a single process-wide counter and are strictly increasing across all
// users, never reused.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*userBucket
	listeners map[string]map[int64]Listener

	nextID         atomic.Int64
	nextListenerID atomic.Int64

	logger *logger.Logger
}

type userBucket struct {
	mu    sync.Mutex
	items []*entity.Notification
}

func New(log *logger.Logger) *Store {
	return &Store{
		users:     make(map[string]*userBucket),
		listeners: make(map[string]map[int64]Listener),
		logger:    log,
	}
}

func (s *Store) bucket(userID string) *userBucket {
	s.mu.RLock()
	b, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.users[userID]; ok {
		return b
	}
	b = &userBucket{}
	s.users[userID] = b
	return b
}

// lookup returns the bucket without creating one, so read paths never grow
// the user map.
func (s *Store) lookup(userID string) *userBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID]
}

// Create validates the input, assigns the next id, prunes expired entries for
// the user, appends the record and fans it out to the user's listeners. The
// fan-out is issued concurrently and never blocks or fails the caller.
func (s *Store) Create(input CreateInput) (entity.Notification, error) {
	if input.Message == "" {
		return entity.Notification{}, &entity.ValidationError{Field: "message", Message: "must not be empty"}
	}

	level := input.Level
	if level == "" {
		level = entity.LevelInfo
	}
	if !level.Valid() {
		return entity.Notification{}, &entity.ValidationError{Field: "level", Message: "unrecognized value " + string(input.Level)}
	}

	if input.Category != "" && !input.Category.Valid() {
		return entity.Notification{}, &entity.ValidationError{Field: "category", Message: "unrecognized value " + string(input.Category)}
	}
	category := input.Category
	if category == "" {
		category = entity.CategorySystem
	}

	priority := input.Priority
	if priority == "" {
		priority = entity.PriorityMedium
	}
	if !priority.Valid() {
		return entity.Notification{}, &entity.ValidationError{Field: "priority", Message: "unrecognized value " + string(input.Priority)}
	}

	title := input.Title
	if title == "" {
		// Derived from the supplied category, not the defaulted one: a
		// creation without a category titles as "Notification <Level>".
		title = entity.DefaultTitle(level, input.Category)
	}

	data := make(map[string]interface{}, len(input.Data))
	for k, v := range input.Data {
		data[k] = v
	}

	now := time.Now().UTC()
	notification := &entity.Notification{
		ID:        s.nextID.Add(1),
		UserID:    input.UserID,
		Title:     title,
		Message:   input.Message,
		Level:     level,
		Category:  category,
		Priority:  priority,
		Data:      data,
		Timestamp: now,
		CreatedAt: now,
		ExpiresAt: input.ExpiresAt,
	}

	b := s.bucket(input.UserID)
	b.mu.Lock()
	// Remove expired notifications before adding the new one.
	kept := b.items[:0]
	for _, n := range b.items {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	b.items = append(kept, notification)
	result := clone(notification)
	b.mu.Unlock()

	s.logger.Info("Created notification %d for user %s: %s", notification.ID, input.UserID, input.Message)

	s.dispatch(input.UserID, result)

	return result, nil
}

// List returns the user's notifications matching the options, sorted by
// priority descending then creation time descending, truncated to the limit.
// Expired entries are never returned. Does not mutate state.
func (s *Store) List(userID string, opts ListOptions) []entity.Notification {
	limit := opts.Limit
	if limit < 0 {
		limit = 0
	}

	b := s.lookup(userID)
	if b == nil {
		return []entity.Notification{}
	}

	now := time.Now().UTC()
	b.mu.Lock()
	matched := make([]entity.Notification, 0, len(b.items))
	for _, n := range b.items {
		if s.matches(n, now, opts.Category, opts.UnreadOnly, opts.Priorities) {
			matched = append(matched, clone(n))
		}
	}
	b.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority.Rank() != matched[j].Priority.Rank() {
			return matched[i].Priority.Rank() > matched[j].Priority.Rank()
		}
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// MarkRead marks the notification as read and stamps ReadAt on the first
// transition only. Returns true when the notification exists for this user,
// whether or not this call changed its state.
func (s *Store) MarkRead(userID string, notificationID int64) bool {
	b := s.lookup(userID)
	if b == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range b.items {
		if n.ID == notificationID {
			if !n.Read {
				n.Read = true
				readAt := time.Now().UTC()
				n.ReadAt = &readAt
				s.logger.Info("Marked notification %d as read for user %s", notificationID, userID)
			}
			return true
		}
	}
	return false
}

// MarkAllRead marks every unread notification as read, optionally restricted
// to one category, and returns the number of notifications that transitioned
// in this call.
func (s *Store) MarkAllRead(userID string, category entity.Category) int {
	b := s.lookup(userID)
	if b == nil {
		return 0
	}

	count := 0
	b.mu.Lock()
	for _, n := range b.items {
		if n.Read {
			continue
		}
		if category != "" && n.Category != category {
			continue
		}
		n.Read = true
		readAt := time.Now().UTC()
		n.ReadAt = &readAt
		count++
	}
	b.mu.Unlock()

	s.logger.Info("Marked %d notifications as read for user %s", count, userID)
	return count
}

// Delete removes the notification if present and reports whether a removal
// occurred. Ids are never reused afterwards.
func (s *Store) Delete(userID string, notificationID int64) bool {
	b := s.lookup(userID)
	if b == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, n := range b.items {
		if n.ID == notificationID {
			b.items = append(b.items[:i], b.items[i+1:]...)
			s.logger.Info("Deleted notification %d for user %s", notificationID, userID)
			return true
		}
	}
	return false
}

// UnreadCount counts the user's unread notifications matching the optional
// filters, with the same filter semantics as List.
func (s *Store) UnreadCount(userID string, category entity.Category, priorities []entity.Priority) int {
	b := s.lookup(userID)
	if b == nil {
		return 0
	}

	now := time.Now().UTC()
	count := 0
	b.mu.Lock()
	for _, n := range b.items {
		if s.matches(n, now, category, true, priorities) {
			count++
		}
	}
	b.mu.Unlock()
	return count
}

// Stats returns totals plus per-category and per-priority counts over all of
// the user's live notifications, read or not.
func (s *Store) Stats(userID string) entity.Stats {
	stats := entity.Stats{
		Categories: make(map[string]int),
		Priorities: make(map[string]int),
	}

	b := s.lookup(userID)
	if b == nil {
		return stats
	}

	now := time.Now().UTC()
	b.mu.Lock()
	for _, n := range b.items {
		if n.Expired(now) {
			continue
		}
		stats.Total++
		if !n.Read {
			stats.Unread++
		}
		stats.Categories[string(n.Category)]++
		stats.Priorities[string(n.Priority)]++
	}
	b.mu.Unlock()
	return stats
}

// Broadcast creates the same notification once per user, concurrently. One
// user's creation failure never prevents creation for the others. Returns the
// number of successful creations.
func (s *Store) Broadcast(userIDs []string, input CreateInput) int {
	var wg sync.WaitGroup
	var sent atomic.Int64

	for _, userID := range userIDs {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			perUser := input
			perUser.UserID = userID
			if _, err := s.Create(perUser); err != nil {
				s.logger.Error("Failed to create broadcast notification for user %s: %v", userID, err)
				return
			}
			sent.Add(1)
		}(userID)
	}

	wg.Wait()
	s.logger.Info("Broadcast notification sent to %d users", sent.Load())
	return int(sent.Load())
}

// AddListener registers a callback for every subsequent creation for the user
// and returns an id for removal. Multiple listeners per user are supported.
func (s *Store) AddListener(userID string, listener Listener) int64 {
	id := s.nextListenerID.Add(1)

	s.mu.Lock()
	if s.listeners[userID] == nil {
		s.listeners[userID] = make(map[int64]Listener)
	}
	s.listeners[userID][id] = listener
	s.mu.Unlock()
	return id
}

// RemoveListener deregisters a listener. Removing an unknown id is a no-op.
func (s *Store) RemoveListener(userID string, listenerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if registered, ok := s.listeners[userID]; ok {
		delete(registered, listenerID)
		if len(registered) == 0 {
			delete(s.listeners, userID)
		}
	}
}

// dispatch invokes every listener registered for the user on its own
// goroutine. Failures and panics are logged and isolated; delivery is
// best-effort with no retry, the record stays in the store regardless.
func (s *Store) dispatch(userID string, notification entity.Notification) {
	s.mu.RLock()
	registered := make([]Listener, 0, len(s.listeners[userID]))
	for _, l := range s.listeners[userID] {
		registered = append(registered, l)
	}
	s.mu.RUnlock()

	for _, listener := range registered {
		go func(listener Listener) {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("Notification listener panicked for user %s: %v", userID, r)
				}
			}()
			if err := listener(notification); err != nil {
				s.logger.Error("Notification listener failed for user %s: %v", userID, err)
			}
		}(listener)
	}
}

func (s *Store) matches(n *entity.Notification, now time.Time, category entity.Category, unreadOnly bool, priorities []entity.Priority) bool {
	if n.Expired(now) {
		return false
	}
	if category != "" && n.Category != category {
		return false
	}
	if unreadOnly && n.Read {
		return false
	}
	if len(priorities) > 0 {
		found := false
		for _, p := range priorities {
			if n.Priority == p {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// clone copies the record so callers and listeners never share mutable state
// with the store.
func clone(n *entity.Notification) entity.Notification {
	out := *n
	out.Data = make(map[string]interface{}, len(n.Data))
	for k, v := range n.Data {
		out.Data[k] = v
	}
	return out
}
