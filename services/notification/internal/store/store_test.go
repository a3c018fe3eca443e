package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"coin-pulse/pkg/logger"
	"coin-pulse/services/notification/internal/entity"

	"github.com/stretchr/testify/assert"
)

func newTestStore() *Store {
	return New(logger.New())
}

func TestCreate_AssignsMonotonicIDs(t *testing.T) {
	s := newTestStore()

	var lastID int64
	for i := 0; i < 10; i++ {
		userID := fmt.Sprintf("user-%d", i%3)
		n, err := s.Create(CreateInput{UserID: userID, Message: "msg"})
		assert.NoError(t, err)
		assert.Greater(t, n.ID, lastID)
		lastID = n.ID
	}
}

func TestCreate_IDsNeverReusedAfterDelete(t *testing.T) {
	s := newTestStore()

	first, err := s.Create(CreateInput{UserID: "user-1", Message: "msg"})
	assert.NoError(t, err)

	assert.True(t, s.Delete("user-1", first.ID))

	second, err := s.Create(CreateInput{UserID: "user-1", Message: "msg"})
	assert.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
}

func TestCreate_Defaults(t *testing.T) {
	s := newTestStore()

	n, err := s.Create(CreateInput{UserID: "user-1", Message: "hello"})
	assert.NoError(t, err)
	assert.Equal(t, entity.LevelInfo, n.Level)
	assert.Equal(t, entity.CategorySystem, n.Category)
	assert.Equal(t, entity.PriorityMedium, n.Priority)
	assert.False(t, n.Read)
	assert.Nil(t, n.ReadAt)
	assert.Nil(t, n.ExpiresAt)
	assert.NotNil(t, n.Data)
	assert.Empty(t, n.Data)
	assert.False(t, n.Timestamp.IsZero())
	assert.Equal(t, n.Timestamp, n.CreatedAt)
}

func TestCreate_DerivedTitle(t *testing.T) {
	s := newTestStore()

	n, err := s.Create(CreateInput{
		UserID:   "user-1",
		Message:  "msg",
		Level:    entity.LevelError,
		Category: entity.CategoryRisk,
	})
	assert.NoError(t, err)
	assert.Equal(t, "Risk Error", n.Title)

	n, err = s.Create(CreateInput{
		UserID:   "user-1",
		Message:  "msg",
		Level:    entity.LevelWarning,
		Category: entity.CategoryTrade,
	})
	assert.NoError(t, err)
	assert.Equal(t, "Trade Warning", n.Title)
}

func TestCreate_DerivedTitle_NoCategory(t *testing.T) {
	s := newTestStore()

	// With no category the title falls back to "Notification <Level>"
	// even though the stored category defaults to system.
	n, err := s.Create(CreateInput{UserID: "user-1", Message: "msg", Level: entity.LevelError})
	assert.NoError(t, err)
	assert.Equal(t, "Notification Error", n.Title)
	assert.Equal(t, entity.CategorySystem, n.Category)
}

func TestCreate_ExplicitTitleKept(t *testing.T) {
	s := newTestStore()

	n, err := s.Create(CreateInput{
		UserID:   "user-1",
		Message:  "msg",
		Title:    "Order filled",
		Category: entity.CategoryTrade,
	})
	assert.NoError(t, err)
	assert.Equal(t, "Order filled", n.Title)
}

func TestCreate_Validation(t *testing.T) {
	s := newTestStore()

	_, err := s.Create(CreateInput{UserID: "user-1", Message: ""})
	assert.Error(t, err)
	var validationErr *entity.ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "message", validationErr.Field)

	_, err = s.Create(CreateInput{UserID: "user-1", Message: "msg", Level: "fatal"})
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "level", validationErr.Field)

	_, err = s.Create(CreateInput{UserID: "user-1", Message: "msg", Category: "weather"})
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "category", validationErr.Field)

	_, err = s.Create(CreateInput{UserID: "user-1", Message: "msg", Priority: "critical"})
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "priority", validationErr.Field)

	// Failed creates leave no trace.
	assert.Empty(t, s.List("user-1", ListOptions{Limit: 50}))
}

func TestList_SortsByPriorityThenRecency(t *testing.T) {
	s := newTestStore()

	low, _ := s.Create(CreateInput{UserID: "user-1", Message: "low", Priority: entity.PriorityLow})
	urgentOld, _ := s.Create(CreateInput{UserID: "user-1", Message: "urgent old", Priority: entity.PriorityUrgent})
	medium, _ := s.Create(CreateInput{UserID: "user-1", Message: "medium", Priority: entity.PriorityMedium})
	urgentNew, _ := s.Create(CreateInput{UserID: "user-1", Message: "urgent new", Priority: entity.PriorityUrgent})

	got := s.List("user-1", ListOptions{Limit: 50})
	assert.Len(t, got, 4)
	assert.Equal(t, urgentNew.ID, got[0].ID)
	assert.Equal(t, urgentOld.ID, got[1].ID)
	assert.Equal(t, medium.ID, got[2].ID)
	assert.Equal(t, low.ID, got[3].ID)
}

func TestList_FilterComposition(t *testing.T) {
	s := newTestStore()

	tradeUnread, _ := s.Create(CreateInput{UserID: "user-1", Message: "a", Category: entity.CategoryTrade})
	tradeRead, _ := s.Create(CreateInput{UserID: "user-1", Message: "b", Category: entity.CategoryTrade})
	s.Create(CreateInput{UserID: "user-1", Message: "c", Category: entity.CategoryBot})

	assert.True(t, s.MarkRead("user-1", tradeRead.ID))

	got := s.List("user-1", ListOptions{Limit: 50, Category: entity.CategoryTrade, UnreadOnly: true})
	assert.Len(t, got, 1)
	assert.Equal(t, tradeUnread.ID, got[0].ID)
}

func TestList_PriorityFilter(t *testing.T) {
	s := newTestStore()

	s.Create(CreateInput{UserID: "user-1", Message: "a", Priority: entity.PriorityLow})
	high, _ := s.Create(CreateInput{UserID: "user-1", Message: "b", Priority: entity.PriorityHigh})
	urgent, _ := s.Create(CreateInput{UserID: "user-1", Message: "c", Priority: entity.PriorityUrgent})

	got := s.List("user-1", ListOptions{
		Limit:      50,
		Priorities: []entity.Priority{entity.PriorityHigh, entity.PriorityUrgent},
	})
	assert.Len(t, got, 2)
	assert.Equal(t, urgent.ID, got[0].ID)
	assert.Equal(t, high.ID, got[1].ID)
}

func TestList_UnrecognizedPriorityMatchesNothing(t *testing.T) {
	s := newTestStore()

	s.Create(CreateInput{UserID: "user-1", Message: "a"})

	got := s.List("user-1", ListOptions{Limit: 50, Priorities: []entity.Priority{"critical"}})
	assert.Empty(t, got)
}

func TestList_Limit(t *testing.T) {
	s := newTestStore()

	for i := 0; i < 5; i++ {
		s.Create(CreateInput{UserID: "user-1", Message: "msg"})
	}

	assert.Len(t, s.List("user-1", ListOptions{Limit: 3}), 3)
	assert.Empty(t, s.List("user-1", ListOptions{Limit: 0}))
	assert.Empty(t, s.List("user-1", ListOptions{Limit: -1}))
}

func TestList_UnknownUser(t *testing.T) {
	s := newTestStore()
	assert.Empty(t, s.List("nobody", ListOptions{Limit: 50}))
}

func TestMarkRead_Idempotent(t *testing.T) {
	s := newTestStore()

	n, _ := s.Create(CreateInput{UserID: "user-1", Message: "msg"})

	assert.True(t, s.MarkRead("user-1", n.ID))
	first := s.List("user-1", ListOptions{Limit: 1})[0]
	assert.True(t, first.Read)
	assert.NotNil(t, first.ReadAt)

	// Second call still returns true and does not touch the timestamp.
	assert.True(t, s.MarkRead("user-1", n.ID))
	second := s.List("user-1", ListOptions{Limit: 1})[0]
	assert.Equal(t, first.ReadAt, second.ReadAt)
}

func TestMarkRead_UnknownID(t *testing.T) {
	s := newTestStore()

	s.Create(CreateInput{UserID: "user-1", Message: "msg"})
	assert.False(t, s.MarkRead("user-1", 9999))
	assert.False(t, s.MarkRead("nobody", 1))
}

func TestMarkRead_PartitionIsolation(t *testing.T) {
	s := newTestStore()

	n, _ := s.Create(CreateInput{UserID: "user-2", Message: "msg"})

	// user-1 cannot mark user-2's notification.
	assert.False(t, s.MarkRead("user-1", n.ID))

	got := s.List("user-2", ListOptions{Limit: 1})
	assert.False(t, got[0].Read)
}

func TestMarkAllRead_CountsOnlyTransitions(t *testing.T) {
	s := newTestStore()

	for i := 0; i < 5; i++ {
		s.Create(CreateInput{UserID: "user-1", Message: "unread"})
	}
	for i := 0; i < 3; i++ {
		n, _ := s.Create(CreateInput{UserID: "user-1", Message: "read"})
		s.MarkRead("user-1", n.ID)
	}

	assert.Equal(t, 5, s.MarkAllRead("user-1", ""))
	assert.Equal(t, 0, s.MarkAllRead("user-1", ""))
}

func TestMarkAllRead_CategoryFilter(t *testing.T) {
	s := newTestStore()

	s.Create(CreateInput{UserID: "user-1", Message: "a", Category: entity.CategoryTrade})
	s.Create(CreateInput{UserID: "user-1", Message: "b", Category: entity.CategoryTrade})
	s.Create(CreateInput{UserID: "user-1", Message: "c", Category: entity.CategoryBot})

	assert.Equal(t, 2, s.MarkAllRead("user-1", entity.CategoryTrade))
	assert.Equal(t, 1, s.UnreadCount("user-1", "", nil))
}

func TestDelete(t *testing.T) {
	s := newTestStore()

	n, _ := s.Create(CreateInput{UserID: "user-1", Message: "msg"})

	assert.True(t, s.Delete("user-1", n.ID))
	assert.False(t, s.Delete("user-1", n.ID))
	assert.False(t, s.Delete("nobody", n.ID))
	assert.Empty(t, s.List("user-1", ListOptions{Limit: 50}))
}

func TestUnreadCount_Filters(t *testing.T) {
	s := newTestStore()

	s.Create(CreateInput{UserID: "user-1", Message: "a", Category: entity.CategoryTrade, Priority: entity.PriorityHigh})
	s.Create(CreateInput{UserID: "user-1", Message: "b", Category: entity.CategoryTrade})
	read, _ := s.Create(CreateInput{UserID: "user-1", Message: "c", Category: entity.CategoryBot})
	s.MarkRead("user-1", read.ID)

	assert.Equal(t, 2, s.UnreadCount("user-1", "", nil))
	assert.Equal(t, 2, s.UnreadCount("user-1", entity.CategoryTrade, nil))
	assert.Equal(t, 1, s.UnreadCount("user-1", "", []entity.Priority{entity.PriorityHigh}))
	assert.Equal(t, 0, s.UnreadCount("nobody", "", nil))
}

func TestStats(t *testing.T) {
	s := newTestStore()

	s.Create(CreateInput{UserID: "user-1", Message: "a", Category: entity.CategoryTrade, Priority: entity.PriorityHigh})
	s.Create(CreateInput{UserID: "user-1", Message: "b", Category: entity.CategoryTrade})
	read, _ := s.Create(CreateInput{UserID: "user-1", Message: "c", Category: entity.CategoryRisk, Priority: entity.PriorityUrgent})
	s.MarkRead("user-1", read.ID)

	stats := s.Stats("user-1")
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Unread)
	assert.Equal(t, 2, stats.Categories["trade"])
	assert.Equal(t, 1, stats.Categories["risk"])
	assert.Equal(t, 1, stats.Priorities["high"])
	assert.Equal(t, 1, stats.Priorities["medium"])
	assert.Equal(t, 1, stats.Priorities["urgent"])
}

func TestStats_UnknownUser(t *testing.T) {
	s := newTestStore()

	stats := s.Stats("nobody")
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.Unread)
	assert.Empty(t, stats.Categories)
	assert.Empty(t, stats.Priorities)
}

func TestExpiry_ExcludedFromReads(t *testing.T) {
	s := newTestStore()

	past := time.Now().UTC().Add(-time.Minute)
	expired, err := s.Create(CreateInput{UserID: "user-1", Message: "old", ExpiresAt: &past})
	assert.NoError(t, err)
	s.Create(CreateInput{UserID: "user-1", Message: "fresh"})

	got := s.List("user-1", ListOptions{Limit: 50})
	assert.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].Message)

	assert.Equal(t, 1, s.UnreadCount("user-1", "", nil))
	assert.Equal(t, 1, s.Stats("user-1").Total)
	_ = expired
}

func TestExpiry_PrunedOnNextCreate(t *testing.T) {
	s := newTestStore()

	past := time.Now().UTC().Add(-time.Minute)
	expired, _ := s.Create(CreateInput{UserID: "user-1", Message: "old", ExpiresAt: &past})

	// Expired entries are purged physically on the next write for the user.
	s.Create(CreateInput{UserID: "user-1", Message: "fresh"})

	b := s.lookup("user-1")
	b.mu.Lock()
	assert.Len(t, b.items, 1)
	assert.NotEqual(t, expired.ID, b.items[0].ID)
	b.mu.Unlock()
}

func TestExpiry_FutureExpiryStillVisible(t *testing.T) {
	s := newTestStore()

	future := time.Now().UTC().Add(time.Hour)
	s.Create(CreateInput{UserID: "user-1", Message: "msg", ExpiresAt: &future})

	assert.Len(t, s.List("user-1", ListOptions{Limit: 50}), 1)
}

func TestBroadcast(t *testing.T) {
	s := newTestStore()

	userIDs := []string{"user-1", "user-2", "user-3"}
	sent := s.Broadcast(userIDs, CreateInput{Message: "maintenance at 02:00"})
	assert.Equal(t, 3, sent)

	for _, userID := range userIDs {
		got := s.List(userID, ListOptions{Limit: 50})
		assert.Len(t, got, 1)
		assert.Equal(t, "maintenance at 02:00", got[0].Message)
		assert.Equal(t, userID, got[0].UserID)
	}
}

func TestBroadcast_InvalidInputFailsAllQuietly(t *testing.T) {
	s := newTestStore()

	sent := s.Broadcast([]string{"user-1", "user-2"}, CreateInput{Message: ""})
	assert.Equal(t, 0, sent)
	assert.Empty(t, s.List("user-1", ListOptions{Limit: 50}))
}

func TestListeners_FanOut(t *testing.T) {
	s := newTestStore()

	received := make(chan entity.Notification, 2)
	listener := func(n entity.Notification) error {
		received <- n
		return nil
	}

	s.AddListener("user-1", listener)
	s.AddListener("user-1", listener)

	created, err := s.Create(CreateInput{UserID: "user-1", Message: "x"})
	assert.NoError(t, err)

	for i := 0; i < 2; i++ {
		select {
		case n := <-received:
			assert.Equal(t, created.ID, n.ID)
			assert.Equal(t, "x", n.Message)
		case <-time.After(time.Second):
			t.Fatal("listener was not invoked")
		}
	}
}

func TestListeners_FailureIsolated(t *testing.T) {
	s := newTestStore()

	received := make(chan entity.Notification, 1)
	s.AddListener("user-1", func(n entity.Notification) error {
		return errors.New("delivery failed")
	})
	s.AddListener("user-1", func(n entity.Notification) error {
		received <- n
		return nil
	})

	_, err := s.Create(CreateInput{UserID: "user-1", Message: "x"})
	assert.NoError(t, err)

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("healthy listener was not invoked despite sibling failure")
	}
}

func TestListeners_PanicIsolated(t *testing.T) {
	s := newTestStore()

	received := make(chan entity.Notification, 1)
	s.AddListener("user-1", func(n entity.Notification) error {
		panic("listener bug")
	})
	s.AddListener("user-1", func(n entity.Notification) error {
		received <- n
		return nil
	})

	_, err := s.Create(CreateInput{UserID: "user-1", Message: "x"})
	assert.NoError(t, err)

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("healthy listener was not invoked despite sibling panic")
	}
}

func TestListeners_RemoveStopsDelivery(t *testing.T) {
	s := newTestStore()

	received := make(chan entity.Notification, 1)
	id := s.AddListener("user-1", func(n entity.Notification) error {
		received <- n
		return nil
	})
	s.RemoveListener("user-1", id)

	s.Create(CreateInput{UserID: "user-1", Message: "x"})

	select {
	case <-received:
		t.Fatal("removed listener still received notification")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestListeners_RemoveUnknownIsNoOp(t *testing.T) {
	s := newTestStore()

	// Must not panic or error.
	s.RemoveListener("user-1", 42)
	s.RemoveListener("nobody", 1)
}

func TestListeners_ScopedToUser(t *testing.T) {
	s := newTestStore()

	received := make(chan entity.Notification, 1)
	s.AddListener("user-1", func(n entity.Notification) error {
		received <- n
		return nil
	})

	s.Create(CreateInput{UserID: "user-2", Message: "x"})

	select {
	case <-received:
		t.Fatal("listener received another user's notification")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConcurrentCreates_DistinctIDs(t *testing.T) {
	s := newTestStore()

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", w%4)
			for i := 0; i < perWorker; i++ {
				_, err := s.Create(CreateInput{UserID: userID, Message: "msg"})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	total := 0
	for w := 0; w < 4; w++ {
		userID := fmt.Sprintf("user-%d", w)
		for _, n := range s.List(userID, ListOptions{Limit: workers * perWorker}) {
			assert.False(t, seen[n.ID], "id %d assigned twice", n.ID)
			seen[n.ID] = true
			total++
		}
	}
	assert.Equal(t, workers*perWorker, total)
}

func TestReturnedNotificationsAreCopies(t *testing.T) {
	s := newTestStore()

	created, _ := s.Create(CreateInput{UserID: "user-1", Message: "msg", Data: map[string]interface{}{"k": "v"}})
	created.Data["k"] = "mutated"
	created.Message = "mutated"

	got := s.List("user-1", ListOptions{Limit: 1})[0]
	assert.Equal(t, "msg", got.Message)
	assert.Equal(t, "v", got.Data["k"])
}
