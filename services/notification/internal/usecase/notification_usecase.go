package usecase

import (
	"fmt"
	"time"

	"coin-pulse/pkg/logger"
	"coin-pulse/pkg/queue"
	"coin-pulse/services/notification/internal/entity"
	"coin-pulse/services/notification/internal/repo/persistent"
	"coin-pulse/services/notification/internal/store"
)

type NotificationUseCase interface {
	SendNotification(userID, message, level, title, category, priority string, data map[string]interface{}, expiresAt *time.Time) (entity.Notification, error)
	BroadcastNotification(userIDs []string, message, level, title, category, priority string, data map[string]interface{}) int
	GetNotifications(userID string, limit int, category string, unreadOnly bool, priorities []string) []entity.Notification
	MarkAsRead(userID string, notificationID int64) bool
	MarkAllAsRead(userID string, category string) int
	DeleteNotification(userID string, notificationID int64) bool
	GetUnreadCount(userID string, category string, priorities []string) int
	GetStats(userID string) entity.Stats
	AddListener(userID string, listener store.Listener) int64
	RemoveListener(userID string, listenerID int64)
	QueueLength() (int, error)
	HandleTradeExecuted(task map[string]interface{}) error
	HandleBotStatus(task map[string]interface{}) error
	HandleRiskAlert(task map[string]interface{}) error
	HandleMarketAlert(task map[string]interface{}) error
	HandleSystemBroadcast(task map[string]interface{}) error
}

type notificationUseCase struct {
	store            *store.Store
	notificationRepo persistent.NotificationRepository
	queueClient      *queue.Client
	logger           *logger.Logger
}

func NewNotificationUseCase(notificationStore *store.Store, notificationRepo persistent.NotificationRepository, queueClient *queue.Client, logger *logger.Logger) NotificationUseCase {
	return &notificationUseCase{
		store:            notificationStore,
		notificationRepo: notificationRepo,
		queueClient:      queueClient,
		logger:           logger,
	}
}

func (uc *notificationUseCase) SendNotification(userID, message, level, title, category, priority string, data map[string]interface{}, expiresAt *time.Time) (entity.Notification, error) {
	return uc.store.Create(store.CreateInput{
		UserID:    userID,
		Message:   message,
		Level:     entity.Level(level),
		Title:     title,
		Category:  entity.Category(category),
		Priority:  entity.Priority(priority),
		Data:      data,
		ExpiresAt: expiresAt,
	})
}

func (uc *notificationUseCase) BroadcastNotification(userIDs []string, message, level, title, category, priority string, data map[string]interface{}) int {
	return uc.store.Broadcast(userIDs, store.CreateInput{
		Message:  message,
		Level:    entity.Level(level),
		Title:    title,
		Category: entity.Category(category),
		Priority: entity.Priority(priority),
		Data:     data,
	})
}

func (uc *notificationUseCase) GetNotifications(userID string, limit int, category string, unreadOnly bool, priorities []string) []entity.Notification {
	return uc.store.List(userID, store.ListOptions{
		Limit:      limit,
		Category:   entity.Category(category),
		UnreadOnly: unreadOnly,
		Priorities: toPriorities(priorities),
	})
}

func (uc *notificationUseCase) MarkAsRead(userID string, notificationID int64) bool {
	return uc.store.MarkRead(userID, notificationID)
}

func (uc *notificationUseCase) MarkAllAsRead(userID string, category string) int {
	return uc.store.MarkAllRead(userID, entity.Category(category))
}

func (uc *notificationUseCase) DeleteNotification(userID string, notificationID int64) bool {
	return uc.store.Delete(userID, notificationID)
}

func (uc *notificationUseCase) GetUnreadCount(userID string, category string, priorities []string) int {
	return uc.store.UnreadCount(userID, entity.Category(category), toPriorities(priorities))
}

func (uc *notificationUseCase) GetStats(userID string) entity.Stats {
	return uc.store.Stats(userID)
}

func (uc *notificationUseCase) AddListener(userID string, listener store.Listener) int64 {
	return uc.store.AddListener(userID, listener)
}

func (uc *notificationUseCase) RemoveListener(userID string, listenerID int64) {
	uc.store.RemoveListener(userID, listenerID)
}

func (uc *notificationUseCase) QueueLength() (int, error) {
	if uc.queueClient == nil {
		return 0, fmt.Errorf("queue client is not available")
	}
	return uc.queueClient.GetQueueLength()
}

func (uc *notificationUseCase) HandleTradeExecuted(task map[string]interface{}) error {
	userID, _ := task["user_id"].(string)
	symbol, _ := task["symbol"].(string)
	side, _ := task["side"].(string)

	if userID == "" || symbol == "" || side == "" {
		uc.logger.Error("[TRADING EVENTS] Invalid trade_executed task: missing user_id, symbol or side, task=%+v", task)
		return fmt.Errorf("invalid task: missing user_id, symbol or side")
	}

	message := fmt.Sprintf("%s order executed for %s", sideLabel(side), symbol)
	if amount, ok := task["amount"].(float64); ok {
		if price, ok := task["price"].(float64); ok {
			message = fmt.Sprintf("%s order executed: %g %s @ %g", sideLabel(side), amount, symbol, price)
		}
	}

	_, err := uc.store.Create(store.CreateInput{
		UserID:   userID,
		Message:  message,
		Level:    entity.LevelSuccess,
		Category: entity.CategoryTrade,
		Priority: entity.PriorityMedium,
		Data: map[string]interface{}{
			"symbol":   symbol,
			"side":     side,
			"amount":   task["amount"],
			"price":    task["price"],
			"trade_id": task["trade_id"],
		},
	})
	if err != nil {
		uc.logger.Error("[TRADING EVENTS] Failed to create trade notification for user %s: %v", userID, err)
		return err
	}
	return nil
}

func (uc *notificationUseCase) HandleBotStatus(task map[string]interface{}) error {
	userID, _ := task["user_id"].(string)
	botID, _ := task["bot_id"].(string)
	status, _ := task["status"].(string)

	if userID == "" || botID == "" || status == "" {
		uc.logger.Error("[TRADING EVENTS] Invalid bot_status task: missing user_id, bot_id or status, task=%+v", task)
		return fmt.Errorf("invalid task: missing user_id, bot_id or status")
	}

	botName, err := uc.notificationRepo.GetBotName(botID)
	if err != nil {
		uc.logger.Warn("[TRADING EVENTS] Failed to get bot name for ID %s: %v", botID, err)
		botName = botID
	}

	level := entity.LevelInfo
	priority := entity.PriorityMedium
	switch status {
	case "error":
		level = entity.LevelError
		priority = entity.PriorityHigh
	case "stopped":
		level = entity.LevelWarning
	case "running":
		level = entity.LevelSuccess
	}

	_, err = uc.store.Create(store.CreateInput{
		UserID:   userID,
		Message:  fmt.Sprintf("Bot %s is now %s", botName, status),
		Level:    level,
		Category: entity.CategoryBot,
		Priority: priority,
		Data: map[string]interface{}{
			"bot_id": botID,
			"status": status,
		},
	})
	if err != nil {
		uc.logger.Error("[TRADING EVENTS] Failed to create bot status notification for user %s: %v", userID, err)
		return err
	}
	return nil
}

func (uc *notificationUseCase) HandleRiskAlert(task map[string]interface{}) error {
	userID, _ := task["user_id"].(string)
	message, _ := task["message"].(string)

	if userID == "" || message == "" {
		uc.logger.Error("[TRADING EVENTS] Invalid risk_alert task: missing user_id or message, task=%+v", task)
		return fmt.Errorf("invalid task: missing user_id or message")
	}

	priority := entity.PriorityHigh
	if p, ok := task["priority"].(string); ok && entity.Priority(p).Valid() {
		priority = entity.Priority(p)
	}

	_, err := uc.store.Create(store.CreateInput{
		UserID:   userID,
		Message:  message,
		Level:    entity.LevelWarning,
		Category: entity.CategoryRisk,
		Priority: priority,
		Data: map[string]interface{}{
			"rule":   task["rule"],
			"metric": task["metric"],
			"value":  task["value"],
		},
	})
	if err != nil {
		uc.logger.Error("[TRADING EVENTS] Failed to create risk alert for user %s: %v", userID, err)
		return err
	}
	return nil
}

func (uc *notificationUseCase) HandleMarketAlert(task map[string]interface{}) error {
	userID, _ := task["user_id"].(string)
	symbol, _ := task["symbol"].(string)
	message, _ := task["message"].(string)

	if userID == "" || symbol == "" || message == "" {
		uc.logger.Error("[TRADING EVENTS] Invalid market_alert task: missing user_id, symbol or message, task=%+v", task)
		return fmt.Errorf("invalid task: missing user_id, symbol or message")
	}

	_, err := uc.store.Create(store.CreateInput{
		UserID:   userID,
		Message:  message,
		Level:    entity.LevelInfo,
		Category: entity.CategoryMarket,
		Priority: entity.PriorityMedium,
		Data: map[string]interface{}{
			"symbol": symbol,
			"price":  task["price"],
			"change": task["change"],
		},
	})
	if err != nil {
		uc.logger.Error("[TRADING EVENTS] Failed to create market alert for user %s: %v", userID, err)
		return err
	}
	return nil
}

func (uc *notificationUseCase) HandleSystemBroadcast(task map[string]interface{}) error {
	message, _ := task["message"].(string)
	if message == "" {
		uc.logger.Error("[TRADING EVENTS] Invalid system_broadcast task: missing message, task=%+v", task)
		return fmt.Errorf("invalid task: missing message")
	}

	userIDs, err := uc.notificationRepo.GetActiveUserIDs()
	if err != nil {
		uc.logger.Error("[TRADING EVENTS] Failed to get active users for broadcast: %v", err)
		return err
	}
	if len(userIDs) == 0 {
		uc.logger.Info("[TRADING EVENTS] No active users for system broadcast, skipping")
		return nil
	}

	level := "info"
	if l, ok := task["level"].(string); ok && entity.Level(l).Valid() {
		level = l
	}
	title, _ := task["title"].(string)

	sent := uc.BroadcastNotification(userIDs, message, level, title, string(entity.CategorySystem), string(entity.PriorityMedium), nil)
	uc.logger.Info("[TRADING EVENTS] System broadcast delivered to %d/%d users", sent, len(userIDs))
	return nil
}

func sideLabel(side string) string {
	switch side {
	case "buy":
		return "Buy"
	case "sell":
		return "Sell"
	}
	return side
}

func toPriorities(values []string) []entity.Priority {
	if len(values) == 0 {
		return nil
	}
	priorities := make([]entity.Priority, len(values))
	for i, v := range values {
		priorities[i] = entity.Priority(v)
	}
	return priorities
}
