package entity

import (
	"fmt"
	"time"
)

// Level classifies the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelError, LevelSuccess:
		return true
	}
	return false
}

// Category classifies the origin of a notification. The vocabulary is closed;
// producers and the store must agree on it.
type Category string

const (
	CategoryTrade     Category = "trade"
	CategoryBot       Category = "bot"
	CategoryMarket    Category = "market"
	CategorySystem    Category = "system"
	CategoryPortfolio Category = "portfolio"
	CategoryRisk      Category = "risk"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryTrade, CategoryBot, CategoryMarket, CategorySystem, CategoryPortfolio, CategoryRisk:
		return true
	}
	return false
}

// Priority classifies the urgency of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Rank orders priorities for sorting: urgent > high > medium > low.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

var levelTitles = map[Level]string{
	LevelInfo:    "Information",
	LevelWarning: "Warning",
	LevelError:   "Error",
	LevelSuccess: "Success",
}

var categoryTitles = map[Category]string{
	CategoryTrade:     "Trade",
	CategoryBot:       "Bot",
	CategoryMarket:    "Market",
	CategorySystem:    "System",
	CategoryPortfolio: "Portfolio",
	CategoryRisk:      "Risk",
}

// DefaultTitle derives a title from level and category, e.g. "Trade Warning".
// Unknown or absent values fall back to "Notification".
func DefaultTitle(level Level, category Category) string {
	categoryTitle, ok := categoryTitles[category]
	if !ok {
		categoryTitle = "Notification"
	}
	levelTitle, ok := levelTitles[level]
	if !ok {
		levelTitle = "Notification"
	}
	return categoryTitle + " " + levelTitle
}

// Notification is a single alert delivered to one user.
type Notification struct {
	ID        int64                  `json:"id"`
	UserID    string                 `json:"user_id"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Level     Level                  `json:"level"`
	Category  Category               `json:"category"`
	Priority  Priority               `json:"priority"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	CreatedAt time.Time              `json:"created_at"`
	Read      bool                   `json:"read"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
}

// Expired reports whether the notification is past its expiry at the given
// instant. Notifications without an expiry never expire.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

// Stats summarizes a user's notifications. Category and priority counts cover
// all notifications, not just unread ones.
type Stats struct {
	Total      int            `json:"total"`
	Unread     int            `json:"unread"`
	Categories map[string]int `json:"categories"`
	Priorities map[string]int `json:"priorities"`
}

// ValidationError reports malformed input to notification creation. It is the
// only error the store surfaces; lookups on unknown ids degrade to zero values
// instead.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
