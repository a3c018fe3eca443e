package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coin-pulse/pkg/jwt"
	"coin-pulse/pkg/logger"
	"coin-pulse/services/notification/internal/entity"
	"coin-pulse/services/notification/internal/usecase"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationUseCase usecase.NotificationUseCase
	logger              *logger.Logger
	jwtService          *jwt.Service
}

func NewNotificationHandler(notificationUseCase usecase.NotificationUseCase, logger *logger.Logger, jwtService *jwt.Service) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
		logger:              logger,
		jwtService:          jwtService,
	}
}

type SendNotificationRequest struct {
	UserID    string                 `json:"user_id" binding:"required"`
	Message   string                 `json:"message" binding:"required"`
	Level     string                 `json:"level"`
	Title     string                 `json:"title"`
	Category  string                 `json:"category"`
	Priority  string                 `json:"priority"`
	Data      map[string]interface{} `json:"data,omitempty"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
}

type BroadcastNotificationRequest struct {
	UserIDs  []string               `json:"user_ids" binding:"required"`
	Message  string                 `json:"message" binding:"required"`
	Level    string                 `json:"level"`
	Title    string                 `json:"title"`
	Category string                 `json:"category"`
	Priority string                 `json:"priority"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

func (h *NotificationHandler) SendNotification(c *gin.Context) {
	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notification, err := h.notificationUseCase.SendNotification(req.UserID, req.Message, req.Level, req.Title, req.Category, req.Priority, req.Data, req.ExpiresAt)
	if err != nil {
		var validationErr *entity.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
			return
		}
		h.logger.Error("Failed to send notification: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send notification"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Notification sent successfully",
		"notification": notification,
	})
}

func (h *NotificationHandler) BroadcastNotification(c *gin.Context) {
	var req BroadcastNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sentCount := h.notificationUseCase.BroadcastNotification(req.UserIDs, req.Message, req.Level, req.Title, req.Category, req.Priority, req.Data)

	c.JSON(http.StatusOK, gin.H{
		"message":    "Notifications sent successfully",
		"sent_count": sentCount,
	})
}

// GetNotifications godoc
// @Summary      Get user notifications
// @Description  Get notifications for the authenticated user, newest and most urgent first
// @Tags         notifications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Number of notifications to return (max 100)"
// @Param        category query string false "Filter by category (trade|bot|market|system|portfolio|risk)"
// @Param        unread_only query bool false "Only unread notifications"
// @Param        priority query string false "Comma-separated priority filter (low,medium,high,urgent)"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /notifications [get]
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit >= 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	unreadOnly := c.Query("unread_only") == "true"
	category := c.Query("category")
	priorities := splitPriorities(c.Query("priority"))

	notifications := h.notificationUseCase.GetNotifications(userID, limit, category, unreadOnly, priorities)

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// GetUnreadCount godoc
// @Summary      Get unread notification count
// @Description  Count of unread notifications for the authenticated user
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        category query string false "Filter by category"
// @Param        priority query string false "Comma-separated priority filter"
// @Success      200  {object}  map[string]interface{}
// @Router       /notifications/unread-count [get]
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	count := h.notificationUseCase.GetUnreadCount(userID, c.Query("category"), splitPriorities(c.Query("priority")))

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// GetStats godoc
// @Summary      Get notification statistics
// @Description  Totals plus per-category and per-priority counts for the authenticated user
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /notifications/stats [get]
func (h *NotificationHandler) GetStats(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, h.notificationUseCase.GetStats(userID))
}

// MarkAsRead godoc
// @Summary      Mark a notification as read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Notification ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /notifications/{id}/read [post]
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	notificationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	if !h.notificationUseCase.MarkAsRead(userID, notificationID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Notification marked as read",
		"notification_id": notificationID,
	})
}

// MarkAllAsRead godoc
// @Summary      Mark all notifications as read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        category query string false "Restrict to one category"
// @Success      200  {object}  map[string]interface{}
// @Router       /notifications/read-all [post]
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	count := h.notificationUseCase.MarkAllAsRead(userID, c.Query("category"))

	c.JSON(http.StatusOK, gin.H{
		"message": "Notifications marked as read",
		"count":   count,
	})
}

// DeleteNotification godoc
// @Summary      Delete a notification
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Notification ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /notifications/{id} [delete]
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	notificationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	if !h.notificationUseCase.DeleteNotification(userID, notificationID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Notification deleted",
		"notification_id": notificationID,
	})
}

func (h *NotificationHandler) ProcessQueue(c *gin.Context) {
	queueLength, err := h.notificationUseCase.QueueLength()
	if err != nil {
		h.logger.Error("Failed to get queue length: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get queue length"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Queue consumption runs in the background. This endpoint shows queue status only.",
		"queue_length": queueLength,
	})
}

func splitPriorities(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	priorities := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			priorities = append(priorities, trimmed)
		}
	}
	return priorities
}
