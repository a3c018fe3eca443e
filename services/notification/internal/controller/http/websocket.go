package http

import (
	"fmt"
	"net/http"

	"coin-pulse/services/notification/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsClientMessage struct {
	Action         string `json:"action"`
	NotificationID int64  `json:"notification_id"`
	Category       string `json:"category"`
}

// HandleWebSocket serves a live notification session: it registers a store
// listener for the connected user, replays recent notifications, and serves
// read/delete/stats actions until the client disconnects. The listener is
// always removed on exit so stale callbacks never accumulate.
func (h *NotificationHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")

	if userID == "" {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
			return
		}

		claims, err := h.jwtService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		userID = claims.UserID
	}

	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection to WebSocket: %v", err)
		return
	}
	defer conn.Close()

	h.logger.Info("WebSocket connected for user %s", userID)

	// All writes go through a single channel; gorilla connections do not
	// allow concurrent writers.
	send := make(chan interface{}, 32)
	done := make(chan struct{})
	writerDone := make(chan struct{})

	listenerID := h.notificationUseCase.AddListener(userID, func(n entity.Notification) error {
		select {
		case send <- gin.H{"type": "notification", "data": n}:
			return nil
		case <-writerDone:
			return nil
		default:
			return fmt.Errorf("send buffer full, dropped notification %d for user %s", n.ID, userID)
		}
	})
	defer h.notificationUseCase.RemoveListener(userID, listenerID)

	go func() {
		// Closing the connection on exit unblocks the read loop below.
		defer close(writerDone)
		defer conn.Close()
		for {
			select {
			case <-done:
				return
			case msg := <-send:
				if err := conn.WriteJSON(msg); err != nil {
					h.logger.Error("Failed to write WebSocket message: %v", err)
					return
				}
			}
		}
	}()

	push := func(msg interface{}) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	push(gin.H{
		"type": "initial_notifications",
		"data": h.notificationUseCase.GetNotifications(userID, 20, "", false, nil),
	})
	push(gin.H{
		"type":  "unread_count_update",
		"count": h.notificationUseCase.GetUnreadCount(userID, "", nil),
	})

	for {
		var msg wsClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket read error: %v", err)
			}
			break
		}

		switch msg.Action {
		case "ping":
			push(gin.H{"type": "pong"})

		case "mark_read":
			if msg.NotificationID == 0 {
				continue
			}
			if h.notificationUseCase.MarkAsRead(userID, msg.NotificationID) {
				push(gin.H{"type": "notification_read", "notification_id": msg.NotificationID})
				push(gin.H{"type": "unread_count_update", "count": h.notificationUseCase.GetUnreadCount(userID, "", nil)})
			}

		case "mark_all_read":
			count := h.notificationUseCase.MarkAllAsRead(userID, msg.Category)
			push(gin.H{"type": "all_notifications_read", "count": count, "category": msg.Category})
			push(gin.H{"type": "unread_count_update", "count": h.notificationUseCase.GetUnreadCount(userID, "", nil)})

		case "get_stats":
			push(gin.H{"type": "stats_update", "data": h.notificationUseCase.GetStats(userID)})

		case "delete":
			if msg.NotificationID == 0 {
				continue
			}
			if h.notificationUseCase.DeleteNotification(userID, msg.NotificationID) {
				push(gin.H{"type": "notification_deleted", "notification_id": msg.NotificationID})
				push(gin.H{"type": "unread_count_update", "count": h.notificationUseCase.GetUnreadCount(userID, "", nil)})
			}
		}
	}

	close(done)
	h.logger.Info("WebSocket disconnected for user %s", userID)
}
