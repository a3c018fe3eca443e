package persistent

import (
	"coin-pulse/pkg/models"

	"gorm.io/gorm"
)

type NotificationRepository interface {
	GetBotName(botID string) (string, error)
	GetUsername(userID string) (string, error)
	GetActiveUserIDs() ([]string, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) GetBotName(botID string) (string, error) {
	var bot models.Bot
	err := r.db.Where("id = ?", botID).Select("name").First(&bot).Error
	if err != nil {
		return "", err
	}
	return ToBotName(&bot), nil
}

func (r *notificationRepository) GetUsername(userID string) (string, error) {
	var user models.User
	err := r.db.Where("id = ?", userID).Select("username").First(&user).Error
	if err != nil {
		return "", err
	}
	return ToUsername(&user), nil
}

func (r *notificationRepository) GetActiveUserIDs() ([]string, error) {
	var users []models.User
	if err := r.db.Where("is_active = ? AND deleted_at IS NULL", true).Select("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return ToUserIDs(users), nil
}
