package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BotStatus string

const (
	BotStatusRunning BotStatus = "running"
	BotStatusStopped BotStatus = "stopped"
	BotStatusError   BotStatus = "error"
)

type Bot struct {
	ID        string         `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID   string         `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name      string         `gorm:"not null" json:"name"`
	Strategy  string         `gorm:"type:varchar(50)" json:"strategy"`
	Symbol    string         `gorm:"type:varchar(20)" json:"symbol"`
	Status    BotStatus      `gorm:"type:varchar(20);default:'stopped'" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *Bot) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}
