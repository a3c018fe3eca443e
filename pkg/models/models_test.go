package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_BeforeCreate(t *testing.T) {
	user := &User{
		Email:    "test@example.com",
		Username: "testuser",
		Password: "password",
		Role:     RoleTrader,
		IsActive: true,
	}

	// BeforeCreate should set ID if empty
	err := user.BeforeCreate(nil)
	assert.NoError(t, err)
	assert.NotEmpty(t, user.ID)
}

func TestUser_BeforeCreate_WithID(t *testing.T) {
	existingID := "existing-id-123"
	user := &User{
		ID:       existingID,
		Email:    "test@example.com",
		Username: "testuser",
		Password: "password",
	}

	err := user.BeforeCreate(nil)
	assert.NoError(t, err)
	// ID should remain unchanged if already set
	assert.Equal(t, existingID, user.ID)
}

func TestBot_BeforeCreate(t *testing.T) {
	bot := &Bot{
		OwnerID:  "owner-123",
		Name:     "BTC Scalper",
		Strategy: "scalping",
		Symbol:   "BTCUSDT",
		Status:   BotStatusStopped,
	}

	err := bot.BeforeCreate(nil)
	assert.NoError(t, err)
	assert.NotEmpty(t, bot.ID)
}

func TestBot_BeforeCreate_WithID(t *testing.T) {
	existingID := "existing-bot-id"
	bot := &Bot{
		ID:      existingID,
		OwnerID: "owner-123",
		Name:    "ETH Grid",
	}

	err := bot.BeforeCreate(nil)
	assert.NoError(t, err)
	assert.Equal(t, existingID, bot.ID)
}
