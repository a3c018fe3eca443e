package main

import (
	"fmt"
	"log"

	"coin-pulse/pkg/config"
	"coin-pulse/pkg/database"
	"coin-pulse/pkg/models"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	users := []struct {
		email    string
		username string
		password string
		role     models.UserRole
	}{
		{"admin@coinpulse.dev", "admin", "admin123", models.RoleAdmin},
		{"alice@coinpulse.dev", "alice", "trader123", models.RoleTrader},
		{"bob@coinpulse.dev", "bob", "trader123", models.RoleTrader},
	}

	for _, u := range users {
		var existing models.User
		if err := db.Where("email = ?", u.email).First(&existing).Error; err == nil {
			fmt.Printf("User %s already exists, skipping\n", u.username)
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash password for %s: %v", u.username, err)
		}

		user := models.User{
			Email:    u.email,
			Username: u.username,
			Password: string(hash),
			Role:     u.role,
			IsActive: true,
		}
		if err := db.Create(&user).Error; err != nil {
			log.Fatalf("Failed to create user %s: %v", u.username, err)
		}
		fmt.Printf("Created user %s (%s)\n", u.username, user.ID)

		if u.role != models.RoleTrader {
			continue
		}

		bot := models.Bot{
			OwnerID:  user.ID,
			Name:     fmt.Sprintf("%s-grid-bot", u.username),
			Strategy: "grid",
			Symbol:   "BTCUSDT",
			Status:   models.BotStatusStopped,
		}
		if err := db.Create(&bot).Error; err != nil {
			log.Fatalf("Failed to create bot for %s: %v", u.username, err)
		}
		fmt.Printf("Created bot %s (%s)\n", bot.Name, bot.ID)
	}

	fmt.Println("Seeding completed")
}
