package persistent

import (
	"coin-pulse/pkg/models"
)

func ToBotName(m *models.Bot) string {
	if m == nil {
		return ""
	}
	return m.Name
}

func ToUsername(m *models.User) string {
	if m == nil {
		return ""
	}
	return m.Username
}

func ToUserIDs(users []models.User) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}
