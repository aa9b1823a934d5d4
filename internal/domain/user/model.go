package user

import (
	"fmt"
	"strings"
)

// User is a Telegram-derived identity. At most one player can be linked.
type User struct {
	TelegramID int64  `json:"telegramId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName,omitempty"`
	Username   string `json:"username,omitempty"`
	PhotoURL   string `json:"photoUrl,omitempty"`
	PlayerID   int64  `json:"playerId,omitempty"`
}

func (u User) Validate() error {
	if u.TelegramID <= 0 {
		return fmt.Errorf("telegram id is required")
	}
	if strings.TrimSpace(u.FirstName) == "" {
		return fmt.Errorf("first name is required")
	}
	return nil
}

// DisplayName prefers the Telegram username and falls back to the full name.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return fmt.Sprintf("tg_%d", u.TelegramID)
	}
	return name
}
