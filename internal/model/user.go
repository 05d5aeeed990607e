package model

import "time"

// User is the owner of alerts and watched items. Only the fields the
// notification core needs are carried here; auth and subscription data live
// with the web application.
type User struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	TelegramChatID   string    `json:"telegram_chat_id,omitempty"`
	TelegramEnabled  bool      `json:"telegram_enabled"`
	TelegramVerified bool      `json:"telegram_verified"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

// TelegramReady reports whether the user can receive telegram messages:
// a chat id is linked, verified, and the user has not switched telegram off.
func (u User) TelegramReady() bool {
	return u.TelegramChatID != "" && u.TelegramEnabled && u.TelegramVerified
}
