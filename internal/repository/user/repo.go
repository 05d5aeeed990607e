package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/market-alerts/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

// Repository reads the user fields the notification core needs: the email
// address and telegram link state.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new user repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// GetByEmail retrieves a user by email address.
func (r *Repository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	query := `
		SELECT id, email, telegram_chat_id, telegram_enabled, telegram_verified, is_active, created_at
		FROM users
		WHERE email = $1;
    `

	return r.getOne(ctx, query, email)
}

// GetByID retrieves a user by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (model.User, error) {
	query := `
		SELECT id, email, telegram_chat_id, telegram_enabled, telegram_verified, is_active, created_at
		FROM users
		WHERE id = $1;
    `

	return r.getOne(ctx, query, id)
}

func (r *Repository) getOne(ctx context.Context, query string, arg interface{}) (model.User, error) {
	var (
		u      model.User
		chatID sql.NullString
	)

	err := r.db.Master.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &chatID, &u.TelegramEnabled, &u.TelegramVerified, &u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}

		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	u.TelegramChatID = chatID.String

	return u, nil
}
