package seen

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/dbpg"
)

func setupMockDB(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}

	wrappedDB := &dbpg.DB{Master: db}
	repo := NewRepository(wrappedDB)

	return repo, mock
}

const insertQuery = `
		INSERT INTO alert_seen (user_email, alert_id, source, item_id, first_seen, last_sent)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_email, alert_id, source, item_id) DO NOTHING;
    `

func TestMarkSeen_NewItem(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(insertQuery)).
		WithArgs("user@example.com", int64(7), "ebay", "item-1", int64(1700000000)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	recorded, err := repo.MarkSeen(context.Background(), "user@example.com", 7, "ebay", "item-1", 1700000000)
	assert.NoError(t, err)
	assert.True(t, recorded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSeen_AlreadySeen(t *testing.T) {
	repo, mock := setupMockDB(t)

	// Conflict on the composite key: zero rows affected, not an error.
	mock.ExpectExec(regexp.QuoteMeta(insertQuery)).
		WithArgs("user@example.com", int64(7), "ebay", "item-1", int64(1700000060)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	recorded, err := repo.MarkSeen(context.Background(), "user@example.com", 7, "ebay", "item-1", 1700000060)
	assert.NoError(t, err)
	assert.False(t, recorded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasSeen(t *testing.T) {
	repo, mock := setupMockDB(t)

	query := regexp.QuoteMeta(`
		SELECT EXISTS (
		    SELECT 1 FROM alert_seen
		    WHERE user_email = $1 AND alert_id = $2 AND source = $3 AND item_id = $4
		);
    `)

	mock.ExpectQuery(query).
		WithArgs("user@example.com", int64(7), "kleinanzeigen", "item-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	seen, err := repo.HasSeen(context.Background(), "user@example.com", 7, "kleinanzeigen", "item-2")
	assert.NoError(t, err)
	assert.True(t, seen)

	mock.ExpectQuery(query).
		WithArgs("user@example.com", int64(7), "kleinanzeigen", "item-3").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	seen, err = repo.HasSeen(context.Background(), "user@example.com", 7, "kleinanzeigen", "item-3")
	assert.NoError(t, err)
	assert.False(t, seen)

	assert.NoError(t, mock.ExpectationsWereMet())
}
