package alert

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/market-alerts/internal/model"
)

var (
	ErrAlertNotFound = errors.New("alert not found")
)

// Repository provides methods to interact with the search_alerts table.
// Terms and filters are stored as JSON columns, mirroring how alerts are
// created by the web application.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new alert repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// CreateAlert inserts a new alert and returns its ID.
func (r *Repository) CreateAlert(ctx context.Context, a model.Alert) (int64, error) {
	termsJSON, err := json.Marshal(a.Terms)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal terms: %w", err)
	}

	filtersJSON, err := json.Marshal(a.Filters)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal filters: %w", err)
	}

	query := `
		INSERT INTO search_alerts (user_email, name, terms_json, filters_json, source, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id;
    `

	var id int64
	err = r.db.Master.QueryRowContext(ctx, query, a.UserEmail, a.Name, termsJSON, filtersJSON, a.Source).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create alert: %w", err)
	}

	return id, nil
}

// GetActiveAlerts retrieves all active alerts for the scan cycle.
func (r *Repository) GetActiveAlerts(ctx context.Context) ([]model.Alert, error) {
	query := `
		SELECT id, user_email, name, terms_json, filters_json, source, is_active, last_run_ts, created_at
		FROM search_alerts
		WHERE is_active = TRUE;
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}

		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// GetUserAlerts retrieves all alerts, active or not, owned by one user.
func (r *Repository) GetUserAlerts(ctx context.Context, userEmail string) ([]model.Alert, error) {
	query := `
		SELECT id, user_email, name, terms_json, filters_json, source, is_active, last_run_ts, created_at
		FROM search_alerts
		WHERE user_email = $1
		ORDER BY created_at DESC;
    `

	rows, err := r.db.QueryContext(ctx, query, userEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to get user alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}

		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// UpdateLastRun sets the alert's last_run_ts to the given epoch seconds.
// The scan cycle calls this for every processed alert, including failed and
// empty runs, so a failing alert is not retried on every cycle.
func (r *Repository) UpdateLastRun(ctx context.Context, id int64, ts int64) error {
	query := `
		UPDATE search_alerts
		SET last_run_ts = $1
		WHERE id = $2;
    `

	res, err := r.db.ExecContext(ctx, query, ts, id)
	if err != nil {
		return fmt.Errorf("failed to update alert timestamp: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrAlertNotFound
	}

	return nil
}

// Deactivate soft-deletes an alert.
func (r *Repository) Deactivate(ctx context.Context, id int64, userEmail string) error {
	query := `
		UPDATE search_alerts
		SET is_active = FALSE
		WHERE id = $1 AND user_email = $2;
    `

	res, err := r.db.ExecContext(ctx, query, id, userEmail)
	if err != nil {
		return fmt.Errorf("failed to deactivate alert: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrAlertNotFound
	}

	return nil
}

func scanAlert(rows *sql.Rows) (model.Alert, error) {
	var (
		a           model.Alert
		termsJSON   []byte
		filtersJSON []byte
		lastRun     sql.NullInt64
	)

	if err := rows.Scan(&a.ID, &a.UserEmail, &a.Name, &termsJSON, &filtersJSON, &a.Source, &a.IsActive, &lastRun, &a.CreatedAt); err != nil {
		return model.Alert{}, fmt.Errorf("failed to scan alert: %w", err)
	}

	if err := json.Unmarshal(termsJSON, &a.Terms); err != nil {
		return model.Alert{}, fmt.Errorf("failed to unmarshal terms for alert %d: %w", a.ID, err)
	}

	if len(filtersJSON) > 0 {
		if err := json.Unmarshal(filtersJSON, &a.Filters); err != nil {
			return model.Alert{}, fmt.Errorf("failed to unmarshal filters for alert %d: %w", a.ID, err)
		}
	}

	a.LastRunTS = lastRun.Int64

	return a, nil
}
