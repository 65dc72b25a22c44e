package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/shelflife/internal/database"
	"github.com/dukerupert/shelflife/internal/model"
)

type PushStore struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewPushStore(db *sql.DB, dialect database.Dialect) *PushStore {
	return &PushStore{db: db, dialect: dialect}
}

// CreateSubscription registers an endpoint, replacing the keys of an
// endpoint that is already known.
func (s *PushStore) CreateSubscription(ctx context.Context, sub model.PushSubscription) (*model.PushSubscription, error) {
	_, err := s.db.ExecContext(ctx, bind(s.dialect,
		`INSERT INTO push_subscriptions (endpoint, zone, p256dh_key, auth_key, device_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET zone = excluded.zone, p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key, device_name = excluded.device_name`),
		sub.Endpoint, sub.Zone, sub.P256dhKey, sub.AuthKey, sub.DeviceName, formatTime(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	return s.GetByEndpoint(ctx, sub.Endpoint)
}

func (s *PushStore) GetByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	row := s.db.QueryRowContext(ctx, bind(s.dialect,
		`SELECT endpoint, zone, p256dh_key, auth_key, device_name, created_at
		 FROM push_subscriptions WHERE endpoint = ?`), endpoint,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListByZone(ctx context.Context, zone string) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx, bind(s.dialect,
		`SELECT endpoint, zone, p256dh_key, auth_key, device_name, created_at
		 FROM push_subscriptions WHERE zone = ? ORDER BY created_at DESC`), zone,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, bind(s.dialect, `DELETE FROM push_subscriptions WHERE endpoint = ?`), endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

func scanSubscription(row scanner) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	var created string
	if err := row.Scan(&sub.Endpoint, &sub.Zone, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &created); err != nil {
		return nil, err
	}
	sub.CreatedAt = parseTime(created)
	return &sub, nil
}
