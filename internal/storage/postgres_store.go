package storage

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/trip-share/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveTrip(t *models.Trip) error {
	_, err := p.db.Exec(`INSERT INTO trips(id, passcode, recipient, passenger_url, track_url, status, created_at, updated_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.Passcode, t.Recipient, t.PassengerURL, t.TrackURL, t.Status, t.CreatedAt, t.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateTrip(t *models.Trip) error {
	_, err := p.db.Exec(`UPDATE trips SET status=$1, updated_at=$2 WHERE id=$3`, t.Status, time.Now(), t.ID)
	return err
}
