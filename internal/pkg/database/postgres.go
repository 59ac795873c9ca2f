package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

type Database struct {
	conn *pgx.Conn
}

func NewDatabase(conn *pgx.Conn) *Database {
	return &Database{
		conn: conn,
	}
}

func (db *Database) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close(context.Background())
}

type State struct {
	Id         int64     `json:"id"`
	TimeStamp  time.Time `json:"timestamp"`
	EntityKey  string    `json:"entity_key"`
	Platform   string    `json:"platform"`
	DeviceName string    `json:"device_name"`
	State      string    `json:"state"`
	Attributes []byte    `json:"attributes"`
}

type States []State

// GetLatestStates returns the most recent row per entity.
func (db *Database) GetLatestStates(ctx context.Context) (States, error) {
	const query = `
	SELECT DISTINCT ON (entity_key) id, time_stamp, entity_key, platform, device_name, state, attributes
	FROM states
	ORDER BY entity_key, time_stamp DESC;
	`

	rows, err := db.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states States
	for rows.Next() {
		var s State
		if err := rows.Scan(&s.Id, &s.TimeStamp, &s.EntityKey, &s.Platform, &s.DeviceName, &s.State, &s.Attributes); err != nil {
			return nil, err
		}
		states = append(states, s)
	}

	if err := rows.Err(); err != nil {
		if err == pgx.ErrNoRows {
			return states, nil
		}
		return nil, err
	}

	return states, nil
}
