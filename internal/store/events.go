package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"pagecraft/internal/ids"
	"pagecraft/internal/model"
)

// AppendEvent records one mutation in the event log.
func (s Store) AppendEvent(ctx context.Context, typ, entityID string, payload any) (model.Event, error) {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return model.Event{}, errEventContract("missing type")
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return model.Event{}, err
	}

	db, err := s.openSQLite(ctx)
	if err != nil {
		return model.Event{}, err
	}
	defer db.Close()

	ev := model.Event{
		ID:       ids.New(ids.PrefixEvent),
		TS:       time.Now().UTC(),
		Type:     typ,
		EntityID: strings.TrimSpace(entityID),
		Payload:  payload,
	}
	var seq int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM events`).Scan(&seq); err != nil {
		return model.Event{}, err
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO events(event_id, type, entity_id, payload_json, issued_at_unixms, seq) VALUES(?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Type, ev.EntityID, string(pb), ev.TS.UnixMilli(), seq); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// ReadEvents returns events oldest first. limit == 0 means all; a positive limit keeps
// the most recent ones.
func (s Store) ReadEvents(ctx context.Context, limit int) ([]model.Event, error) {
	q := `SELECT event_id, issued_at_unixms, type, entity_id, payload_json FROM (
		SELECT * FROM events ORDER BY seq DESC LIMIT ?
	) ORDER BY seq ASC`
	return s.queryEvents(ctx, q, limitArg(limit))
}

// ReadEventsForEntity returns the events of one entity, oldest first.
func (s Store) ReadEventsForEntity(ctx context.Context, entityID string, limit int) ([]model.Event, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return []model.Event{}, nil
	}
	q := `SELECT event_id, issued_at_unixms, type, entity_id, payload_json FROM (
		SELECT * FROM events WHERE entity_id = ? ORDER BY seq DESC LIMIT ?
	) ORDER BY seq ASC`
	return s.queryEvents(ctx, q, entityID, limitArg(limit))
}

// limitArg maps "no limit" to SQLite's -1.
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func (s Store) queryEvents(ctx context.Context, q string, args ...any) ([]model.Event, error) {
	if !s.Exists() {
		return []model.Event{}, nil
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var rows *sql.Rows
	rows, err = db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var id, typ, entityID, payloadJSON string
		var tsMs int64
		if err := rows.Scan(&id, &tsMs, &typ, &entityID, &payloadJSON); err != nil {
			return nil, err
		}
		var payload any
		_ = json.Unmarshal([]byte(payloadJSON), &payload)
		out = append(out, model.Event{
			ID:       id,
			TS:       time.UnixMilli(tsMs).UTC(),
			Type:     typ,
			EntityID: entityID,
			Payload:  payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type eventContractError string

func (e eventContractError) Error() string { return "event contract: " + string(e) }

func errEventContract(msg string) error { return eventContractError(msg) }
