package repo

import (
	"context"

	"doandearn/internal/domain"
)

// EventFilters narrow LatestEvents.
type EventFilters struct {
	Type       string
	EntityKind string
	EntityID   string
	Actor      string
	// Before pages backwards: only events with id < Before.
	Before int64
	Limit  int
}

func (r Repo) scanEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.query(ctx, nil, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.Actor, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEvents returns events newest first.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	var w whereClause
	if f.Type != "" {
		w.add("type=?", f.Type)
	}
	if f.EntityKind != "" {
		w.add("entity_kind=?", f.EntityKind)
	}
	if f.EntityID != "" {
		w.add("entity_id=?", f.EntityID)
	}
	if f.Actor != "" {
		w.add("actor=?", f.Actor)
	}
	if f.Before > 0 {
		w.add("id<?", f.Before)
	}
	return r.scanEvents(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor,payload_json FROM events`+w.String()+` ORDER BY id DESC`+limitOffset(f.Limit, 0), w.args...)
}

// EventsAfter returns up to limit events with id > after, oldest first.
func (r Repo) EventsAfter(ctx context.Context, limit int, after int64) ([]domain.Event, error) {
	return r.scanEvents(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor,payload_json FROM events WHERE id>? ORDER BY id ASC`+limitOffset(limit, 0), after)
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	return r.count(ctx, nil, `SELECT MAX(id) FROM events`)
}
