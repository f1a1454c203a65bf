package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-gin-waiting-room/internal/model"
	apperrors "go-gin-waiting-room/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
	List(ctx context.Context) ([]*model.Event, error)
	FindByID(ctx context.Context, id int) (*model.Event, error)
	FindByEventID(ctx context.Context, eventID uuid.UUID) (*model.Event, error)
	FindBySlug(ctx context.Context, slug string) (*model.Event, error)
	Update(ctx context.Context, id int, params model.UpdateEventParams) (*model.Event, error)
}

type EventRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &EventRepositoryImpl{
		pool: pool,
	}
}

const eventColumns = `id, event_id, slug, name, description, sales_start_at, waiting_room_opens_at, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var event model.Event
	err := row.Scan(
		&event.ID,
		&event.EventID,
		&event.Slug,
		&event.Name,
		&event.Description,
		&event.SalesStartAt,
		&event.WaitingRoomOpensAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *EventRepositoryImpl) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	query := `
		INSERT INTO events (event_id, slug, name, description, sales_start_at, waiting_room_opens_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + eventColumns

	created, err := scanEvent(r.pool.QueryRow(ctx, query,
		event.EventID, event.Slug, event.Name, event.Description,
		event.SalesStartAt, event.WaitingRoomOpensAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return created, nil
}

func (r *EventRepositoryImpl) List(ctx context.Context) ([]*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY sales_start_at ASC NULLS LAST, created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*model.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *EventRepositoryImpl) FindByID(ctx context.Context, id int) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(r.pool.QueryRow(ctx, query, id))
}

func (r *EventRepositoryImpl) FindByEventID(ctx context.Context, eventID uuid.UUID) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE event_id = $1`
	return scanEvent(r.pool.QueryRow(ctx, query, eventID))
}

func (r *EventRepositoryImpl) FindBySlug(ctx context.Context, slug string) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE slug = $1`
	return scanEvent(r.pool.QueryRow(ctx, query, slug))
}

func (r *EventRepositoryImpl) Update(ctx context.Context, id int, params model.UpdateEventParams) (*model.Event, error) {
	sets := []string{}
	args := []any{}
	argPos := 1

	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.Name != nil {
		add("name", *params.Name)
	}
	if params.Description != nil {
		add("description", *params.Description)
	}
	if params.SalesStartAt != nil {
		add("sales_start_at", params.SalesStartAt.UTC())
	}
	if params.WaitingRoomOpensAt != nil {
		add("waiting_room_opens_at", params.WaitingRoomOpensAt.UTC())
	}

	if len(sets) == 0 {
		return nil, apperrors.ErrInvalidInput
	}

	add("updated_at", time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE events
		SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(sets, ", "), argPos, eventColumns)

	return scanEvent(r.pool.QueryRow(ctx, query, args...))
}
