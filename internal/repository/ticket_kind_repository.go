package repository

import (
	"context"
	"errors"
	"fmt"

	"go-gin-waiting-room/internal/model"
	apperrors "go-gin-waiting-room/pkg/app_errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TicketKindRepository interface {
	Create(ctx context.Context, kind *model.TicketKind) (*model.TicketKind, error)
	FindByID(ctx context.Context, id int) (*model.TicketKind, error)
	FindByEventAndName(ctx context.Context, eventID int, name string) (*model.TicketKind, error)
	ListByEvent(ctx context.Context, eventID int) ([]*model.TicketKind, error)
}

type TicketKindRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewTicketKindRepository(pool *pgxpool.Pool) TicketKindRepository {
	return &TicketKindRepositoryImpl{
		pool: pool,
	}
}

const ticketKindColumns = `id, event_id, name, price, total_stock, max_per_user, created_at, updated_at`

func scanTicketKind(row pgx.Row) (*model.TicketKind, error) {
	var kind model.TicketKind
	err := row.Scan(
		&kind.ID,
		&kind.EventID,
		&kind.Name,
		&kind.Price,
		&kind.TotalStock,
		&kind.MaxPerUser,
		&kind.CreatedAt,
		&kind.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketKindNotFound
		}
		return nil, err
	}
	return &kind, nil
}

func (r *TicketKindRepositoryImpl) Create(ctx context.Context, kind *model.TicketKind) (*model.TicketKind, error) {
	query := `
		INSERT INTO ticket_kinds (event_id, name, price, total_stock, max_per_user)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + ticketKindColumns

	created, err := scanTicketKind(r.pool.QueryRow(ctx, query,
		kind.EventID, kind.Name, kind.Price, kind.TotalStock, kind.MaxPerUser,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket kind: %w", err)
	}
	return created, nil
}

func (r *TicketKindRepositoryImpl) FindByID(ctx context.Context, id int) (*model.TicketKind, error) {
	query := `SELECT ` + ticketKindColumns + ` FROM ticket_kinds WHERE id = $1`
	return scanTicketKind(r.pool.QueryRow(ctx, query, id))
}

func (r *TicketKindRepositoryImpl) FindByEventAndName(ctx context.Context, eventID int, name string) (*model.TicketKind, error) {
	query := `SELECT ` + ticketKindColumns + ` FROM ticket_kinds WHERE event_id = $1 AND name = $2`
	return scanTicketKind(r.pool.QueryRow(ctx, query, eventID, name))
}

func (r *TicketKindRepositoryImpl) ListByEvent(ctx context.Context, eventID int) ([]*model.TicketKind, error) {
	query := `SELECT ` + ticketKindColumns + ` FROM ticket_kinds WHERE event_id = $1 ORDER BY price ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	kinds := make([]*model.TicketKind, 0)
	for rows.Next() {
		kind, err := scanTicketKind(rows)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return kinds, nil
}
