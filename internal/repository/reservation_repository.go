package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-gin-waiting-room/internal/model"
	apperrors "go-gin-waiting-room/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationRepository interface {
	// Create 冪等寫入；reservation_id 已存在時回傳既有資料與 false
	Create(ctx context.Context, reservation *model.Reservation) (*model.Reservation, bool, error)
	FindByReservationID(ctx context.Context, reservationID uuid.UUID) (*model.Reservation, error)
	FindLatestByEventAndUser(ctx context.Context, eventID int, userID string) (*model.Reservation, error)
	TransitionStatus(ctx context.Context, reservationID uuid.UUID, from, to model.ReservationStatus) (*model.Reservation, error)
}

type ReservationRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) ReservationRepository {
	return &ReservationRepositoryImpl{
		pool: pool,
	}
}

const reservationSelect = `
	SELECT r.id, r.reservation_id, r.event_id, e.event_id, r.user_id, r.ticket_kind_id,
	       r.quantity, r.total_price, r.status, r.reserved_at, r.expires_at,
	       r.created_at, r.updated_at
	FROM reservations r
	JOIN events e ON e.id = r.event_id
`

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(
		&res.ID,
		&res.ReservationID,
		&res.EventID,
		&res.EventUUID,
		&res.UserID,
		&res.TicketKindID,
		&res.Quantity,
		&res.TotalPrice,
		&res.Status,
		&res.ReservedAt,
		&res.ExpiresAt,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (r *ReservationRepositoryImpl) Create(ctx context.Context, reservation *model.Reservation) (*model.Reservation, bool, error) {
	query := `
		INSERT INTO reservations (
			reservation_id, event_id, user_id, ticket_kind_id, quantity,
			total_price, status, reserved_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		reservation.ReservationID, reservation.EventID, reservation.UserID,
		reservation.TicketKindID, reservation.Quantity, reservation.TotalPrice,
		reservation.Status, reservation.ReservedAt.UTC(), reservation.ExpiresAt.UTC(),
	).Scan(&reservation.ID, &reservation.CreatedAt, &reservation.UpdatedAt)
	if err == nil {
		return reservation, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create reservation: %w", err)
	}

	// 衝突：重送的同一筆，或使用者已有另一筆進行中的預約
	existing, err := r.FindByReservationID(ctx, reservation.ReservationID)
	if err == nil {
		return existing, false, nil
	}
	if errors.Is(err, apperrors.ErrReservationNotFound) {
		return nil, false, apperrors.ErrReservationExists
	}
	return nil, false, err
}

func (r *ReservationRepositoryImpl) FindByReservationID(ctx context.Context, reservationID uuid.UUID) (*model.Reservation, error) {
	return scanReservation(r.pool.QueryRow(ctx, reservationSelect+` WHERE r.reservation_id = $1`, reservationID))
}

func (r *ReservationRepositoryImpl) FindLatestByEventAndUser(ctx context.Context, eventID int, userID string) (*model.Reservation, error) {
	query := reservationSelect + `
		WHERE r.event_id = $1 AND r.user_id = $2
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT 1
	`
	return scanReservation(r.pool.QueryRow(ctx, query, eventID, userID))
}

// TransitionStatus 以目前狀態為條件更新，避免付款與過期同時發生時互相覆蓋
func (r *ReservationRepositoryImpl) TransitionStatus(
	ctx context.Context,
	reservationID uuid.UUID,
	from, to model.ReservationStatus,
) (*model.Reservation, error) {
	if !from.CanTransitionTo(to) {
		return nil, apperrors.ErrInvalidReservationStatus
	}

	query := `
		UPDATE reservations
		SET status = $1, updated_at = $2
		WHERE reservation_id = $3 AND status = $4
	`
	result, err := r.pool.Exec(ctx, query, to, time.Now().UTC(), reservationID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation status: %w", err)
	}

	current, err := r.FindByReservationID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected() == 0 {
		return current, apperrors.ErrInvalidReservationStatus
	}
	return current, nil
}
