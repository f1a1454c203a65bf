package apperrors

import "errors"

var (
	ErrEventNotFound            = errors.New("event not found")
	ErrTicketKindNotFound       = errors.New("ticket kind not found")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrExceedsMaxPerUser        = errors.New("exceeds max per user")
	ErrInvalidInput             = errors.New("invalid input")
	ErrInternalServerError      = errors.New("internal server error")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrReservationExists        = errors.New("reservation already exists")
	ErrInvalidReservationStatus = errors.New("invalid reservation status")

	// 開賣狀態機相關
	ErrSalesStartMissing = errors.New("sales start time is not configured")
	ErrSalesNotOpen      = errors.New("sales are not open yet")
	ErrNotInQueue        = errors.New("not in queue")
	ErrNotAdmitted       = errors.New("not admitted yet")
	ErrNoPurchaseWindow  = errors.New("no active purchase window")
	ErrWindowExpired     = errors.New("purchase window expired")
	ErrInvalidTransition = errors.New("invalid state transition")
)
