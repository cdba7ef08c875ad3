package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/train-seat-reservation/internal/engine"
	"github.com/iliyamo/train-seat-reservation/internal/queue"
	"github.com/iliyamo/train-seat-reservation/internal/repository"
	queue_publisher "github.com/iliyamo/train-seat-reservation/internal/service"
)

// BookingHandler drives the reservation engine from HTTP.  All
// methods assume JWT authentication has already run; they read the
// requester from the context and delegate the decisions to the
// engine, keeping the HTTP layer a thin translation of error kinds
// to status codes.
type BookingHandler struct {
	Engine      *engine.Engine
	Bookings    *repository.BookingRepo
	Trains      *repository.TrainRepo
	BookTimeout time.Duration
}

func NewBookingHandler(eng *engine.Engine, bookings *repository.BookingRepo, trains *repository.TrainRepo, bookTimeout time.Duration) *BookingHandler {
	if eng == nil || bookings == nil || trains == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	if bookTimeout <= 0 {
		bookTimeout = 5 * time.Second
	}
	return &BookingHandler{Engine: eng, Bookings: bookings, Trains: trains, BookTimeout: bookTimeout}
}

type bookReq struct {
	TrainID uint64 `json:"train_id"`
	Date    string `json:"date"`            // travel date "2006-01-02"
	Seat    uint32 `json:"seat"`            // omit or 0 for auto-assignment
	Any     bool   `json:"any,omitempty"`   // explicit "any seat" flag; same as seat 0
}

type bookingResp struct {
	ID          uint64 `json:"id"`
	UserID      uint64 `json:"user_id"`
	TrainID     uint64 `json:"train_id"`
	SeatNumber  uint32 `json:"seat_number"`
	BookingDate string `json:"booking_date"`
	Status      string `json:"status"`
}

// Create handles POST /v1/bookings.  The optional Idempotency-Key
// header makes retried requests return the original booking instead
// of claiming a second seat.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.TrainID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "train_id required"})
	}
	if req.Date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date required"})
	}
	seat := req.Seat
	if req.Any {
		seat = 0
	}

	// The whole book call runs under one deadline; the engine
	// guarantees no partial state survives a timeout.
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.BookTimeout)
	defer cancel()

	booking, err := h.Engine.Book(ctx, engine.BookRequest{
		UserID:           userID,
		TrainID:          req.TrainID,
		Date:             req.Date,
		Seat:             seat,
		IdempotencyToken: c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return bookingError(c, err)
	}

	h.publish(booking.ID, userID, booking.TrainID, booking.SeatNumber, booking.BookingDate, queue.EventBookingCreated)

	return c.JSON(http.StatusCreated, echo.Map{"booking": bookingResp{
		ID:          booking.ID,
		UserID:      booking.UserID,
		TrainID:     booking.TrainID,
		SeatNumber:  booking.SeatNumber,
		BookingDate: booking.BookingDate,
		Status:      booking.Status,
	}})
}

// Cancel handles DELETE /v1/bookings/:id.  Owner or admin only; the
// engine enforces the rule.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.BookTimeout)
	defer cancel()

	// Load the booking before cancelling so the published event can
	// carry the seat that was freed.
	booking, findErr := h.Bookings.FindByID(ctx, bookingID)

	if err := h.Engine.Cancel(ctx, bookingID, userID); err != nil {
		return bookingError(c, err)
	}

	if findErr == nil {
		h.publish(booking.ID, booking.UserID, booking.TrainID, booking.SeatNumber, booking.BookingDate, queue.EventBookingCancelled)
	}
	return c.NoContent(http.StatusNoContent)
}

// Get handles GET /v1/bookings/:id.  Owners see their own bookings;
// admins see any.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	detail, err := h.Bookings.GetDetail(c.Request().Context(), bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch booking"})
	}
	if detail.UserID != userID && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": detail})
}

// ListMine handles GET /v1/my-bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// publish emits a booking event off the request path.  The booking
// itself is already durable, so the goroutine runs under its own
// short deadline and failures are logged and dropped; a hung broker
// can never stall a booking response.
func (h *BookingHandler) publish(bookingID, userID, trainID uint64, seat uint32, date, eventType string) {
	occurred := time.Now().UTC().Format(time.RFC3339)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		trainNumber := ""
		if t, err := h.Trains.GetByID(ctx, trainID); err == nil {
			trainNumber = t.TrainNumber
		}
		ev := queue.BookingEvent{
			Type:        eventType,
			BookingID:   bookingID,
			UserID:      userID,
			TrainID:     trainID,
			TrainNumber: trainNumber,
			SeatNumber:  seat,
			BookingDate: date,
			OccurredAt:  occurred,
		}
		if err := queue_publisher.PublishBookingEvent(ctx, ev); err != nil {
			log.Printf("booking event publish failed: %v", err)
		}
	}()
}

// bookingError translates engine/repository error kinds into HTTP
// responses.  Every taxonomy kind maps to exactly one status code so
// clients can branch on it.
func bookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrTrainNotFound),
		errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrInvalidDate),
		errors.Is(err, repository.ErrOutOfRange):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrSeatTaken),
		errors.Is(err, repository.ErrTrainFull),
		errors.Is(err, repository.ErrConstraintViolation):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrTimeout):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "booking timed out"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
