package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/train-seat-reservation/internal/engine"
	"github.com/iliyamo/train-seat-reservation/internal/model"
	"github.com/iliyamo/train-seat-reservation/internal/repository"
)

// TrainHandler exposes the train catalog: admin creation plus the
// public availability views.  Creation is guarded by the AdminAPIKey
// middleware, not JWT; availability endpoints are open to guests so
// travellers can browse before registering.
type TrainHandler struct {
	Trains *repository.TrainRepo
	Engine *engine.Engine
}

func NewTrainHandler(trains *repository.TrainRepo, eng *engine.Engine) *TrainHandler {
	if trains == nil || eng == nil {
		panic("nil dependency passed to NewTrainHandler")
	}
	return &TrainHandler{Trains: trains, Engine: eng}
}

type createTrainReq struct {
	TrainNumber string `json:"train_number"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	TotalSeats  uint32 `json:"total_seats"`
}

type trainResp struct {
	ID          uint64 `json:"id"`
	TrainNumber string `json:"train_number"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	TotalSeats  uint32 `json:"total_seats"`
}

// Create handles POST /v1/trains.  Requires the admin API key.
func (h *TrainHandler) Create(c echo.Context) error {
	var req createTrainReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.TrainNumber == "" || req.Source == "" || req.Destination == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "train_number/source/destination required"})
	}
	if req.TotalSeats == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_seats must be positive"})
	}
	t := &model.Train{
		TrainNumber: req.TrainNumber,
		Source:      req.Source,
		Destination: req.Destination,
		TotalSeats:  req.TotalSeats,
	}
	if err := h.Trains.Create(c.Request().Context(), t); err != nil {
		if errors.Is(err, repository.ErrTrainExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "train number already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create train failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"train": trainResp{
		ID: t.ID, TrainNumber: t.TrainNumber, Source: t.Source, Destination: t.Destination, TotalSeats: t.TotalSeats,
	}})
}

type routeQueryReq struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Date        string `json:"date"` // travel date "2006-01-02"; defaults to today
}

// Availability handles POST /v1/availability.  It lists trains on a
// route with free seat counts for a travel date.
func (h *TrainHandler) Availability(c echo.Context) error {
	var req routeQueryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Source == "" || req.Destination == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "source/destination required"})
	}
	if req.Date == "" {
		req.Date = time.Now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}
	items, err := h.Trains.SearchByRoute(c.Request().Context(), req.Source, req.Destination, req.Date)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"trains": items})
}

// Seats handles GET /v1/trains/:id/seats?date=YYYY-MM-DD.  It returns
// the free seat numbers for one train and travel date straight from
// the seat ledger.
func (h *TrainHandler) Seats(c echo.Context) error {
	trainID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || trainID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid train id"})
	}
	date := c.QueryParam("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	free, err := h.Engine.Availability(c.Request().Context(), trainID, date)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTrainNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "train not found"})
		case errors.Is(err, repository.ErrInvalidDate):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "availability failed"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"train_id":   trainID,
		"date":       date,
		"free_seats": free,
	})
}
