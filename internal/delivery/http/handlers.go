package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/rockwerks/weather-forecast-app/internal/domain"
	"github.com/rockwerks/weather-forecast-app/internal/lookup"
	"github.com/rockwerks/weather-forecast-app/internal/service"
	"github.com/rockwerks/weather-forecast-app/pkg/utils"
)

const (
	serviceName    = "weather-forecast-app"
	serviceVersion = "1.0.0"

	defaultLookupLimit = 20
	maxLookupLimit     = 100

	defaultKeepAlive = 15 * time.Second
)

// Handler contains all HTTP handlers
type Handler struct {
	lookupSvc *service.LookupService
	logger    *slog.Logger
	keepAlive time.Duration
	baseCtx   context.Context
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithLogger sets the handler logger
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// WithKeepAlive sets the interval of SSE keep-alive comments
func WithKeepAlive(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.keepAlive = d
		}
	}
}

// WithBaseContext ends open event streams once ctx is done
func WithBaseContext(ctx context.Context) HandlerOption {
	return func(h *Handler) { h.baseCtx = ctx }
}

// NewHandler creates a new handler
func NewHandler(lookupSvc *service.LookupService, opts ...HandlerOption) *Handler {
	h := &Handler{
		lookupSvc: lookupSvc,
		logger:    slog.Default(),
		keepAlive: defaultKeepAlive,
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SnapshotView is a snapshot as rendered to clients. Hint is set only
// while the error banner is shown.
type SnapshotView struct {
	domain.Snapshot
	Hint string `json:"hint,omitempty"`
}

func newSnapshotView(snap domain.Snapshot) SnapshotView {
	v := SnapshotView{Snapshot: snap}
	if snap.State == domain.Failed {
		v.Hint = domain.ErrorHint
	}
	return v
}

// ReportView is the one-shot lookup payload
type ReportView struct {
	Report domain.WeatherReport `json:"report"`
	Card   domain.Card          `json:"card"`
}

type createSessionRequest struct {
	Units string `json:"units"`
}

type queryRequest struct {
	Text string `json:"text"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type unitsRequest struct {
	Units string `json:"units"`
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	database := "healthy"
	if err := h.lookupSvc.Health(c.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		database = "unhealthy"
	}

	return c.JSON(fiber.Map{
		"status":   "ok",
		"service":  serviceName,
		"version":  serviceVersion,
		"database": database,
		"sessions": h.lookupSvc.SessionCount(),
	})
}

// GetWeather performs a one-shot lookup outside any session
func (h *Handler) GetWeather(c *fiber.Ctx) error {
	unit, err := h.parseUnits(c.Query("units"))
	if err != nil {
		return err
	}

	// the city outlives the request in the audit record
	report, err := h.lookupSvc.Lookup(c.Context(), strings.Clone(c.Query("q")), unit)
	if err != nil {
		return weatherError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    ReportView{Report: report, Card: report.Card(unit)},
	})
}

// CreateSession starts a new lookup session
func (h *Handler) CreateSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	var units *domain.UnitSystem
	if req.Units != "" {
		u, err := h.parseUnits(req.Units)
		if err != nil {
			return err
		}
		units = &u
	}

	id, snap := h.lookupSvc.CreateSession(units)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":       id,
			"snapshot": newSnapshotView(snap),
		},
	})
}

// GetSession returns the current snapshot of a session
func (h *Handler) GetSession(c *fiber.Ctx) error {
	l, err := h.session(c)
	if err != nil {
		return err
	}
	return h.snapshotResponse(c, l, nil)
}

// SetQuery replaces the search text
func (h *Handler) SetQuery(c *fiber.Ctx) error {
	l, err := h.session(c)
	if err != nil {
		return err
	}

	var req queryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	l.OnInputChange(req.Text)
	return h.snapshotResponse(c, l, nil)
}

// PressKey forwards a key press; only the confirm key has an effect
func (h *Handler) PressKey(c *fiber.Ctx) error {
	l, err := h.session(c)
	if err != nil {
		return err
	}

	var req keyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	started := l.OnConfirmKey(req.Key)
	return h.snapshotResponse(c, l, &started)
}

// Search submits the current query
func (h *Handler) Search(c *fiber.Ctx) error {
	l, err := h.session(c)
	if err != nil {
		return err
	}

	started := l.OnSearchSubmit()
	return h.snapshotResponse(c, l, &started)
}

// Clear resets the session query and results
func (h *Handler) Clear(c *fiber.Ctx) error {
	l, err := h.session(c)
	if err != nil {
		return err
	}

	l.OnClear()
	return h.snapshotResponse(c, l, nil)
}

// SetUnits switches the unit system, refetching a shown report
func (h *Handler) SetUnits(c *fiber.Ctx) error {
	l, err := h.session(c)
	if err != nil {
		return err
	}

	var req unitsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	unit, err := h.parseUnits(req.Units)
	if err != nil {
		return err
	}

	started := l.OnUnitChange(unit)
	return h.snapshotResponse(c, l, &started)
}

// DeleteSession closes a session and cancels its pending fetch
func (h *Handler) DeleteSession(c *fiber.Ctx) error {
	if err := h.lookupSvc.CloseSession(c.Params("id")); err != nil {
		return sessionError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// StreamSession sends a snapshot event after every state change until the
// session is closed, the client goes away or the server shuts down.
func (h *Handler) StreamSession(c *fiber.Ctx) error {
	l, err := h.session(c)
	if err != nil {
		return err
	}

	// subscribe before returning so the current snapshot is always sent
	updates, unsubscribe := l.Subscribe()
	keepAlive := h.keepAlive
	done := h.baseCtx.Done()
	logger := h.logger.With("session", strings.Clone(c.Params("id")))

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case snap, ok := <-updates:
				if !ok {
					return
				}
				data, err := json.Marshal(newSnapshotView(snap))
				if err != nil {
					logger.Error("failed to encode snapshot", "error", err)
					return
				}
				fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
			case <-ticker.C:
				fmt.Fprint(w, ": keep-alive\n\n")
			}
			if err := w.Flush(); err != nil {
				logger.Debug("event stream closed by client", "error", err)
				return
			}
		}
	}))

	return nil
}

// GetRecentLookups returns the newest audit records
func (h *Handler) GetRecentLookups(c *fiber.Ctx) error {
	limit := utils.Clamp(c.QueryInt("limit", defaultLookupLimit), 1, maxLookupLimit)

	data, err := h.lookupSvc.RecentLookups(c.Context(), limit)
	if err != nil {
		h.logger.Error("failed to fetch lookups", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch lookup history")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"count":   len(data),
	})
}

func (h *Handler) session(c *fiber.Ctx) (*lookup.Lookup, error) {
	l, err := h.lookupSvc.Session(c.Params("id"))
	if err != nil {
		return nil, sessionError(err)
	}
	return l, nil
}

func (h *Handler) snapshotResponse(c *fiber.Ctx, l *lookup.Lookup, started *bool) error {
	resp := fiber.Map{
		"success": true,
		"data":    newSnapshotView(l.Snapshot()),
	}
	if started != nil {
		resp["started"] = *started
	}
	return c.JSON(resp)
}

func (h *Handler) parseUnits(s string) (domain.UnitSystem, error) {
	if strings.TrimSpace(s) == "" {
		return h.lookupSvc.DefaultUnit(), nil
	}
	u, err := domain.ParseUnitSystem(s)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return u, nil
}

func sessionError(err error) error {
	if errors.Is(err, service.ErrSessionNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Session not found")
	}
	return err
}

// weatherError maps lookup failures onto HTTP statuses. A provider 404
// stays a 404; every other provider or network failure is a bad gateway.
func weatherError(err error) error {
	var (
		apiErr       *domain.APIError
		transportErr *domain.TransportError
	)
	switch {
	case errors.Is(err, service.ErrEmptyCity):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr) && apiErr.StatusCode == fiber.StatusNotFound:
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.As(err, &apiErr), errors.As(err, &transportErr):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return err
	}
}
