package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"auxpass/internal/status"
	"auxpass/models"
	"auxpass/utils"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// AuxService is the subset of services.AuxPassService the handlers need.
type AuxService interface {
	Status(ctx context.Context, stationID, wallet string) (*models.PublicView, error)
	Join(ctx context.Context, stationID, wallet string, profile models.Profile) (*models.JoinResult, error)
	Pass(ctx context.Context, stationID, wallet string) (*models.PassResult, error)
	Leave(ctx context.Context, stationID, wallet string) (*models.PublicView, error)
}

type AuxHandler struct {
	auxService AuxService
}

func NewAuxHandler(auxService AuxService) *AuxHandler {
	return &AuxHandler{auxService: auxService}
}

type joinRequest struct {
	Wallet      string `json:"wallet"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

func (r joinRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Wallet, validation.Required),
		validation.Field(&r.DisplayName, validation.Length(0, 64)),
		validation.Field(&r.AvatarURL, validation.Length(0, 512), is.URL),
	)
}

type walletRequest struct {
	Wallet string `json:"wallet"`
}

func (r walletRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Wallet, validation.Required),
	)
}

// checkWallet rejects malformed addresses before they reach the service.
func checkWallet(wallet string) error {
	if !utils.IsValidWallet(wallet) {
		return fmt.Errorf("%w: %q is not a 0x-prefixed 40 hex digit address", status.ErrInvalidWallet, wallet)
	}
	return nil
}

// GetStatus - GET /api/v1/stations/{stationId}/aux?wallet=
func (h *AuxHandler) GetStatus(e *core.RequestEvent) error {
	stationID := e.Request.PathValue("stationId")
	wallet := e.Request.URL.Query().Get("wallet")

	view, err := h.auxService.Status(e.Request.Context(), stationID, wallet)
	if err != nil {
		return writeError(e, "status", err)
	}

	return e.JSON(http.StatusOK, view)
}

// JoinQueue - POST /api/v1/stations/{stationId}/aux/join
func (h *AuxHandler) JoinQueue(e *core.RequestEvent) error {
	var req joinRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := req.Validate(); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := checkWallet(req.Wallet); err != nil {
		return writeError(e, "join", err)
	}

	stationID := e.Request.PathValue("stationId")
	profile := models.Profile{DisplayName: req.DisplayName, AvatarURL: req.AvatarURL}

	result, err := h.auxService.Join(e.Request.Context(), stationID, req.Wallet, profile)
	if err != nil {
		return writeError(e, "join", err)
	}

	return e.JSON(http.StatusOK, result)
}

// PassAux - POST /api/v1/stations/{stationId}/aux/pass
func (h *AuxHandler) PassAux(e *core.RequestEvent) error {
	var req walletRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := req.Validate(); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := checkWallet(req.Wallet); err != nil {
		return writeError(e, "pass", err)
	}

	result, err := h.auxService.Pass(e.Request.Context(), e.Request.PathValue("stationId"), req.Wallet)
	if err != nil {
		return writeError(e, "pass", err)
	}

	return e.JSON(http.StatusOK, result)
}

// LeaveQueue - POST /api/v1/stations/{stationId}/aux/leave
func (h *AuxHandler) LeaveQueue(e *core.RequestEvent) error {
	var req walletRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := req.Validate(); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := checkWallet(req.Wallet); err != nil {
		return writeError(e, "leave", err)
	}

	view, err := h.auxService.Leave(e.Request.Context(), e.Request.PathValue("stationId"), req.Wallet)
	if err != nil {
		return writeError(e, "leave", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"ok": true, "status": view})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, status.ErrAlreadyQueued),
		errors.Is(err, status.ErrInsufficientBalance),
		errors.Is(err, status.ErrInvalidWallet):
		return http.StatusBadRequest
	case errors.Is(err, status.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, status.ErrStationNotFound):
		return http.StatusNotFound
	case errors.Is(err, status.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, status.ErrOracleUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(e *core.RequestEvent, operation string, err error) error {
	code := httpStatus(err)
	body := map[string]any{"code": status.Code(err), "error": err.Error()}

	var balanceErr *status.InsufficientBalanceError
	if errors.As(err, &balanceErr) {
		body["min_required"] = balanceErr.MinRequired
	}

	if code == http.StatusInternalServerError {
		slog.Error("aux request failed", "operation", operation, "station_id", e.Request.PathValue("stationId"), "error", err)
		body["error"] = "internal error"
	}

	return e.JSON(code, body)
}
