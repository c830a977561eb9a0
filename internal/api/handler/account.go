package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamestats/internal/api/apierr"
	"github.com/mcoot/gamestats/internal/api/middleware"
	"github.com/mcoot/gamestats/internal/api/request"
	"github.com/mcoot/gamestats/internal/api/response"
	"github.com/mcoot/gamestats/internal/model"
	"github.com/mcoot/gamestats/internal/services/account"
)

// AccountHandler handles registration, login and player lookup
type AccountHandler struct {
	accounts *account.Service
	logger   *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts *account.Service, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// Register handles POST /api/v1/accounts
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	session, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Secret)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.PrivateJSON(w, http.StatusCreated, response.AuthResponseFromSession(session))
}

// Login handles POST /api/v1/sessions
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	session, err := h.accounts.Login(r.Context(), req.Identifier(), req.Secret)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.PrivateJSON(w, http.StatusOK, response.AuthResponseFromSession(session))
}

// Me handles GET /api/v1/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	player, err := h.accounts.CurrentIdentity(r.Context(), middleware.GetToken(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, response.NewPlayerResponse(player))
}

// GetPlayer handles GET /api/v1/players/{id}
func (h *AccountHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, r, h.logger, apierr.NewInvalidRequestError("player id is required"))
		return
	}

	player, err := h.accounts.GetPlayer(r.Context(), model.PlayerID(id))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, response.NewPlayerResponse(player))
}
