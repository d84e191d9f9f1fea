package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alkuinvito/kasirin/internal/auth"
	"github.com/alkuinvito/kasirin/internal/catalog"
)

// AdminHandler serves the fee schedule and user administration.
type AdminHandler struct {
	Store *catalog.Store
	Log   *slog.Logger
}

type createUserReq struct {
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  auth.Role `json:"role"`
}

type roleReq struct {
	Role auth.Role `json:"role"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Get("/fees", h.listFees)

	r.Group(func(r chi.Router) {
		r.Use(RequireRole(auth.RoleOwner, h.Log))
		r.Post("/fees", h.createFee)
		r.Delete("/fees/{id}", h.deleteFee)
		r.Get("/users", h.listUsers)
		r.Post("/users", h.createUser)
		r.Patch("/users/{id}", h.setRole)
	})
}

func (h *AdminHandler) listFees(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := ctx3s(r)
	defer cancel()
	fees, err := h.Store.ListFees(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fees": fees})
}

func (h *AdminHandler) createFee(w http.ResponseWriter, r *http.Request) {
	var in catalog.FeeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := ctx3s(r)
	defer cancel()
	f, err := h.Store.CreateFee(ctx, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"fee": f})
}

func (h *AdminHandler) deleteFee(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := ctx3s(r)
	defer cancel()
	if err := h.Store.DeleteFee(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := ctx3s(r)
	defer cancel()
	us, err := h.Store.ListUsers(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": us})
}

func (h *AdminHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := ctx3s(r)
	defer cancel()
	u, err := h.Store.CreateUser(ctx, req.Email, req.Name, req.Role)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (h *AdminHandler) setRole(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req roleReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := ctx3s(r)
	defer cancel()
	u, err := h.Store.SetRole(ctx, actor, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}
