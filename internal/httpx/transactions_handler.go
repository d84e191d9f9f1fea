package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alkuinvito/kasirin/internal/checkout"
	"github.com/alkuinvito/kasirin/internal/redisx"
)

type Checkout interface {
	Admit(ctx context.Context, cashierID string, intents []checkout.OrderIntent) (string, error)
	ConfirmPayment(ctx context.Context, transactionID string, method checkout.Method) (*checkout.Transaction, error)
	Get(ctx context.Context, id string) (*checkout.View, error)
	List(ctx context.Context, limit, offset int) ([]checkout.View, error)
}

type Idempotency interface {
	Claim(ctx context.Context, scope, key string) (string, bool, error)
	Complete(ctx context.Context, scope, key, result string) error
	Release(ctx context.Context, scope, key string) error
}

type TransactionsHandler struct {
	Checkout Checkout
	Idem     Idempotency // optional
	Log      *slog.Logger
}

type variantRef struct {
	ID string `json:"id"`
}

type orderReq struct {
	ProductID string       `json:"productId"`
	Quantity  int          `json:"quantity"`
	Notes     *string      `json:"notes"`
	Variants  []variantRef `json:"variants"`
}

type createTransactionReq struct {
	Orders []orderReq `json:"orders"`
}

type payTransactionReq struct {
	Method checkout.Method `json:"method"`
}

type idResp struct {
	ID string `json:"id"`
}

func (h *TransactionsHandler) Register(r chi.Router) {
	r.Post("/transactions", h.create)
	r.Get("/transactions", h.list)
	r.Get("/transactions/{id}", h.get)
	r.Patch("/transactions/{id}", h.pay)
}

func (h *TransactionsHandler) create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req createTransactionReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	intents := make([]checkout.OrderIntent, 0, len(req.Orders))
	for _, o := range req.Orders {
		in := checkout.OrderIntent{ProductID: o.ProductID, Quantity: o.Quantity, Notes: o.Notes}
		for _, v := range o.Variants {
			in.OptionItemIDs = append(in.OptionItemIDs, v.ID)
		}
		intents = append(intents, in)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	claimed := false
	if key != "" && h.Idem != nil {
		prev, ok, err := h.Idem.Claim(ctx, p.UserID, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeError(w, r, h.Log, err)
			return
		case err != nil:
			// Proceed without replay protection.
			h.log().Warn("idempotency unavailable", "err", err)
		case !ok:
			w.Header().Set("Idempotent-Replayed", "true")
			writeJSON(w, http.StatusOK, idResp{ID: prev})
			return
		default:
			claimed = true
		}
	}

	id, err := h.Checkout.Admit(ctx, p.UserID, intents)
	if err != nil {
		if claimed {
			if rerr := h.Idem.Release(context.WithoutCancel(ctx), p.UserID, key); rerr != nil {
				h.log().Warn("release idempotency key", "err", rerr)
			}
		}
		writeError(w, r, h.Log, err)
		return
	}
	if claimed {
		if cerr := h.Idem.Complete(context.WithoutCancel(ctx), p.UserID, key, id); cerr != nil {
			h.log().Warn("complete idempotency key", "transaction_id", id, "err", cerr)
		}
	}
	writeJSON(w, http.StatusOK, idResp{ID: id})
}

func (h *TransactionsHandler) pay(w http.ResponseWriter, r *http.Request) {
	var req payTransactionReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	t, err := h.Checkout.ConfirmPayment(ctx, chi.URLParam(r, "id"), req.Method)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, idResp{ID: t.ID})
}

func (h *TransactionsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	v, err := h.Checkout.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": v})
}

func (h *TransactionsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vs, err := h.Checkout.List(ctx, limit, offset)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": vs})
}

func (h *TransactionsHandler) log() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}
