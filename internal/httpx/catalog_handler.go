package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alkuinvito/kasirin/internal/auth"
	"github.com/alkuinvito/kasirin/internal/catalog"
)

// CatalogHandler serves categories, products and their option groups.
// Reads are open to every role; writes need manager.
type CatalogHandler struct {
	Store *catalog.Store
	Log   *slog.Logger
}

type nameReq struct {
	Name string `json:"name"`
}

type stockReq struct {
	Delta int `json:"delta"`
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/categories", h.listCategories)
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(RequireRole(auth.RoleManager, h.Log))
		r.Post("/categories", h.createCategory)
		r.Put("/categories/{id}", h.renameCategory)
		r.Delete("/categories/{id}", h.deleteCategory)
		r.Post("/products", h.createProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)
		r.Post("/products/{id}/stock", h.adjustStock)
		r.Post("/products/{id}/option-groups", h.createOptionGroup)
		r.Delete("/option-groups/{id}", h.deleteOptionGroup)
	})
}

func ctx3s(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 3*time.Second)
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := ctx3s(r)
	defer cancel()
	cs, err := h.Store.ListCategories(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cs})
}

func (h *CatalogHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req nameReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := ctx3s(r)
	defer cancel()
	c, err := h.Store.CreateCategory(ctx, req.Name)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"category": c})
}

func (h *CatalogHandler) renameCategory(w http.ResponseWriter, r *http.Request) {
	var req nameReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := ctx3s(r)
	defer cancel()
	c, err := h.Store.RenameCategory(ctx, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": c})
}

func (h *CatalogHandler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := ctx3s(r)
	defer cancel()
	if err := h.Store.DeleteCategory(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	size, err := queryInt(r, "pageSize", 20)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	q := r.URL.Query()
	ctx, cancel := ctx3s(r)
	defer cancel()
	out, err := h.Store.ListProducts(ctx, catalog.ProductQuery{
		Page:       page,
		PageSize:   size,
		Sort:       q.Get("sort"),
		Order:      q.Get("order"),
		CategoryID: q.Get("categoryId"),
		Search:     q.Get("q"),
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := ctx3s(r)
	defer cancel()
	p, err := h.Store.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": p})
}

func (h *CatalogHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := ctx3s(r)
	defer cancel()
	p, err := h.Store.CreateProduct(ctx, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": p})
}

func (h *CatalogHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := ctx3s(r)
	defer cancel()
	p, err := h.Store.UpdateProduct(ctx, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": p})
}

func (h *CatalogHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := ctx3s(r)
	defer cancel()
	if err := h.Store.DeleteProduct(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := ctx3s(r)
	defer cancel()
	p, err := h.Store.AdjustStock(ctx, chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": p})
}

func (h *CatalogHandler) createOptionGroup(w http.ResponseWriter, r *http.Request) {
	var in catalog.OptionGroupInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := ctx3s(r)
	defer cancel()
	g, err := h.Store.CreateOptionGroup(ctx, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"variant": g})
}

func (h *CatalogHandler) deleteOptionGroup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := ctx3s(r)
	defer cancel()
	if err := h.Store.DeleteOptionGroup(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
