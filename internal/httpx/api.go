package httpx

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/alkuinvito/kasirin/internal/auth"
)

// API mounts every authenticated route. Nil handlers are skipped.
type API struct {
	Tokens       *auth.Tokens
	Log          *slog.Logger
	Transactions *TransactionsHandler
	Catalog      *CatalogHandler
	Admin        *AdminHandler
	Reports      *ReportsHandler
}

func (a *API) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(a.Tokens, a.Log))
		if a.Transactions != nil {
			a.Transactions.Register(r)
		}
		if a.Catalog != nil {
			a.Catalog.Register(r)
		}
		if a.Admin != nil {
			a.Admin.Register(r)
		}
		if a.Reports != nil {
			a.Reports.Register(r)
		}
	})
}
