package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/traverseglobe/quotation-backend/api/responses"
	"github.com/traverseglobe/quotation-backend/internal/catalog"
	pkgerrors "github.com/traverseglobe/quotation-backend/pkg/errors"
	"github.com/traverseglobe/quotation-backend/pkg/logger"
)

// CatalogService is the cached catalog as seen by the API.
type CatalogService interface {
	catalog.Provider
	Load(ctx context.Context) (*catalog.Result, error)
	Refresh(ctx context.Context) (*catalog.Result, error)
}

type catalogView struct {
	*catalog.Result
	Products []catalog.Product `json:"products,omitempty"`
}

// CatalogGet returns the catalog hierarchy. Passing location, category and
// tour narrows the response to that tour's priced variants.
func CatalogGet(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		res, err := svc.Load(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view := catalogView{Result: res}
		q := r.URL.Query()
		location := strings.TrimSpace(q.Get("location"))
		category := strings.TrimSpace(q.Get("category"))
		tour := strings.TrimSpace(q.Get("tour"))
		if location != "" && category != "" && tour != "" {
			view.Products = res.Catalog.ProductsFor(location, category, tour)
			if len(view.Products) == 0 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "tour not found in catalog"))
				return
			}
		}

		responses.WriteSuccessWithNotices(w, view, res.Notice)
	}
}

// CatalogRefresh bypasses the cache TTL and refetches the primary source.
func CatalogRefresh(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		res, err := svc.Refresh(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithField(ctx, "source", res.Source), "catalog.refreshed")
		}
		responses.WriteSuccessWithNotices(w, catalogView{Result: res}, res.Notice)
	}
}
