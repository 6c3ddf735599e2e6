package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/traverseglobe/quotation-backend/api/middleware"
	"github.com/traverseglobe/quotation-backend/api/responses"
	"github.com/traverseglobe/quotation-backend/api/validators"
	"github.com/traverseglobe/quotation-backend/internal/catalog"
	"github.com/traverseglobe/quotation-backend/internal/pdf"
	"github.com/traverseglobe/quotation-backend/internal/pricing"
	"github.com/traverseglobe/quotation-backend/internal/quotation"
	"github.com/traverseglobe/quotation-backend/internal/share"
	"github.com/traverseglobe/quotation-backend/pkg/config"
	pkgerrors "github.com/traverseglobe/quotation-backend/pkg/errors"
	"github.com/traverseglobe/quotation-backend/pkg/format"
	"github.com/traverseglobe/quotation-backend/pkg/logger"
)

const maxGuestNameLen = 120

// SessionManager creates and removes quotation sessions.
type SessionManager interface {
	Create(ctx context.Context) (string, *quotation.Container, error)
	Delete(ctx context.Context, sessionID string) error
}

type quotationView struct {
	SessionID string               `json:"sessionId,omitempty"`
	Quotation quotation.Quotation  `json:"quotation"`
	Breakdown pricing.Breakdown    `json:"breakdown"`
	Status    quotation.SaveStatus `json:"status"`
}

func viewOf(sessionID string, c *quotation.Container) quotationView {
	v := c.View()
	return quotationView{
		SessionID: sessionID,
		Quotation: v.Quotation,
		Breakdown: v.Breakdown,
		Status:    v.Status,
	}
}

// activityPayload selects an activity by catalog coordinates. When costAED is
// given the selection is taken as entered instead of priced from the catalog.
type activityPayload struct {
	Location string   `json:"location" validate:"required"`
	Category string   `json:"category" validate:"required"`
	Tour     string   `json:"tour" validate:"required"`
	Product  string   `json:"product"`
	Transfer string   `json:"transfer"`
	CostAED  *float64 `json:"costAED" validate:"omitempty,gte=0"`
	CostUSD  *float64 `json:"costUSD" validate:"omitempty,gte=0"`
}

type gstPayload struct {
	IncludeGST *bool `json:"includeGST" validate:"required"`
}

// sessionContainer fetches the container resolved by middleware.Session.
func sessionContainer(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (*quotation.Container, bool) {
	c := middleware.ContainerFromContext(r.Context())
	if c == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quotation session missing"))
		return nil, false
	}
	return c, true
}

func writeView(w http.ResponseWriter, r *http.Request, c *quotation.Container) {
	responses.WriteSuccess(w, viewOf(middleware.SessionIDFromContext(r.Context()), c))
}

// QuotationCreate starts a session holding a default quotation.
func QuotationCreate(mgr SessionManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if mgr == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session manager unavailable"))
			return
		}
		id, c, err := mgr.Create(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithSessionID(ctx, id), "quotation.session_created")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, viewOf(id, c))
	}
}

func QuotationGet(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		writeView(w, r, c)
	}
}

// QuotationDelete clears the persisted document and closes the session.
func QuotationDelete(mgr SessionManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if mgr == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session manager unavailable"))
			return
		}
		if err := mgr.Delete(ctx, middleware.SessionIDFromContext(ctx)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func QuotationUpdateDetails(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		var details quotation.BasicDetails
		if err := validators.DecodeJSON(r, &details); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if details.GuestName != nil {
			name := validators.SanitizeString(*details.GuestName, maxGuestNameLen)
			details.GuestName = &name
		}
		if err := c.UpdateBasicDetails(details); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeView(w, r, c)
	}
}

// resolveActivity prices a selection from the catalog unless the caller
// supplied its own cost.
func resolveActivity(ctx context.Context, provider catalog.Provider, p activityPayload) (quotation.Activity, error) {
	if p.CostAED != nil {
		a := quotation.Activity{
			Location: strings.TrimSpace(p.Location),
			Category: strings.TrimSpace(p.Category),
			Tour:     strings.TrimSpace(p.Tour),
			Product:  strings.TrimSpace(p.Product),
			Transfer: strings.TrimSpace(p.Transfer),
			CostAED:  *p.CostAED,
		}
		if p.CostUSD != nil {
			a.CostUSD = *p.CostUSD
		}
		return a, nil
	}
	if provider == nil {
		return quotation.Activity{}, pkgerrors.New(pkgerrors.CodeValidation, "costAED is required when no catalog is configured")
	}
	cat, err := provider.Catalog(ctx)
	if err != nil {
		return quotation.Activity{}, err
	}
	product, ok := cat.Find(p.Location, p.Category, p.Tour, p.Product, p.Transfer)
	if !ok {
		return quotation.Activity{}, pkgerrors.New(pkgerrors.CodeNotFound, "activity not found in catalog").WithDetails(map[string]string{
			"location": p.Location,
			"category": p.Category,
			"tour":     p.Tour,
			"product":  p.Product,
			"transfer": p.Transfer,
		})
	}
	return product.Activity(), nil
}

func QuotationAddActivity(provider catalog.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		var payload activityPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		activity, err := resolveActivity(ctx, provider, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if _, err := c.AddActivity(activity); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, viewOf(middleware.SessionIDFromContext(ctx), c))
	}
}

func QuotationUpdateActivity(provider catalog.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		index, err := validators.ParsePathIndex(r, "index")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload activityPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		activity, err := resolveActivity(ctx, provider, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := c.UpdateActivity(index, activity); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeView(w, r, c)
	}
}

func QuotationRemoveActivity(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		index, err := validators.ParsePathIndex(r, "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c.RemoveActivity(index)
		writeView(w, r, c)
	}
}

func QuotationAddDay(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		var in quotation.DayInput
		if r.ContentLength != 0 {
			if err := validators.DecodeJSON(r, &in); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		if _, err := c.AddDay(in); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, viewOf(middleware.SessionIDFromContext(ctx), c))
	}
}

func QuotationUpdateDay(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		index, err := validators.ParsePathIndex(r, "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var patch quotation.DayPatch
		if err := validators.DecodeJSON(r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := c.UpdateDay(index, patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeView(w, r, c)
	}
}

func QuotationRemoveDay(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		index, err := validators.ParsePathIndex(r, "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c.RemoveDay(index)
		writeView(w, r, c)
	}
}

// QuotationFlights toggles inclusion and/or sets the per-head fares.
func QuotationFlights(logg *logger.Logger) http.HandlerFunc {
	return addOnHandler(logg, (*quotation.Container).PatchFlights)
}

// QuotationVisa toggles inclusion and/or sets the per-head fees.
func QuotationVisa(logg *logger.Logger) http.HandlerFunc {
	return addOnHandler(logg, (*quotation.Container).PatchVisa)
}

func addOnHandler(logg *logger.Logger, apply func(*quotation.Container, quotation.AddOnPatch) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		var patch quotation.AddOnPatch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := apply(c, patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeView(w, r, c)
	}
}

func QuotationGST(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		var payload gstPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c.ToggleGST(*payload.IncludeGST)
		writeView(w, r, c)
	}
}

func QuotationStatus(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"status":     c.Status(),
			"storageKey": c.StorageKey(),
		})
	}
}

// QuotationExport downloads the document as a JSON attachment.
func QuotationExport(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		data, err := c.ExportData()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "export quotation"))
			return
		}
		name := "quotation_" + time.Now().UTC().Format(format.DateLayout) + ".json"
		responses.WriteFile(w, "application/json", name, data)
	}
}

// QuotationImport replaces the document with the uploaded export. A rejected
// document leaves the current one untouched.
func QuotationImport(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		data, err := validators.ReadBody(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := c.Import(data); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeView(w, r, c)
	}
}

func QuotationShare(company config.CompanyConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, share.Build(c.Snapshot(), company.WhatsAppNumbers, time.Now().UTC()))
	}
}

// QuotationPDF renders the printable quotation with a QR linking to the
// agency's WhatsApp.
func QuotationPDF(company config.CompanyConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		c, ok := sessionContainer(w, r, logg)
		if !ok {
			return
		}
		v := c.View()
		q := v.Quotation
		now := time.Now().UTC()

		body, err := pdf.Render(q, pdf.Options{
			Company: pdf.Company{
				Name:            company.Name,
				Website:         company.Website,
				UAEAddress:      company.UAEAddress,
				IndiaAddress:    company.IndiaAddress,
				WhatsAppNumbers: company.WhatsAppNumbers,
			},
			Breakdown:   &v.Breakdown,
			ShareLink:   share.WhatsAppLink(q, company.PrimaryWhatsApp()),
			GeneratedAt: now,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render pdf"))
			return
		}
		if logg != nil {
			logg.Info(logg.WithField(ctx, "bytes", len(body)), "quotation.pdf_rendered")
		}
		responses.WriteFile(w, "application/pdf", share.PDFFilename(q, now), body)
	}
}
