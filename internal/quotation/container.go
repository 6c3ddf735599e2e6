package quotation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/traverseglobe/quotation-backend/internal/pricing"
	pkgerrors "github.com/traverseglobe/quotation-backend/pkg/errors"
	"github.com/traverseglobe/quotation-backend/pkg/logger"
	"github.com/traverseglobe/quotation-backend/pkg/metrics"
)

const (
	DefaultStorageKey    = "quotationFormState"
	DefaultAutosaveDelay = 30 * time.Second
	DefaultSavedFlash    = 2 * time.Second
	DefaultIdleTimeout   = 2 * time.Hour

	saveFailedMessage = "Failed to save quotation"
)

type Config struct {
	StorageKey    string
	AutosaveDelay time.Duration
	SavedFlash    time.Duration
	GSTRate       float64
	// IdleTimeout is how long a Manager keeps an untouched session live.
	IdleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.StorageKey) == "" {
		c.StorageKey = DefaultStorageKey
	}
	if c.AutosaveDelay <= 0 {
		c.AutosaveDelay = DefaultAutosaveDelay
	}
	if c.SavedFlash <= 0 {
		c.SavedFlash = DefaultSavedFlash
	}
	if c.GSTRate <= 0 {
		c.GSTRate = pricing.DefaultGSTRate
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}

// Params wires a Container. Storage is required; the rest default to the
// wall clock, real timers, a no-op logger and unregistered metrics.
type Params struct {
	Storage   Storage
	Scheduler Scheduler
	Clock     Clock
	Logger    *logger.Logger
	Metrics   *metrics.AutosaveMetrics
	Config    Config
}

// Container owns one quotation document. Every mutation runs synchronously
// under mu, recomputes derived fields and publishes a new document value, then
// (re)schedules the debounced autosave.
type Container struct {
	mu sync.Mutex

	cfg         Config
	storage     Storage
	storageName string
	scheduler   Scheduler
	clock       Clock
	log         *logger.Logger
	metrics     *metrics.AutosaveMetrics
	logCtx      context.Context

	doc        Quotation
	generation uint64
	seq        uint64
	pending    Task
	flash      Task
	flashSeq   uint64
	status     SaveStatus
	closed     bool
}

// New builds a container and restores the document persisted under the
// configured key, falling back to defaults when nothing usable is stored.
func New(ctx context.Context, p Params) (*Container, error) {
	c, err := newContainer(p)
	if err != nil {
		return nil, err
	}
	data, err := c.storage.Load(ctx, c.cfg.StorageKey)
	if err != nil {
		c.log.Warn(c.logCtx, fmt.Sprintf("failed to load saved quotation: %v", err))
		return c, nil
	}
	c.restore(data)
	return c, nil
}

// newContainer builds a container holding the default document without
// touching storage.
func newContainer(p Params) (*Container, error) {
	if p.Storage == nil {
		return nil, fmt.Errorf("quotation storage required")
	}
	if p.Scheduler == nil {
		p.Scheduler = NewTimerScheduler()
	}
	if p.Clock == nil {
		p.Clock = SystemClock()
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	cfg := p.Config.withDefaults()

	c := &Container{
		cfg:         cfg,
		storage:     p.Storage,
		storageName: storageName(p.Storage),
		scheduler:   p.Scheduler,
		clock:       p.Clock,
		log:         p.Logger,
		metrics:     p.Metrics,
		doc:         Default().withDerived(cfg.GSTRate),
	}
	c.logCtx = p.Logger.WithFields(context.Background(), map[string]any{
		"storage_key": cfg.StorageKey,
		"storage":     c.storageName,
	})
	return c, nil
}

// restore adopts a persisted document. Nil data keeps the defaults; an
// unreadable document is logged and ignored.
func (c *Container) restore(data []byte) {
	if data == nil {
		return
	}
	doc, err := decodeDocument(data)
	if err != nil {
		c.log.Warn(c.logCtx, fmt.Sprintf("ignoring saved quotation: %v", err))
		return
	}
	c.doc = doc.withDerived(c.cfg.GSTRate)
	c.log.Debug(c.logCtx, "restored saved quotation")
}

// Snapshot returns a copy of the current document.
func (c *Container) Snapshot() Quotation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.clone()
}

// Breakdown returns the cost lines behind the current document's costs.
func (c *Container) Breakdown() pricing.Breakdown {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Breakdown(c.cfg.GSTRate)
}

func (c *Container) Status() SaveStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Container) statusLocked() SaveStatus {
	status := c.status
	status.Pending = c.pending != nil
	return status
}

// View is one consistent read of the document, its cost lines and the save
// status.
type View struct {
	Quotation Quotation
	Breakdown pricing.Breakdown
	Status    SaveStatus
}

// View returns the document, breakdown and status taken under one lock.
func (c *Container) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Quotation: c.doc.clone(),
		Breakdown: c.doc.Breakdown(c.cfg.GSTRate),
		Status:    c.statusLocked(),
	}
}

func (c *Container) StorageKey() string {
	return c.cfg.StorageKey
}

// BasicDetails is a partial update; nil fields are left untouched.
type BasicDetails struct {
	GuestName     *string      `json:"guestName"`
	TotalAdults   *int         `json:"totalAdults"`
	TotalChildren *int         `json:"totalChildren"`
	TravelDates   *TravelDates `json:"travelDates" validate:"omitempty"`
	TravelType    *TravelType  `json:"travelType" validate:"omitempty,traveltype"`
	Flights       *AddOn       `json:"flights" validate:"omitempty"`
	Visa          *AddOn       `json:"visa" validate:"omitempty"`
	IncludeGST    *bool        `json:"includeGST"`
}

// UpdateBasicDetails shallow-merges the non-nil fields. Negative pax counts
// are clamped to zero.
func (c *Container) UpdateBasicDetails(details BasicDetails) error {
	if err := validate.Struct(details); err != nil {
		return validationError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.doc
	if details.GuestName != nil {
		next.GuestName = *details.GuestName
	}
	if details.TotalAdults != nil {
		next.TotalAdults = max(*details.TotalAdults, 0)
	}
	if details.TotalChildren != nil {
		next.TotalChildren = max(*details.TotalChildren, 0)
	}
	if details.TravelDates != nil {
		next.TravelDates = *details.TravelDates
	}
	if details.TravelType != nil {
		next.TravelType = *details.TravelType
	}
	if details.Flights != nil {
		next.Flights = *details.Flights
	}
	if details.Visa != nil {
		next.Visa = *details.Visa
	}
	if details.IncludeGST != nil {
		next.IncludeGST = *details.IncludeGST
	}
	c.commitLocked(next)
	return nil
}

// AddActivity appends a with a freshly generated id and returns the stored
// selection.
func (c *Container) AddActivity(a Activity) (Activity, error) {
	if err := validate.Struct(a); err != nil {
		return Activity{}, validationError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	a.ID = c.nextActivityIDLocked(a)
	next := c.doc
	next.SelectedActivities = append(append(make([]Activity, 0, len(c.doc.SelectedActivities)+1), c.doc.SelectedActivities...), a)
	c.commitLocked(next)
	return a, nil
}

// RemoveActivity drops the selection at index. Out of range is a no-op.
func (c *Container) RemoveActivity(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.doc.SelectedActivities
	if index < 0 || index >= len(current) {
		return
	}
	next := c.doc
	next.SelectedActivities = make([]Activity, 0, len(current)-1)
	next.SelectedActivities = append(next.SelectedActivities, current[:index]...)
	next.SelectedActivities = append(next.SelectedActivities, current[index+1:]...)
	c.commitLocked(next)
}

// UpdateActivity replaces the selection at index, keeping its id when a
// carries none. Out of range is a no-op.
func (c *Container) UpdateActivity(index int, a Activity) error {
	if err := validate.Struct(a); err != nil {
		return validationError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.doc.SelectedActivities
	if index < 0 || index >= len(current) {
		return nil
	}
	if a.ID == "" {
		a.ID = current[index].ID
	}
	next := c.doc
	next.SelectedActivities = append([]Activity{}, current...)
	next.SelectedActivities[index] = a
	c.commitLocked(next)
	return nil
}

// DayInput seeds a new itinerary day. Empty fields take defaults: the title
// becomes "DAY <n>" and meals "No Meal".
type DayInput struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Meals         Meal     `json:"meals" validate:"omitempty,meal"`
	Accommodation string   `json:"accommodation"`
	ImageURL      string   `json:"imageUrl"`
	Options       []string `json:"options"`
	Activities    []string `json:"activities"`
}

func (c *Container) AddDay(in DayInput) (Day, error) {
	if err := validate.Struct(in); err != nil {
		return Day{}, validationError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.doc.Itinerary) + 1
	day := Day{
		Day:           n,
		Title:         in.Title,
		Description:   in.Description,
		Meals:         in.Meals,
		Accommodation: in.Accommodation,
		ImageURL:      in.ImageURL,
		Options:       append([]string{}, in.Options...),
		Activities:    append([]string{}, in.Activities...),
	}
	if day.Title == "" {
		day.Title = fmt.Sprintf("DAY %d", n)
	}
	if day.Meals == "" {
		day.Meals = MealNone
	}

	next := c.doc
	next.Itinerary = append(append(make([]Day, 0, n), c.doc.Itinerary...), day)
	c.commitLocked(next)
	return day.clone(), nil
}

// RemoveDay drops the day at index and renumbers the rest 1..n. Out of range
// is a no-op.
func (c *Container) RemoveDay(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.doc.Itinerary
	if index < 0 || index >= len(current) {
		return
	}
	days := make([]Day, 0, len(current)-1)
	for i, d := range current {
		if i == index {
			continue
		}
		d.Day = len(days) + 1
		days = append(days, d)
	}
	next := c.doc
	next.Itinerary = days
	c.commitLocked(next)
}

// DayPatch is a partial day update; nil fields are left untouched. The day
// number cannot be patched.
type DayPatch struct {
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	Meals         *Meal     `json:"meals" validate:"omitempty,meal"`
	Accommodation *string   `json:"accommodation"`
	ImageURL      *string   `json:"imageUrl"`
	Options       *[]string `json:"options"`
	Activities    *[]string `json:"activities"`
}

// UpdateDay merges patch into the day at index. Out of range is a no-op.
func (c *Container) UpdateDay(index int, patch DayPatch) error {
	if err := validate.Struct(patch); err != nil {
		return validationError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.doc.Itinerary
	if index < 0 || index >= len(current) {
		return nil
	}
	day := current[index]
	if patch.Title != nil {
		day.Title = *patch.Title
	}
	if patch.Description != nil {
		day.Description = *patch.Description
	}
	if patch.Meals != nil {
		day.Meals = *patch.Meals
	}
	if patch.Accommodation != nil {
		day.Accommodation = *patch.Accommodation
	}
	if patch.ImageURL != nil {
		day.ImageURL = *patch.ImageURL
	}
	if patch.Options != nil {
		day.Options = append([]string{}, (*patch.Options)...)
	}
	if patch.Activities != nil {
		day.Activities = append([]string{}, (*patch.Activities)...)
	}

	next := c.doc
	next.Itinerary = append([]Day{}, current...)
	next.Itinerary[index] = day
	c.commitLocked(next)
	return nil
}

func (c *Container) ToggleFlights(included bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.doc
	next.Flights.Included = included
	c.commitLocked(next)
}

func (c *Container) ToggleVisa(included bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.doc
	next.Visa.Included = included
	c.commitLocked(next)
}

func (c *Container) ToggleGST(includeGST bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.doc
	next.IncludeGST = includeGST
	c.commitLocked(next)
}

// SetFlightCosts updates the per-head flight fares without touching inclusion.
func (c *Container) SetFlightCosts(adultCost, childCost float64) error {
	return c.setAddOnCosts(adultCost, childCost, func(q *Quotation) *AddOn { return &q.Flights })
}

// SetVisaCosts updates the per-head visa fees without touching inclusion.
func (c *Container) SetVisaCosts(adultCost, childCost float64) error {
	return c.setAddOnCosts(adultCost, childCost, func(q *Quotation) *AddOn { return &q.Visa })
}

func (c *Container) setAddOnCosts(adultCost, childCost float64, pick func(*Quotation) *AddOn) error {
	if err := validate.Struct(AddOn{AdultCost: adultCost, ChildCost: childCost}); err != nil {
		return validationError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.doc
	addOn := pick(&next)
	addOn.AdultCost = adultCost
	addOn.ChildCost = childCost
	c.commitLocked(next)
	return nil
}

// AddOnPatch is a partial add-on update; nil fields are left untouched.
type AddOnPatch struct {
	Included  *bool    `json:"included"`
	AdultCost *float64 `json:"adultCost" validate:"omitempty,gte=0"`
	ChildCost *float64 `json:"childCost" validate:"omitempty,gte=0"`
}

// PatchFlights applies inclusion and fares together in one mutation.
func (c *Container) PatchFlights(patch AddOnPatch) error {
	return c.patchAddOn(patch, func(q *Quotation) *AddOn { return &q.Flights })
}

// PatchVisa applies inclusion and fees together in one mutation.
func (c *Container) PatchVisa(patch AddOnPatch) error {
	return c.patchAddOn(patch, func(q *Quotation) *AddOn { return &q.Visa })
}

func (c *Container) patchAddOn(patch AddOnPatch, pick func(*Quotation) *AddOn) error {
	if err := validate.Struct(patch); err != nil {
		return validationError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.doc
	addOn := pick(&next)
	if patch.Included != nil {
		addOn.Included = *patch.Included
	}
	if patch.AdultCost != nil {
		addOn.AdultCost = *patch.AdultCost
	}
	if patch.ChildCost != nil {
		addOn.ChildCost = *patch.ChildCost
	}
	c.commitLocked(next)
	return nil
}

// ClearAll resets the document to defaults, drops any pending autosave and
// deletes the persisted copy immediately.
func (c *Container) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopPendingLocked()
	c.doc = Default().withDerived(c.cfg.GSTRate)
	c.generation++

	if err := c.storage.Delete(ctx, c.cfg.StorageKey); err != nil {
		c.log.Error(c.logCtx, "failed to delete saved quotation", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to clear saved quotation")
	}
	return nil
}

// ExportData serializes the current document as indented JSON.
func (c *Container) ExportData() ([]byte, error) {
	c.mu.Lock()
	doc := c.doc
	c.mu.Unlock()
	return encodeDocument(doc, true)
}

// Import replaces the document with the serialized one. On any error the
// current document is left untouched.
func (c *Container) Import(data []byte) error {
	doc, err := decodeDocument(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.commitLocked(doc)
	return nil
}

// ImportData is Import reduced to a success flag.
func (c *Container) ImportData(data []byte) bool {
	if err := c.Import(data); err != nil {
		c.log.Warn(c.logCtx, fmt.Sprintf("quotation import rejected: %v", err))
		return false
	}
	return true
}

// Flush runs a pending autosave now. It is a no-op when nothing is pending.
func (c *Container) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return nil
	}
	c.stopPendingLocked()
	return c.saveLocked(ctx)
}

// Close cancels the pending autosave and the saved-flag timer. The document
// stays readable and mutable but is no longer persisted.
func (c *Container) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.stopPendingLocked()
	if c.flash != nil {
		c.flash.Stop()
		c.flash = nil
	}
}

func (c *Container) commitLocked(next Quotation) {
	next.SchemaVersion = SchemaVersion
	c.doc = next.withDerived(c.cfg.GSTRate)
	c.generation++
	c.scheduleAutosaveLocked()
}

func (c *Container) scheduleAutosaveLocked() {
	if c.closed {
		return
	}
	c.stopPendingLocked()
	gen := c.generation
	c.pending = c.scheduler.AfterFunc(c.cfg.AutosaveDelay, func() {
		c.autosave(gen)
	})
}

func (c *Container) stopPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *Container) autosave(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer mutation rescheduled; its own task will save.
	if c.closed || gen != c.generation {
		return
	}
	c.pending = nil
	_ = c.saveLocked(context.Background())
}

func (c *Container) saveLocked(ctx context.Context) error {
	payload, err := encodeDocument(c.doc, false)
	if err == nil {
		start := c.clock.Now()
		err = c.storage.Save(ctx, c.cfg.StorageKey, payload)
		c.metrics.ObserveDuration(c.storageName, c.clock.Now().Sub(start))
	}
	if err != nil {
		c.status.Saved = false
		c.status.Error = saveFailedMessage
		c.metrics.IncFailure(c.storageName)
		c.log.Error(c.logCtx, "quotation autosave failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, saveFailedMessage)
	}

	savedAt := c.clock.Now()
	c.status.Saved = true
	c.status.Error = ""
	c.status.LastSavedAt = &savedAt
	c.metrics.IncSuccess(c.storageName)

	if c.flash != nil {
		c.flash.Stop()
	}
	c.flashSeq++
	seq := c.flashSeq
	c.flash = c.scheduler.AfterFunc(c.cfg.SavedFlash, func() {
		c.clearSaved(seq)
	})
	return nil
}

func (c *Container) clearSaved(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.flashSeq {
		return
	}
	c.status.Saved = false
	c.flash = nil
}

func (c *Container) nextActivityIDLocked(a Activity) string {
	c.seq++
	return fmt.Sprintf("%s-%s-%d-%d", slug(a.Location), slug(a.Tour), c.clock.Now().UnixMilli(), c.seq)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "activity"
	}
	return s
}

func encodeDocument(q Quotation, indent bool) ([]byte, error) {
	q.SchemaVersion = SchemaVersion
	if indent {
		return json.MarshalIndent(q, "", "  ")
	}
	return json.Marshal(q)
}
