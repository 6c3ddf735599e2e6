package quotation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/traverseglobe/quotation-backend/pkg/errors"
	"github.com/traverseglobe/quotation-backend/pkg/format"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("tripdate", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if strings.TrimSpace(value) == "" {
			return true
		}
		_, ok := format.ParseDate(value)
		return ok
	})
	_ = v.RegisterValidation("traveltype", func(fl validator.FieldLevel) bool {
		return TravelType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("meal", func(fl validator.FieldLevel) bool {
		return Meal(fl.Field().String()).IsValid()
	})
	return v
}

func validationError(err error) error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := map[string]string{}
		for _, fe := range errs {
			details[fieldPath(fe)] = fmt.Sprintf("failed %q", fe.Tag())
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// decodeDocument strictly parses a serialized quotation: a single JSON object,
// no unknown fields, the current schema version and valid field values. The
// returned document has normalized days and derived fields recomputed.
func decodeDocument(data []byte) (Quotation, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Quotation{}, pkgerrors.New(pkgerrors.CodeImportFailed, "document is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var q Quotation
	if err := dec.Decode(&q); err != nil {
		return Quotation{}, pkgerrors.Wrap(pkgerrors.CodeImportFailed, err, "malformed document")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Quotation{}, pkgerrors.New(pkgerrors.CodeImportFailed, "trailing data after document")
	}
	if q.SchemaVersion != SchemaVersion {
		return Quotation{}, pkgerrors.New(pkgerrors.CodeImportFailed, "unsupported schema version").
			WithDetails(map[string]any{"schemaVersion": q.SchemaVersion, "supported": SchemaVersion})
	}

	q = normalize(q)
	if err := validate.Struct(q); err != nil {
		verr := pkgerrors.As(validationError(err))
		return Quotation{}, pkgerrors.Wrap(pkgerrors.CodeImportFailed, err, "invalid document").WithDetails(verr.Details())
	}
	if err := uniqueActivityIDs(q.SelectedActivities); err != nil {
		return Quotation{}, err
	}
	return q, nil
}

func normalize(q Quotation) Quotation {
	if q.SelectedActivities == nil {
		q.SelectedActivities = []Activity{}
	}
	days := make([]Day, len(q.Itinerary))
	for i, d := range q.Itinerary {
		d.Day = i + 1
		if d.Meals == "" {
			d.Meals = MealNone
		}
		if d.Options == nil {
			d.Options = []string{}
		}
		if d.Activities == nil {
			d.Activities = []string{}
		}
		days[i] = d
	}
	q.Itinerary = days
	return q
}

func uniqueActivityIDs(activities []Activity) error {
	seen := make(map[string]struct{}, len(activities))
	for i, a := range activities {
		if a.ID == "" {
			return pkgerrors.New(pkgerrors.CodeImportFailed, "activity id is required").
				WithDetails(map[string]any{"index": i})
		}
		if _, dup := seen[a.ID]; dup {
			return pkgerrors.New(pkgerrors.CodeImportFailed, "duplicate activity id").
				WithDetails(map[string]any{"id": a.ID})
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}
