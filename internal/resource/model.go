package resource

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// ErrNotFound is returned by Store.Find when no record exists for the id.
// The controller maps it to a 404 response.
var ErrNotFound = errors.New("record not found")

// Attrs holds the attributes submitted for a record, one value per name.
// Built from the request form for HTML submissions or from a decoded
// JSON/XML body for API submissions.
type Attrs map[string]string

// AttrsFromForm flattens url.Values into Attrs, keeping the first value
// for each name.
func AttrsFromForm(form url.Values) Attrs {
	attrs := make(Attrs, len(form))
	for name, values := range form {
		if len(values) > 0 {
			attrs[name] = values[0]
		}
	}
	return attrs
}

// AssignOptions controls how attributes are assigned when building or
// updating a record. Role selects a role-scoped attribute allow-list.
// Unprotected bypasses the allow-list check entirely. Both are passed
// through to the store verbatim; the store decides what they mean.
type AssignOptions struct {
	Role        string
	Unprotected bool
}

// Errors maps attribute names to validation messages. An empty map means
// the record is valid.
type Errors map[string][]string

// Add appends a validation message for the attribute.
func (e Errors) Add(attr, message string) {
	e[attr] = append(e[attr], message)
}

// Any reports whether any validation message is present.
func (e Errors) Any() bool {
	return len(e) > 0
}

// Record is the minimal protocol a domain object must satisfy to be
// served by a Controller.
type Record interface {
	// ID returns the record's identifier, used in resource locations.
	// Empty for unsaved records.
	ID() string
	// Errors returns the validation errors from the last failed write.
	Errors() Errors
}

// Store supplies and mutates records of one type. Save, Update and
// Destroy return (false, nil) when the mutation was rejected by
// validation; the record's Errors carry the details. A non-nil error
// means the store itself failed and maps to a 500 response.
type Store[R Record] interface {
	List(ctx context.Context) ([]R, error)
	Find(ctx context.Context, id string) (R, error)
	Build(ctx context.Context, attrs Attrs, opts AssignOptions) (R, error)
	Save(ctx context.Context, record R) (bool, error)
	Update(ctx context.Context, record R, attrs Attrs, opts AssignOptions) (bool, error)
	Destroy(ctx context.Context, record R) (bool, error)
}

// Scoped is an optional Store extension narrowing the listing used by
// the index action. When the store does not implement it, index falls
// back to the unscoped List.
type Scoped[R Record] interface {
	Scope(ctx context.Context, r *http.Request) ([]R, error)
}
