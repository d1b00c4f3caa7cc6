package resource

import (
	"fmt"
	"time"

	"github.com/restkit/scaffold/internal/cache"
	"github.com/restkit/scaffold/internal/render"
)

// Action names one of the seven conventional controller actions.
type Action string

const (
	ActionIndex   Action = "index"
	ActionShow    Action = "show"
	ActionNew     Action = "new"
	ActionEdit    Action = "edit"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
)

// AllActions lists the conventional actions in routing order.
var AllActions = []Action{
	ActionIndex, ActionShow, ActionNew, ActionEdit,
	ActionCreate, ActionUpdate, ActionDestroy,
}

// Name holds the naming conventions for one resource type.
type Name struct {
	Singular string // "article"
	Plural   string // "articles"
	Human    string // "Article"
}

// Notices holds the localized flash message templates. Each is a
// fmt.Sprintf format receiving the human resource name.
type Notices struct {
	Created       string
	Updated       string
	Destroyed     string
	DestroyFailed string
}

// DefaultNotices returns the conventional flash messages.
func DefaultNotices() Notices {
	return Notices{
		Created:       "%s was successfully created.",
		Updated:       "%s was successfully updated.",
		Destroyed:     "%s was successfully destroyed.",
		DestroyFailed: "%s could not be destroyed.",
	}
}

// settings holds the declarative controller configuration, fixed at
// construction time.
type settings struct {
	actions    map[Action]bool
	formats    map[Action]render.Format
	assign     AssignOptions
	resource   func(id string) string // singular redirect target; nil = collection + "/" + id
	collection string                 // plural redirect target
	notices    Notices
	cache      cache.Cache
	cacheTTL   time.Duration
}

func defaultSettings(name Name) settings {
	s := settings{
		actions:    make(map[Action]bool, len(AllActions)),
		formats:    make(map[Action]render.Format, len(AllActions)),
		collection: "/" + name.Plural,
		notices:    DefaultNotices(),
	}
	for _, a := range AllActions {
		s.actions[a] = true
		s.formats[a] = render.FormatAll
	}
	return s
}

// Option configures a Controller at construction time.
type Option func(*settings)

// WithActions restricts the enabled action set. Disabled actions are not
// routed. Redirects that would target a disabled show action fall back to
// the collection location.
func WithActions(actions ...Action) Option {
	return func(s *settings) {
		for a := range s.actions {
			s.actions[a] = false
		}
		for _, a := range actions {
			s.actions[a] = true
		}
	}
}

// WithRole sets the role passed to Build and Update, selecting a
// role-scoped attribute allow-list in the store.
func WithRole(role string) Option {
	return func(s *settings) { s.assign.Role = role }
}

// WithoutProtection makes Build and Update bypass the mass-assignment
// allow-list check in the store.
func WithoutProtection() Option {
	return func(s *settings) { s.assign.Unprotected = true }
}

// WithFormats sets the accepted response formats for the given actions,
// or for every action when none are named.
func WithFormats(formats render.Format, actions ...Action) Option {
	return func(s *settings) {
		if len(actions) == 0 {
			actions = AllActions
		}
		for _, a := range actions {
			s.formats[a] = formats
		}
	}
}

// WithLocations overrides the redirect targets after successful writes.
// resource receives the written record's id; nil keeps the default.
// Empty collection keeps the default.
func WithLocations(resource func(id string) string, collection string) Option {
	return func(s *settings) {
		if resource != nil {
			s.resource = resource
		}
		if collection != "" {
			s.collection = collection
		}
	}
}

// WithNotices overrides the localized flash message templates. Empty
// fields keep the defaults.
func WithNotices(n Notices) Option {
	return func(s *settings) {
		if n.Created != "" {
			s.notices.Created = n.Created
		}
		if n.Updated != "" {
			s.notices.Updated = n.Updated
		}
		if n.Destroyed != "" {
			s.notices.Destroyed = n.Destroyed
		}
		if n.DestroyFailed != "" {
			s.notices.DestroyFailed = n.DestroyFailed
		}
	}
}

// WithCache enables the representation cache for XML and JSON reads.
// Writes invalidate the affected entries.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *settings) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// notice formats one of the Notices templates with the human name.
func (s *settings) notice(tmpl string, name Name) string {
	return fmt.Sprintf(tmpl, name.Human)
}
