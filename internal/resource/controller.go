// Package resource implements a generic resource controller: the seven
// conventional CRUD actions for any store satisfying the record protocol,
// with declarative configuration for action sets, response formats, role
// and mass-assignment handling, and redirect targets.
package resource

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/restkit/scaffold/internal/flash"
	"github.com/restkit/scaffold/internal/observability"
	"github.com/restkit/scaffold/internal/render"
)

// Controller serves the conventional CRUD actions for one resource type.
// Configuration is fixed at construction; handlers hold no mutable state
// beyond the store they delegate to.
type Controller[R Record] struct {
	name      Name
	store     Store[R]
	scoped    Scoped[R] // nil when the store has no scope hook
	templates *template.Template
	logger    *zap.Logger
	settings
}

// ViewData is the payload passed to HTML templates.
type ViewData struct {
	Name    Name
	Flash   flash.Data
	Record  any
	Records any
	Errors  Errors
}

// NewController builds a controller for the named resource. templates must
// contain "{plural}/{action}" templates for the enabled HTML read actions
// and forms. The store's optional Scope hook is picked up here; when
// absent, index lists unscoped.
func NewController[R Record](name Name, store Store[R], templates *template.Template, logger *zap.Logger, opts ...Option) *Controller[R] {
	c := &Controller[R]{
		name:      name,
		store:     store,
		templates: templates,
		logger:    logger,
		settings:  defaultSettings(name),
	}
	for _, opt := range opts {
		opt(&c.settings)
	}
	if sc, ok := any(store).(Scoped[R]); ok {
		c.scoped = sc
	}
	return c
}

// Mount registers routes for the enabled actions on the router. The new
// route is registered before the id route so "new" is never taken as an id.
func (c *Controller[R]) Mount(router *mux.Router) {
	p := "/" + c.name.Plural
	if c.actions[ActionIndex] {
		router.HandleFunc(p, c.Index).Methods("GET")
		router.HandleFunc(p+".xml", c.Index).Methods("GET")
		router.HandleFunc(p+".json", c.Index).Methods("GET")
	}
	if c.actions[ActionNew] {
		router.HandleFunc(p+"/new", c.New).Methods("GET")
	}
	if c.actions[ActionEdit] {
		router.HandleFunc(p+"/{id}/edit", c.Edit).Methods("GET")
	}
	if c.actions[ActionShow] {
		router.HandleFunc(p+"/{id}", c.Show).Methods("GET")
	}
	if c.actions[ActionCreate] {
		router.HandleFunc(p, c.Create).Methods("POST")
	}
	if c.actions[ActionUpdate] {
		router.HandleFunc(p+"/{id}", c.Update).Methods("PUT", "PATCH")
	}
	if c.actions[ActionDestroy] {
		router.HandleFunc(p+"/{id}", c.Destroy).Methods("DELETE")
	}
}

// Index lists the collection, through the store's scope hook when present.
func (c *Controller[R]) Index(w http.ResponseWriter, r *http.Request) {
	f, ok := c.negotiate(w, r, ActionIndex)
	if !ok {
		return
	}
	// A scope hook varies the listing per request, so the index
	// representation is only cached for unscoped stores.
	cacheable := c.scoped == nil
	if cacheable && c.serveCached(w, r, ActionIndex, "index", f) {
		return
	}

	var records []R
	var err error
	if c.scoped != nil {
		records, err = c.scoped.Scope(r.Context(), r)
	} else {
		records, err = c.store.List(r.Context())
	}
	if err != nil {
		c.serverError(w, r, ActionIndex, f, err)
		return
	}

	switch f {
	case render.FormatHTML:
		c.renderHTML(w, r, ActionIndex, http.StatusOK, ViewData{
			Name:    c.name,
			Flash:   flash.Take(w, r),
			Records: records,
		})
	default:
		body, err := c.collectionBytes(records, f)
		if err != nil {
			c.serverError(w, r, ActionIndex, f, err)
			return
		}
		if cacheable {
			c.writeAndCache(w, r, ActionIndex, "index", f, http.StatusOK, body)
		} else {
			_ = render.WriteBytes(w, http.StatusOK, f, body)
		}
	}
	observability.RecordAction(c.name.Plural, string(ActionIndex), f.String(), "success")
}

// Show renders one record.
func (c *Controller[R]) Show(w http.ResponseWriter, r *http.Request) {
	c.renderMember(w, r, ActionShow)
}

// Edit renders the edit form for one record.
func (c *Controller[R]) Edit(w http.ResponseWriter, r *http.Request) {
	c.renderMember(w, r, ActionEdit)
}

// renderMember implements the shared fetch-then-render path of show and edit.
func (c *Controller[R]) renderMember(w http.ResponseWriter, r *http.Request, action Action) {
	f, ok := c.negotiate(w, r, action)
	if !ok {
		return
	}
	id := render.TrimExtension(mux.Vars(r)["id"])
	if action == ActionShow && c.serveCached(w, r, action, id, f) {
		return
	}

	record, err := c.store.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.notFound(w, r, action, f)
			return
		}
		c.serverError(w, r, action, f, err)
		return
	}

	switch f {
	case render.FormatHTML:
		c.renderHTML(w, r, action, http.StatusOK, ViewData{
			Name:   c.name,
			Flash:  flash.Take(w, r),
			Record: record,
		})
	default:
		body, err := recordBytes(record, f)
		if err != nil {
			c.serverError(w, r, action, f, err)
			return
		}
		if action == ActionShow {
			c.writeAndCache(w, r, action, id, f, http.StatusOK, body)
		} else {
			_ = render.WriteBytes(w, http.StatusOK, f, body)
		}
	}
	observability.RecordAction(c.name.Plural, string(action), f.String(), "success")
}

// New renders the form for an unsaved record, built through the store so
// defaults and assignment options apply.
func (c *Controller[R]) New(w http.ResponseWriter, r *http.Request) {
	f, ok := c.negotiate(w, r, ActionNew)
	if !ok {
		return
	}
	record, err := c.store.Build(r.Context(), Attrs{}, c.assign)
	if err != nil {
		c.serverError(w, r, ActionNew, f, err)
		return
	}

	switch f {
	case render.FormatHTML:
		c.renderHTML(w, r, ActionNew, http.StatusOK, ViewData{
			Name:   c.name,
			Flash:  flash.Take(w, r),
			Record: record,
		})
	default:
		body, err := recordBytes(record, f)
		if err != nil {
			c.serverError(w, r, ActionNew, f, err)
			return
		}
		_ = render.WriteBytes(w, http.StatusOK, f, body)
	}
	observability.RecordAction(c.name.Plural, string(ActionNew), f.String(), "success")
}

// Create builds a record from the submitted attributes and saves it,
// then executes the write policy for the outcome.
func (c *Controller[R]) Create(w http.ResponseWriter, r *http.Request) {
	f, ok := c.negotiate(w, r, ActionCreate)
	if !ok {
		return
	}
	attrs, err := parseAttrs(r)
	if err != nil {
		c.badRequest(w, r, ActionCreate, f, err)
		return
	}

	record, err := c.store.Build(r.Context(), attrs, c.assign)
	if err != nil {
		c.serverError(w, r, ActionCreate, f, err)
		return
	}
	saved, err := c.store.Save(r.Context(), record)
	if err != nil {
		c.serverError(w, r, ActionCreate, f, err)
		return
	}
	c.finishWrite(w, r, ActionCreate, f, record, saved)
}

// Update fetches the record, applies the submitted attributes, then
// executes the write policy for the outcome.
func (c *Controller[R]) Update(w http.ResponseWriter, r *http.Request) {
	f, ok := c.negotiate(w, r, ActionUpdate)
	if !ok {
		return
	}
	id := render.TrimExtension(mux.Vars(r)["id"])
	record, err := c.store.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.notFound(w, r, ActionUpdate, f)
			return
		}
		c.serverError(w, r, ActionUpdate, f, err)
		return
	}
	attrs, err := parseAttrs(r)
	if err != nil {
		c.badRequest(w, r, ActionUpdate, f, err)
		return
	}

	updated, err := c.store.Update(r.Context(), record, attrs, c.assign)
	if err != nil {
		c.serverError(w, r, ActionUpdate, f, err)
		return
	}
	c.finishWrite(w, r, ActionUpdate, f, record, updated)
}

// Destroy fetches and destroys the record, then executes the write
// policy: redirect to the collection in both outcomes, success notice
// only when the destroy reported success, error alert otherwise.
func (c *Controller[R]) Destroy(w http.ResponseWriter, r *http.Request) {
	f, ok := c.negotiate(w, r, ActionDestroy)
	if !ok {
		return
	}
	id := render.TrimExtension(mux.Vars(r)["id"])
	record, err := c.store.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.notFound(w, r, ActionDestroy, f)
			return
		}
		c.serverError(w, r, ActionDestroy, f, err)
		return
	}

	destroyed, err := c.store.Destroy(r.Context(), record)
	if err != nil {
		c.serverError(w, r, ActionDestroy, f, err)
		return
	}
	c.finishWrite(w, r, ActionDestroy, f, record, destroyed)
}

// finishWrite executes the write policy row for the action and outcome.
func (c *Controller[R]) finishWrite(w http.ResponseWriter, r *http.Request, action Action, f render.Format, record R, ok bool) {
	d := writePolicy[action][ok]
	outcome := "success"
	if !ok {
		outcome = "invalid"
		observability.RecordWriteFailure(c.name.Plural, string(action))
	} else {
		c.invalidate(r.Context(), record.ID())
	}
	observability.RecordAction(c.name.Plural, string(action), f.String(), outcome)

	if logger := loggerFromContext(r.Context()); logger != nil {
		logger.Debug("write finished",
			zap.String("resource", c.name.Plural),
			zap.String("action", string(action)),
			zap.String("id", record.ID()),
			zap.Bool("ok", ok))
	}

	if f == render.FormatHTML {
		c.finishWriteHTML(w, r, d, record)
		return
	}
	c.finishWriteAPI(w, r, action, f, record, ok)
}

// finishWriteHTML redirects with flash on success, re-renders the form
// with validation errors on failure.
func (c *Controller[R]) finishWriteHTML(w http.ResponseWriter, r *http.Request, d disposition, record R) {
	if d.redirect != redirectNone {
		flash.Set(w, flash.Data{
			Notice: c.message(d.notice, c.name),
			Alert:  c.message(d.alert, c.name),
		})
		http.Redirect(w, r, c.redirectLocation(d.redirect, record.ID()), d.status)
		return
	}
	c.renderHTML(w, r, d.rerender, d.status, ViewData{
		Name:   c.name,
		Record: record,
		Errors: record.Errors(),
	})
}

// finishWriteAPI writes the machine-readable outcome: 201 with Location
// for create, 200 for update, 204 for destroy; 422 with the validation
// errors otherwise.
func (c *Controller[R]) finishWriteAPI(w http.ResponseWriter, r *http.Request, action Action, f render.Format, record R, ok bool) {
	if !ok {
		body, err := errorsBytes(record.Errors(), f)
		if err != nil {
			c.serverError(w, r, action, f, err)
			return
		}
		_ = render.WriteBytes(w, http.StatusUnprocessableEntity, f, body)
		return
	}
	switch action {
	case ActionCreate:
		body, err := recordBytes(record, f)
		if err != nil {
			c.serverError(w, r, action, f, err)
			return
		}
		w.Header().Set("Location", c.redirectLocation(redirectResource, record.ID()))
		_ = render.WriteBytes(w, http.StatusCreated, f, body)
	case ActionUpdate:
		body, err := recordBytes(record, f)
		if err != nil {
			c.serverError(w, r, action, f, err)
			return
		}
		_ = render.WriteBytes(w, http.StatusOK, f, body)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// negotiate picks the response format for the action, answering 406 when
// the request asks for a format the action does not offer.
func (c *Controller[R]) negotiate(w http.ResponseWriter, r *http.Request, action Action) (render.Format, bool) {
	f, ok := render.Negotiate(r, c.formats[action])
	if !ok {
		observability.RecordAction(c.name.Plural, string(action), f.String(), "unacceptable")
		http.Error(w, "Not Acceptable", http.StatusNotAcceptable)
		return f, false
	}
	return f, true
}

func (c *Controller[R]) renderHTML(w http.ResponseWriter, r *http.Request, action Action, status int, data ViewData) {
	start := time.Now()
	name := c.name.Plural + "/" + string(action)
	if err := render.HTML(w, status, c.templates, name, data); err != nil {
		c.logger.Error("template render failed",
			zap.String("template", name),
			zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	observability.RenderDuration.WithLabelValues(render.FormatHTML.String()).Observe(time.Since(start).Seconds())
}

// collectionBytes serializes a listing for the non-HTML formats.
func (c *Controller[R]) collectionBytes(records []R, f render.Format) ([]byte, error) {
	start := time.Now()
	defer func() {
		observability.RenderDuration.WithLabelValues(f.String()).Observe(time.Since(start).Seconds())
	}()
	if f == render.FormatJSON {
		return render.JSONBytes(records)
	}
	items := make([]any, len(records))
	for i, rec := range records {
		items[i] = rec
	}
	return render.XMLCollectionBytes(c.name.Plural, items)
}

func recordBytes(record any, f render.Format) ([]byte, error) {
	if f == render.FormatJSON {
		return render.JSONBytes(record)
	}
	return render.XMLBytes(record)
}

// xmlErrorList is the XML shape of a failed write's validation errors.
type xmlErrorList struct {
	XMLName xml.Name `xml:"errors"`
	Errors  []string `xml:"error"`
}

func errorsBytes(errs Errors, f render.Format) ([]byte, error) {
	if f == render.FormatJSON {
		return render.JSONBytes(map[string]Errors{"errors": errs})
	}
	var flat []string
	for attr, messages := range errs {
		for _, m := range messages {
			flat = append(flat, attr+" "+m)
		}
	}
	return render.XMLBytes(xmlErrorList{Errors: flat})
}

// cacheKey builds the representation cache key for one entry.
func (c *Controller[R]) cacheKey(member string, f render.Format) string {
	return c.name.Plural + ":" + member + ":" + f.String()
}

// serveCached writes a cached representation when the cache is enabled
// and holds one. HTML is never cached: it carries flash state.
func (c *Controller[R]) serveCached(w http.ResponseWriter, r *http.Request, action Action, member string, f render.Format) bool {
	if c.cache == nil || f == render.FormatHTML {
		return false
	}
	body, ok, err := c.cache.Get(r.Context(), c.cacheKey(member, f))
	if err != nil {
		c.logger.Warn("representation cache get failed", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	observability.RepresentationCacheHitsTotal.WithLabelValues(f.String()).Inc()
	if logger := loggerFromContext(r.Context()); logger != nil {
		logger.Debug("representation cache hit",
			zap.String("resource", c.name.Plural),
			zap.String("action", string(action)),
			zap.String("format", f.String()))
	}
	_ = render.WriteBytes(w, http.StatusOK, f, body)
	observability.RecordAction(c.name.Plural, string(action), f.String(), "success")
	return true
}

// writeAndCache writes the representation and stores it for later reads.
func (c *Controller[R]) writeAndCache(w http.ResponseWriter, r *http.Request, action Action, member string, f render.Format, status int, body []byte) {
	_ = render.WriteBytes(w, status, f, body)
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(r.Context(), c.cacheKey(member, f), body, c.cacheTTL); err != nil {
		c.logger.Warn("representation cache set failed",
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// invalidate drops the cached representations affected by a write: the
// collection listing and the written record, in every cached format.
func (c *Controller[R]) invalidate(ctx context.Context, id string) {
	if c.cache == nil {
		return
	}
	members := []string{"index"}
	if id != "" {
		members = append(members, id)
	}
	for _, member := range members {
		for _, f := range []render.Format{render.FormatXML, render.FormatJSON} {
			if err := c.cache.Delete(ctx, c.cacheKey(member, f)); err != nil {
				c.logger.Warn("representation cache invalidate failed",
					zap.String("key", c.cacheKey(member, f)),
					zap.Error(err))
			}
		}
	}
}

func (c *Controller[R]) notFound(w http.ResponseWriter, r *http.Request, action Action, f render.Format) {
	observability.RecordAction(c.name.Plural, string(action), f.String(), "not_found")
	c.writeProblem(w, http.StatusNotFound, f, c.name.Human+" not found")
}

func (c *Controller[R]) badRequest(w http.ResponseWriter, r *http.Request, action Action, f render.Format, err error) {
	observability.RecordAction(c.name.Plural, string(action), f.String(), "bad_request")
	if logger := loggerFromContext(r.Context()); logger != nil {
		logger.Debug("bad request", zap.String("action", string(action)), zap.Error(err))
	}
	c.writeProblem(w, http.StatusBadRequest, f, "malformed request body")
}

func (c *Controller[R]) serverError(w http.ResponseWriter, r *http.Request, action Action, f render.Format, err error) {
	observability.RecordAction(c.name.Plural, string(action), f.String(), "error")
	c.logger.Error("store operation failed",
		zap.String("resource", c.name.Plural),
		zap.String("action", string(action)),
		zap.Error(err))
	c.writeProblem(w, http.StatusInternalServerError, f, "Internal Server Error")
}

// xmlProblem is the XML shape of a non-validation error response.
type xmlProblem struct {
	XMLName xml.Name `xml:"error"`
	Message string   `xml:",chardata"`
}

func (c *Controller[R]) writeProblem(w http.ResponseWriter, status int, f render.Format, message string) {
	switch f {
	case render.FormatJSON:
		_ = render.JSON(w, status, map[string]string{"error": message})
	case render.FormatXML:
		_ = render.XML(w, status, xmlProblem{Message: message})
	default:
		http.Error(w, message, status)
	}
}

// parseAttrs extracts the submitted attributes: a decoded JSON object for
// JSON bodies, the posted form otherwise. Nested values are ignored;
// the record protocol deals in flat attributes.
func parseAttrs(r *http.Request) (Attrs, error) {
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode json body: %w", err)
		}
		attrs := make(Attrs, len(raw))
		for name, value := range raw {
			switch v := value.(type) {
			case string:
				attrs[name] = v
			case float64, bool:
				attrs[name] = fmt.Sprint(v)
			}
		}
		return attrs, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	return AttrsFromForm(r.PostForm), nil
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}
