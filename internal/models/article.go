package models

import (
	"context"
	"encoding/xml"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/restkit/scaffold/internal/resource"
	"github.com/restkit/scaffold/internal/validation"
)

// Article is the demo resource served by the scaffold controller.
type Article struct {
	XMLName   xml.Name  `xml:"article" json:"-"`
	ArticleID string    `xml:"id" json:"id"`
	Title     string    `xml:"title" json:"title"`
	Body      string    `xml:"body" json:"body"`
	Published bool      `xml:"published" json:"published"`
	Locked    bool      `xml:"locked" json:"locked"`
	CreatedAt time.Time `xml:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `xml:"updatedAt" json:"updatedAt"`

	errs resource.Errors
}

// ID implements resource.Record. Empty for unsaved articles.
func (a *Article) ID() string { return a.ArticleID }

// Errors implements resource.Record.
func (a *Article) Errors() resource.Errors {
	if a.errs == nil {
		a.errs = resource.Errors{}
	}
	return a.errs
}

// validate refreshes the article's validation errors and reports validity.
func (a *Article) validate() bool {
	a.errs = resource.Errors{}
	validation.Presence(a.errs, "title", a.Title)
	validation.MaxLength(a.errs, "title", a.Title, 120)
	validation.Presence(a.errs, "body", a.Body)
	return !a.errs.Any()
}

// Attribute allow-lists for mass assignment. The default list covers the
// plain authoring fields; the admin role may also publish and lock.
var (
	defaultAssignable = map[string]bool{"title": true, "body": true}
	adminAssignable   = map[string]bool{"title": true, "body": true, "published": true, "locked": true}
)

// assignable resolves the allow-list for the assignment options.
// Unprotected assignment accepts every known attribute.
func assignable(opts resource.AssignOptions) map[string]bool {
	if opts.Unprotected {
		return adminAssignable
	}
	if opts.Role == "admin" {
		return adminAssignable
	}
	return defaultAssignable
}

// apply copies the allowed attributes onto the article.
func (a *Article) apply(attrs resource.Attrs, opts resource.AssignOptions) {
	allowed := assignable(opts)
	for name, value := range attrs {
		if !allowed[name] {
			continue
		}
		switch name {
		case "title":
			a.Title = value
		case "body":
			a.Body = value
		case "published":
			a.Published, _ = strconv.ParseBool(value)
		case "locked":
			a.Locked, _ = strconv.ParseBool(value)
		}
	}
}

// ArticleStore is an in-memory resource.Store for articles. Safe for
// concurrent use. Find returns a copy so callers can mutate freely; only
// Save and Update commit changes.
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[string]Article
}

// NewArticleStore creates an empty store.
func NewArticleStore() *ArticleStore {
	return &ArticleStore{articles: make(map[string]Article)}
}

// List returns every article ordered by creation time, oldest first.
func (s *ArticleStore) List(ctx context.Context) ([]*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(Article) bool { return true }), nil
}

// Scope narrows the listing to published articles when the request asks
// for ?published=true. Without the parameter the listing is unscoped.
func (s *ArticleStore) Scope(ctx context.Context, r *http.Request) ([]*Article, error) {
	if r.URL.Query().Get("published") != "true" {
		return s.List(ctx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(a Article) bool { return a.Published }), nil
}

// collect copies matching articles in deterministic order. Callers hold the lock.
func (s *ArticleStore) collect(match func(Article) bool) []*Article {
	out := make([]*Article, 0, len(s.articles))
	for _, a := range s.articles {
		if match(a) {
			copied := a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ArticleID < out[j].ArticleID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Find returns a copy of the article or resource.ErrNotFound.
func (s *ArticleStore) Find(ctx context.Context, id string) (*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, resource.ErrNotFound
	}
	copied := a
	return &copied, nil
}

// Build constructs an unsaved article from the attributes, respecting the
// assignment options.
func (s *ArticleStore) Build(ctx context.Context, attrs resource.Attrs, opts resource.AssignOptions) (*Article, error) {
	a := &Article{}
	a.apply(attrs, opts)
	return a, nil
}

// Save validates and persists an unsaved article. Returns (false, nil)
// when validation rejects it; the article's Errors carry the details.
func (s *ArticleStore) Save(ctx context.Context, a *Article) (bool, error) {
	if !a.validate() {
		return false, nil
	}
	now := time.Now().UTC()
	if a.ArticleID == "" {
		a.ArticleID = uuid.New().String()
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	s.mu.Lock()
	s.articles[a.ArticleID] = *a
	s.mu.Unlock()
	return true, nil
}

// Update applies the attributes to the article and persists it when
// valid. On validation failure the article keeps the submitted values
// for form re-rendering but nothing is committed.
func (s *ArticleStore) Update(ctx context.Context, a *Article, attrs resource.Attrs, opts resource.AssignOptions) (bool, error) {
	a.apply(attrs, opts)
	if !a.validate() {
		return false, nil
	}
	a.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[a.ArticleID]; !ok {
		return false, resource.ErrNotFound
	}
	s.articles[a.ArticleID] = *a
	return true, nil
}

// Destroy removes the article. Locked articles refuse destruction and
// report (false, nil) with an explanatory validation error.
func (s *ArticleStore) Destroy(ctx context.Context, a *Article) (bool, error) {
	if a.Locked {
		a.errs = resource.Errors{}
		a.errs.Add("base", "article is locked")
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.articles, a.ArticleID)
	return true, nil
}
