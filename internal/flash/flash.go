// Package flash implements one-shot notice/alert messages surfaced on the
// next rendered response. Messages are carried in a cookie: set on redirect,
// read and cleared on the next HTML render.
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const cookieName = "_scaffold_flash"

// Data holds the flash messages for one request cycle.
type Data struct {
	Notice string `json:"notice,omitempty"`
	Alert  string `json:"alert,omitempty"`
}

// Any reports whether any message is set.
func (d Data) Any() bool {
	return d.Notice != "" || d.Alert != ""
}

// Set writes the flash cookie on the response. Call before redirecting.
// Empty data clears any pending cookie instead.
func Set(w http.ResponseWriter, d Data) {
	if !d.Any() {
		Clear(w)
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Take reads the pending flash from the request and clears the cookie so
// the message is shown exactly once. Returns the zero Data when no flash
// is pending or the cookie is malformed.
func Take(w http.ResponseWriter, r *http.Request) Data {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Data{}
	}
	Clear(w)
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return Data{}
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}
	}
	return d
}

// Peek reads the pending flash without clearing it. Used by responses
// that do not consume flash (XML, JSON).
func Peek(r *http.Request) Data {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Data{}
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return Data{}
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}
	}
	return d
}

// Clear expires the flash cookie.
func Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
