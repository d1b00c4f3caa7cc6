// Package render handles response format negotiation and rendering for
// resource controllers. Formats are declared per action; negotiation
// considers the path extension first, then the Accept header, and
// defaults to HTML.
package render

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html/template"
	"net/http"
	"strings"
)

// Format identifies one response representation.
type Format int

const (
	FormatHTML Format = 1 << iota
	FormatXML
	FormatJSON
)

// FormatAll accepts every supported format.
const FormatAll = FormatHTML | FormatXML | FormatJSON

// String returns the conventional short name of the format.
func (f Format) String() string {
	switch f {
	case FormatHTML:
		return "html"
	case FormatXML:
		return "xml"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ContentType returns the Content-Type header value for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXML:
		return "application/xml; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	default:
		return "text/html; charset=utf-8"
	}
}

// TrimExtension strips a recognized format extension from an id path
// segment, returning the bare id. "42.xml" becomes "42".
func TrimExtension(segment string) string {
	for _, ext := range []string{".xml", ".json", ".html"} {
		if strings.HasSuffix(segment, ext) {
			return strings.TrimSuffix(segment, ext)
		}
	}
	return segment
}

// Negotiate picks the response format for the request out of the accepted
// set. Path extension wins over the Accept header. Returns false when
// neither the extension nor any acceptable media type is in the set.
func Negotiate(r *http.Request, accepted Format) (Format, bool) {
	if f, ok := extensionFormat(r.URL.Path); ok {
		return f, accepted&f != 0
	}
	accept := r.Header.Get("Accept")
	if accept == "" || strings.Contains(accept, "*/*") {
		return defaultFormat(accepted), true
	}
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		switch mediaType {
		case "text/html", "application/xhtml+xml":
			if accepted&FormatHTML != 0 {
				return FormatHTML, true
			}
		case "application/xml", "text/xml":
			if accepted&FormatXML != 0 {
				return FormatXML, true
			}
		case "application/json", "text/javascript", "application/javascript":
			if accepted&FormatJSON != 0 {
				return FormatJSON, true
			}
		}
	}
	return defaultFormat(accepted), false
}

func extensionFormat(path string) (Format, bool) {
	switch {
	case strings.HasSuffix(path, ".xml"):
		return FormatXML, true
	case strings.HasSuffix(path, ".json"):
		return FormatJSON, true
	case strings.HasSuffix(path, ".html"):
		return FormatHTML, true
	}
	return 0, false
}

func defaultFormat(accepted Format) Format {
	for _, f := range []Format{FormatHTML, FormatXML, FormatJSON} {
		if accepted&f != 0 {
			return f
		}
	}
	return FormatHTML
}

// HTML executes the named template from the set with the given data and
// writes it with the status code. Template errors after headers are sent
// cannot change the status; they are returned for logging.
func HTML(w http.ResponseWriter, status int, tmpl *template.Template, name string, data any) error {
	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render template %s: %w", name, err)
	}
	w.Header().Set("Content-Type", FormatHTML.ContentType())
	w.WriteHeader(status)
	_, err := w.Write([]byte(buf.String()))
	return err
}

// XMLBytes marshals v into an XML document with header.
func XMLBytes(v any) ([]byte, error) {
	raw, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render xml: %w", err)
	}
	return append([]byte(xml.Header), raw...), nil
}

// XMLCollectionBytes marshals items into an XML document wrapped in a
// root element named after the collection. Each item is marshaled with
// its own element name, matching the serialized form of a single record.
func XMLCollectionBytes(root string, items []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	start := xml.StartElement{Name: xml.Name{Local: root}}
	if err := enc.EncodeToken(start); err != nil {
		return nil, fmt.Errorf("render xml collection: %w", err)
	}
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, fmt.Errorf("render xml collection: %w", err)
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return nil, fmt.Errorf("render xml collection: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("render xml collection: %w", err)
	}
	return buf.Bytes(), nil
}

// JSONBytes encodes v as JSON with a trailing newline.
func JSONBytes(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return buf.Bytes(), nil
}

// XML marshals v with an XML header and writes it with the status code.
func XML(w http.ResponseWriter, status int, v any) error {
	body, err := XMLBytes(v)
	if err != nil {
		return err
	}
	return WriteBytes(w, status, FormatXML, body)
}

// JSON encodes v and writes it with the status code.
func JSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", FormatJSON.ContentType())
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteBytes writes a pre-rendered representation, used when serving from
// the representation cache.
func WriteBytes(w http.ResponseWriter, status int, f Format, body []byte) error {
	w.Header().Set("Content-Type", f.ContentType())
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}
