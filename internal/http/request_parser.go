// Package http provides the HTTP server, pages and JSON API.
//
// This file implements parsing of query parameters and request bodies.
// Bodies may be JSON objects or form-encoded.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"habitual/internal/core"
)

// maxBodyBytes bounds every parsed request body.
const maxBodyBytes = 64 << 10

var errBodyNotObject = errors.New("JSON body must be an object")

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters. Missing,
// non-numeric or out-of-range values fall back to today's year and month.
func ParseMonthParams(query url.Values, today core.Date) MonthParams {
	return MonthParams{
		Year:  ParseYearParam(query, today),
		Month: intParam(query, "month", 1, 12, today.Month()),
	}
}

// ParseYearParam extracts the year query parameter with today's year as default.
func ParseYearParam(query url.Values, today core.Date) int {
	return intParam(query, "year", 1, 9999, today.Year())
}

func intParam(query url.Values, key string, min, max, fallback int) int {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return fallback
	}
	return n
}

// ParseOptionalDate parses an optional ISO date. Empty means nil.
func ParseOptionalDate(s string) (*core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := core.ParseISODate(s)
	if err != nil {
		return nil, core.InvalidInput(err.Error())
	}
	return &d, nil
}

// RequestBodyParser handles JSON and form-encoded request bodies.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the (size-limited) body once and stores it
// for subsequent parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || trimmed[0] == '{' || trimmed[0] == '[' {
		if trimmed[0] != '{' {
			p.err = errBodyNotObject
			return p.err
		}
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Has reports whether key was supplied, even with an empty or null value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns a trimmed, sanitized string value.
func (p *RequestBodyParser) Get(key string) string {
	return strings.TrimSpace(p.Text(key))
}

// Text returns a sanitized value with surrounding whitespace preserved.
func (p *RequestBodyParser) Text(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Bool interprets a value as a flag: booleans as is, and the strings or
// numbers 1, true, yes and on as true. Everything else is false.
func (p *RequestBodyParser) Bool(key string) bool {
	return truthy(p.Get(key))
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and carriage return.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// wantsJSON reports whether the client asked for a JSON response.
func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}
