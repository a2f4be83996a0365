// Package screening rejects request input that looks like script injection
// or SQL injection before it reaches a handler.
//
// The checks are deliberately coarse: ordinary HTML such as <h1>Hello</h1>
// passes, while script tags, javascript: URIs, inline event handlers and a
// short list of SQL fragments are refused. Every string in a JSON body is
// scanned, including nested object keys and array elements, along with
// query values and every segment of the request path. Bodies of any other
// type are scanned as text; only multipart uploads are left to the handler
// that parses them.
package screening

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/ignite/campaign-dashboard/internal/pkg/apperr"
	"github.com/ignite/campaign-dashboard/internal/pkg/httputil"
)

// MaxScanBytes bounds how much of a body is read for scanning.
const MaxScanBytes = 2 << 20

// Pattern is one named suspicious-input rule.
type Pattern struct {
	Name string
	Re   *regexp.Regexp
}

// Patterns is the fixed rule list, checked in order.
var Patterns = []Pattern{
	{"script_tag", regexp.MustCompile(`(?i)<\s*/?\s*script\b`)},
	{"javascript_uri", regexp.MustCompile(`(?i)javascript\s*:`)},
	{"vbscript_uri", regexp.MustCompile(`(?i)vbscript\s*:`)},
	{"inline_handler", regexp.MustCompile(`(?i)<[^>]*\son[a-z]+\s*=`)},
	{"iframe_tag", regexp.MustCompile(`(?i)<\s*iframe\b`)},
	{"union_select", regexp.MustCompile(`(?i)\bunion\b\s+(all\s+)?\bselect\b`)},
	{"drop_table", regexp.MustCompile(`(?i)\bdrop\s+table\b`)},
	{"insert_into", regexp.MustCompile(`(?i)\binsert\s+into\b[\s\S]*\bvalues\b`)},
	{"delete_from", regexp.MustCompile(`(?i)\bdelete\s+from\b`)},
	{"sql_comment", regexp.MustCompile(`;\s*--`)},
	{"quoted_tautology", regexp.MustCompile(`(?i)'\s*or\s*'[^']*'\s*=\s*'`)},
	{"numeric_tautology", regexp.MustCompile(`(?i)\bor\s+1\s*=\s*1\b`)},
}

// Match returns the name of the first pattern s matches.
func Match(s string) (string, bool) {
	for _, p := range Patterns {
		if p.Re.MatchString(s) {
			return p.Name, true
		}
	}
	return "", false
}

// ScanValue walks a decoded JSON value and returns the first match.
func ScanValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return Match(t)
	case map[string]any:
		for k, child := range t {
			if name, ok := Match(k); ok {
				return name, true
			}
			if name, ok := ScanValue(child); ok {
				return name, true
			}
		}
	case []any:
		for _, child := range t {
			if name, ok := ScanValue(child); ok {
				return name, true
			}
		}
	}
	return "", false
}

// ScanJSON decodes body and scans every string in it. Bodies that are not
// JSON are scanned as one string.
func ScanJSON(body []byte) (string, bool) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", false
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return Match(string(body))
	}
	return ScanValue(v)
}

// ScanRequest checks the query string, the path segments and any body that
// is not multipart. The body is restored so handlers can read it again.
func ScanRequest(r *http.Request) (string, error) {
	for _, vals := range r.URL.Query() {
		for _, v := range vals {
			if name, ok := Match(v); ok {
				return name, nil
			}
		}
	}
	// Route parameters are not bound yet when this runs as group
	// middleware, so scan the raw segments instead.
	for _, seg := range strings.Split(r.URL.EscapedPath(), "/") {
		if seg == "" {
			continue
		}
		if u, err := url.PathUnescape(seg); err == nil {
			seg = u
		}
		if name, ok := Match(seg); ok {
			return name, nil
		}
	}

	if r.Body == nil || r.Body == http.NoBody || httputil.IsMultipart(r) {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxScanBytes+1))
	r.Body.Close()
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxScanBytes {
		return "", apperr.Validation(apperr.CodeValidation, "request body too large")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if name, ok := ScanJSON(body); ok {
		return name, nil
	}
	return "", nil
}

// Middleware rejects suspicious requests with 400 suspicious_input.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, err := ScanRequest(r)
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		if name != "" {
			httputil.WriteError(w, r, apperr.Validation(apperr.CodeSuspiciousInput, "request rejected by input screening (%s)", name))
			return
		}
		next.ServeHTTP(w, r)
	})
}
