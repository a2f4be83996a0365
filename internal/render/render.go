// Package render substitutes {{placeholder}} tokens in template subjects and
// bodies with per-recipient values.
//
// Substitution is literal: every {{key}} whose key is present in the
// variable map is replaced by its value, and any other token is left exactly
// as written. The same rule is what the provider applies to batch
// substitutions, so rendering locally and rendering upstream agree byte for
// byte.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/osteele/liquid"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

var placeholderRe = regexp.MustCompile(`\{\{([A-Za-z0-9_.\-]+)\}\}`)

var engine = liquid.NewEngine()

// Render replaces every {{key}} in text with vars[key]. Keys absent from
// vars are left verbatim. A nil map returns text unchanged.
func Render(text string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(tok string) string {
		key := tok[2 : len(tok)-2]
		if v, ok := vars[key]; ok {
			return v
		}
		return tok
	})
}

// Placeholders returns the distinct keys referenced in text, in order of
// first appearance.
func Placeholders(text string) []string {
	matches := placeholderRe.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}

// Missing returns the placeholders in text that vars does not define.
func Missing(text string, vars map[string]string) []string {
	var out []string
	for _, k := range Placeholders(text) {
		if _, ok := vars[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// Validate reports template syntax errors such as an unclosed {% if %} or
// a stray {{ without its closing braces.
func Validate(text string) error {
	if _, err := engine.ParseString(text); err != nil {
		return fmt.Errorf("render: invalid template: %w", err)
	}
	return nil
}

// ContactVariables builds the variable map for one recipient. extra values
// win over the derived ones.
//
//	nome, first_name                 first word of the display name
//	nome_completo, name, full_name   full display name
//	email                            address
func ContactVariables(c domain.Contact, extra map[string]string) map[string]string {
	full := strings.TrimSpace(c.DisplayName)
	first := ""
	if fields := strings.Fields(full); len(fields) > 0 {
		first = fields[0]
	} else if at := strings.Index(c.Email, "@"); at > 0 {
		first = c.Email[:at]
	}

	vars := map[string]string{
		"nome":          first,
		"first_name":    first,
		"nome_completo": full,
		"name":          full,
		"full_name":     full,
		"email":         c.Email,
	}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}
