// Package render substitutes {{ variable }} placeholders in template text.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/promptledger/PromptLedger/internal/models"
)

const (
	startTag = "{{"
	endTag   = "}}"
)

// Render replaces every placeholder with its binding. Dotted names walk nested maps.
// The first unbound placeholder aborts rendering with *models.RenderError.
func Render(templateText string, variables map[string]any) (string, error) {
	tpl, err := fasttemplate.NewTemplate(templateText, startTag, endTag)
	if err != nil {
		return "", models.Validationf("malformed template: %v", err)
	}

	return tpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		name := strings.TrimSpace(tag)
		if name == "" {
			return 0, models.Validationf("empty placeholder")
		}
		value, ok := lookup(variables, name)
		if !ok {
			return 0, &models.RenderError{Variable: name}
		}
		return io.WriteString(w, format(value))
	})
}

// Variables lists the distinct placeholder names in order of first appearance.
func Variables(templateText string) ([]string, error) {
	tpl, err := fasttemplate.NewTemplate(templateText, startTag, endTag)
	if err != nil {
		return nil, models.Validationf("malformed template: %v", err)
	}
	seen := make(map[string]struct{})
	var names []string
	_, err = tpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		name := strings.TrimSpace(tag)
		if _, ok := seen[name]; !ok && name != "" {
			seen[name] = struct{}{}
			names = append(names, name)
		}
		return 0, nil
	})
	return names, err
}

func lookup(variables map[string]any, name string) (any, bool) {
	if v, ok := variables[name]; ok {
		return v, true
	}
	parts := strings.Split(name, ".")
	if len(parts) == 1 {
		return nil, false
	}
	var current any = variables
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// format writes numbers without exponents and nested maps or lists as JSON.
func format(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
