package connector

import (
	"fmt"
	"regexp"
	"strings"
)

var templateFieldPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// URLTemplates are the portal link templates of a connector. Placeholders
// use {field_name} syntax and resolve against row columns or document
// attributes.
type URLTemplates struct {
	portalURL         string
	itemURLTemplate   string
	listURLTemplate   string
	searchURLTemplate string
}

// NewURLTemplates creates URLTemplates.
func NewURLTemplates(portalURL, item, list, search string) URLTemplates {
	return URLTemplates{
		portalURL:         portalURL,
		itemURLTemplate:   item,
		listURLTemplate:   list,
		searchURLTemplate: search,
	}
}

// PortalURL returns the base portal URL.
func (t URLTemplates) PortalURL() string { return t.portalURL }

// ItemURLTemplate returns the per-item link template.
func (t URLTemplates) ItemURLTemplate() string { return t.itemURLTemplate }

// ListURLTemplate returns the listing link template.
func (t URLTemplates) ListURLTemplate() string { return t.listURLTemplate }

// SearchURLTemplate returns the search link template.
func (t URLTemplates) SearchURLTemplate() string { return t.searchURLTemplate }

// Validate checks that each template uses well-formed placeholders.
func (t URLTemplates) Validate() error {
	for _, tpl := range []string{t.itemURLTemplate, t.listURLTemplate, t.searchURLTemplate} {
		if err := checkPlaceholders(tpl); err != nil {
			return err
		}
	}
	return nil
}

// ItemURL resolves the per-item template against row fields, prefixed with
// the portal URL when the template is relative.
func (t URLTemplates) ItemURL(fields map[string]string) (string, error) {
	if t.itemURLTemplate == "" {
		return "", nil
	}
	resolved, err := ResolveTemplate(t.itemURLTemplate, fields)
	if err != nil {
		return "", err
	}
	if t.portalURL != "" && !strings.Contains(resolved, "://") {
		return strings.TrimSuffix(t.portalURL, "/") + "/" + strings.TrimPrefix(resolved, "/"), nil
	}
	return resolved, nil
}

// ResolveTemplate substitutes every {field} placeholder in the template.
// A placeholder with no matching field fails the whole template.
func ResolveTemplate(template string, fields map[string]string) (string, error) {
	var missing []string
	resolved := templateFieldPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := fields[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("template %q references missing fields: %s", template, strings.Join(missing, ", "))
	}
	return resolved, nil
}

func checkPlaceholders(template string) error {
	depth := 0
	for _, r := range template {
		switch r {
		case '{':
			depth++
			if depth > 1 {
				return fmt.Errorf("template %q has nested placeholders", template)
			}
		case '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("template %q has unbalanced braces", template)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("template %q has unbalanced braces", template)
	}
	return nil
}
