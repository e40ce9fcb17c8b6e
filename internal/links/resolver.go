// Package links expands hypermedia link templates into concrete URLs.
package links

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jtacoma/uritemplates"

	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

var (
	expressionPattern = regexp.MustCompile(`\{([^{}]*)\}`)
	varnamePattern    = regexp.MustCompile(`^[A-Za-z0-9_.%]+$`)
)

// operators that make an expression optional.
const operators = "+#./;?&"

type variable struct {
	name     string
	required bool
}

// Template is a parsed link template.
type Template struct {
	raw  string
	tmpl *uritemplates.UriTemplate
	vars []variable
}

// Parse parses an RFC 6570 template. Simple expressions ({id}) are required
// at expansion time; operator expressions ({/id}, {?skip,take}) are optional.
func Parse(raw string) (*Template, error) {
	if strings.Count(raw, "{") != strings.Count(raw, "}") {
		return nil, malformed(raw, "unbalanced braces")
	}

	t := &Template{raw: raw}

	for _, match := range expressionPattern.FindAllStringSubmatch(raw, -1) {
		expr := match[1]
		if expr == "" {
			return nil, malformed(raw, "empty expression")
		}

		required := !strings.ContainsRune(operators, rune(expr[0]))
		if !required {
			expr = expr[1:]
		}

		for _, spec := range strings.Split(expr, ",") {
			name := strings.TrimSuffix(spec, "*")
			if i := strings.IndexByte(name, ':'); i >= 0 {
				name = name[:i]
			}

			if !varnamePattern.MatchString(name) {
				return nil, malformed(raw, fmt.Sprintf("invalid variable %q", spec))
			}

			t.vars = append(t.vars, variable{name: name, required: required})
		}
	}

	tmpl, err := uritemplates.Parse(raw)
	if err != nil {
		return nil, malformed(raw, err.Error())
	}

	t.tmpl = tmpl

	return t, nil
}

func malformed(raw, reason string) error {
	return deploy.NewError(deploy.Fatal, fmt.Errorf("%w %q: %s", deploy.ErrMalformedTemplate, raw, reason))
}

// String returns the raw template.
func (t *Template) String() string {
	return t.raw
}

// Has reports whether the template advertises the named variable.
func (t *Template) Has(name string) bool {
	for _, v := range t.vars {
		if v.name == name {
			return true
		}
	}

	return false
}

// Variables returns the variable names in template order.
func (t *Template) Variables() []string {
	names := make([]string, 0, len(t.vars))
	for _, v := range t.vars {
		names = append(names, v.name)
	}

	return names
}

// Expand substitutes params into the template. Empty values are treated as
// absent.
func (t *Template) Expand(params map[string]interface{}) (string, error) {
	values := make(map[string]interface{}, len(params))

	for name, value := range params {
		if normalized, ok := normalize(value); ok {
			values[name] = normalized
		}
	}

	for _, v := range t.vars {
		if _, ok := values[v.name]; v.required && !ok {
			return "", deploy.NewError(deploy.Fatal,
				fmt.Errorf("%w: %q in %q", deploy.ErrMissingParameter, v.name, t.raw))
		}
	}

	expanded, err := t.tmpl.Expand(values)
	if err != nil {
		return "", malformed(t.raw, err.Error())
	}

	return expanded, nil
}

func normalize(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		return v, v != ""
	case []string:
		if len(v) == 0 {
			return nil, false
		}

		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}

		return out, true
	case []interface{}:
		return v, len(v) > 0
	default:
		return fmt.Sprint(v), true
	}
}

// IsLink reports whether identifier is a link rather than a bare identifier.
func IsLink(identifier string) bool {
	return strings.HasPrefix(identifier, "/") ||
		strings.HasPrefix(identifier, "~/") ||
		strings.Contains(identifier, "://")
}

// Resolver resolves relations against link sets, caching parsed templates.
// It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewResolver creates a resolver.
func NewResolver() *Resolver {
	return &Resolver{templates: make(map[string]*Template)}
}

// Template returns the parsed template for rel.
func (r *Resolver) Template(links deploy.Links, rel string) (*Template, error) {
	raw, ok := links.Href(rel)
	if !ok {
		return nil, deploy.NewError(deploy.Fatal, fmt.Errorf("%w: %s", deploy.ErrUnknownRelation, rel))
	}

	r.mu.RLock()
	t, ok := r.templates[raw]
	r.mu.RUnlock()

	if ok {
		return t, nil
	}

	t, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.templates[raw] = t
	r.mu.Unlock()

	return t, nil
}

// Resolve expands the template registered for rel with params.
func (r *Resolver) Resolve(links deploy.Links, rel string, params map[string]interface{}) (string, error) {
	t, err := r.Template(links, rel)
	if err != nil {
		return "", err
	}

	return t.Expand(params)
}

// Supports reports whether rel exists and advertises param.
func (r *Resolver) Supports(links deploy.Links, rel, param string) bool {
	t, err := r.Template(links, rel)
	if err != nil {
		return false
	}

	return t.Has(param)
}
