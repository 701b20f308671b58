package expr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Template is a compiled log template. Placeholders are {name} or
// {name:format-spec}; name may carry the same .field/[idx] accessors as
// expressions, and the spec is a Sprintf verb with or without the leading %
// (".2f" and "%.2f" both work). {{ and }} escape literal braces.
type Template struct {
	source string
	parts  []templatePart
}

type templatePart struct {
	literal string
	ref     ref
	spec    string
	isRef   bool
}

// CompileTemplate parses source at load time; malformed placeholders are
// *SyntaxError.
func CompileTemplate(source string) (*Template, error) {
	t := &Template{source: source}
	var lit strings.Builder
	i := 0
	for i < len(source) {
		switch {
		case strings.HasPrefix(source[i:], "{{"):
			lit.WriteByte('{')
			i += 2
		case strings.HasPrefix(source[i:], "}}"):
			lit.WriteByte('}')
			i += 2
		case source[i] == '{':
			end := strings.IndexByte(source[i:], '}')
			if end < 0 {
				return nil, &SyntaxError{Source: source, Err: errors.New("unclosed placeholder")}
			}
			body := source[i+1 : i+end]
			name, spec := body, ""
			if colon := strings.IndexByte(body, ':'); colon >= 0 {
				name, spec = body[:colon], body[colon+1:]
			}
			r, err := parsePlaceholderRef(name)
			if err != nil {
				return nil, &SyntaxError{Source: source, Err: err}
			}
			if lit.Len() > 0 {
				t.parts = append(t.parts, templatePart{literal: lit.String()})
				lit.Reset()
			}
			t.parts = append(t.parts, templatePart{ref: r, spec: spec, isRef: true})
			i += end + 1
		case source[i] == '}':
			return nil, &SyntaxError{Source: source, Err: errors.New("unmatched '}'")}
		default:
			lit.WriteByte(source[i])
			i++
		}
	}
	if lit.Len() > 0 {
		t.parts = append(t.parts, templatePart{literal: lit.String()})
	}
	return t, nil
}

// Source returns the original template text.
func (t *Template) Source() string { return t.source }

// Vars returns the distinct root task names the template references.
func (t *Template) Vars() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range t.parts {
		if !p.isRef {
			continue
		}
		if _, ok := seen[p.ref.root]; ok {
			continue
		}
		seen[p.ref.root] = struct{}{}
		out = append(out, p.ref.root)
	}
	return out
}

// Render substitutes placeholders from ctx. Formatting problems degrade to
// the value's default representation; a placeholder whose task has no bound
// value is emitted verbatim. Render never fails.
func (t *Template) Render(ctx ExecContext) string {
	var b strings.Builder
	for _, p := range t.parts {
		if !p.isRef {
			b.WriteString(p.literal)
			continue
		}
		rootVal, ok := ctx[p.ref.root]
		if !ok {
			b.WriteString("{" + p.ref.placeholder(p.spec) + "}")
			continue
		}
		v, err := walk(rootVal, p.ref.path)
		if err != nil {
			b.WriteString("{" + p.ref.placeholder(p.spec) + "}")
			continue
		}
		b.WriteString(formatValue(normalize(v), p.spec))
	}
	return b.String()
}

// placeholder reconstructs the placeholder body for verbatim emission.
func (r ref) placeholder(spec string) string {
	var b strings.Builder
	b.WriteString(r.root)
	for _, acc := range r.path {
		if acc.isIdx {
			fmt.Fprintf(&b, "[%d]", acc.index)
		} else {
			b.WriteByte('.')
			b.WriteString(acc.field)
		}
	}
	if spec != "" {
		b.WriteByte(':')
		b.WriteString(spec)
	}
	return b.String()
}

func formatValue(v any, spec string) string {
	if spec == "" {
		return fmt.Sprintf("%v", v)
	}
	verb := spec
	if !strings.HasPrefix(verb, "%") {
		verb = "%" + verb
	}
	s := fmt.Sprintf(verb, v)
	if strings.Contains(s, "%!") {
		// Wrong verb for the value's type: fall back to the raw representation.
		return fmt.Sprintf("%v", v)
	}
	return s
}

// parsePlaceholderRef parses exactly one identifier with accessors.
func parsePlaceholderRef(s string) (ref, error) {
	if s == "" || !isIdentStart(s[0]) {
		return ref{}, errors.Errorf("bad placeholder name %q", s)
	}
	name, path, end, err := scanRef(s, 0)
	if err != nil {
		return ref{}, err
	}
	if end != len(s) {
		return ref{}, errors.Errorf("bad placeholder name %q", s)
	}
	return ref{root: name, path: path, flat: flatten(name, path)}, nil
}
