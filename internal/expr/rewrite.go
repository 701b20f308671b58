package expr

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Words that look like identifiers but belong to govaluate itself.
var reserved = map[string]struct{}{
	"true":  {},
	"false": {},
	"in":    {},
}

// rewrite scans source outside of string literals, records every variable
// reference (identifier plus optional .field/[idx] accessor chain) and
// replaces accessor chains with flat synthetic variable names so the result
// parses as a plain govaluate expression.
func rewrite(source string) (string, []ref, error) {
	var (
		out  strings.Builder
		refs []ref
		seen = make(map[string]struct{})
	)
	i := 0
	for i < len(source) {
		c := source[i]

		// Skip string literals untouched.
		if c == '\'' || c == '"' {
			end, err := scanString(source, i)
			if err != nil {
				return "", nil, err
			}
			out.WriteString(source[i:end])
			i = end
			continue
		}

		// Skip numeric literals so 5e3 is not read as an identifier.
		if c >= '0' && c <= '9' {
			end := scanNumber(source, i)
			out.WriteString(source[i:end])
			i = end
			continue
		}

		if !isIdentStart(c) {
			out.WriteByte(c)
			i++
			continue
		}

		name, path, end, err := scanRef(source, i)
		if err != nil {
			return "", nil, err
		}
		if _, ok := reserved[name]; ok && len(path) == 0 {
			out.WriteString(name)
			i = end
			continue
		}
		// A bare identifier followed by '(' is a function call.
		if len(path) == 0 && nextNonSpace(source, end) == '(' {
			out.WriteString(name)
			i = end
			continue
		}

		r := ref{root: name, path: path, flat: flatten(name, path)}
		if _, dup := seen[r.flat]; !dup {
			seen[r.flat] = struct{}{}
			refs = append(refs, r)
		}
		out.WriteString(r.flat)
		i = end
	}
	return out.String(), refs, nil
}

// scanRef reads an identifier and its accessor chain starting at i and
// returns the root name, the parsed path, and the index past the chain.
func scanRef(s string, i int) (string, []accessor, int, error) {
	start := i
	for i < len(s) && isIdentPart(s[i]) {
		i++
	}
	name := s[start:i]

	var path []accessor
	for i < len(s) {
		switch {
		case s[i] == '.' && i+1 < len(s) && isIdentStart(s[i+1]):
			j := i + 1
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			path = append(path, accessor{field: s[i+1 : j]})
			i = j
		case s[i] == '[':
			j := i + 1
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			if j == i+1 || j >= len(s) || s[j] != ']' {
				return "", nil, 0, errors.Errorf("bad index accessor after %q", s[start:i])
			}
			idx, _ := strconv.Atoi(s[i+1 : j])
			path = append(path, accessor{index: idx, isIdx: true})
			i = j + 1
		default:
			return name, path, i, nil
		}
	}
	return name, path, i, nil
}

func scanString(s string, i int) (int, error) {
	quote := s[i]
	j := i + 1
	for j < len(s) {
		if s[j] == '\\' {
			j += 2
			continue
		}
		if s[j] == quote {
			return j + 1, nil
		}
		j++
	}
	return 0, errors.Errorf("unterminated string starting at offset %d", i)
}

func scanNumber(s string, i int) int {
	j := i
	for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
		j++
	}
	if j < len(s) && (s[j] == 'e' || s[j] == 'E') {
		k := j + 1
		if k < len(s) && (s[k] == '+' || s[k] == '-') {
			k++
		}
		for k < len(s) && s[k] >= '0' && s[k] <= '9' {
			k++
		}
		if k > j+1 {
			j = k
		}
	}
	return j
}

func nextNonSpace(s string, i int) byte {
	for i < len(s) {
		if s[i] != ' ' && s[i] != '\t' {
			return s[i]
		}
		i++
	}
	return 0
}

func flatten(name string, path []accessor) string {
	if len(path) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	for _, acc := range path {
		b.WriteByte('_')
		if acc.isIdx {
			b.WriteString(strconv.Itoa(acc.index))
		} else {
			b.WriteString(acc.field)
		}
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
