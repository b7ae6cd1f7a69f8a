package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// varExpr is a compiled `${...}` body: the variable name plus its
// optional operator chain (spec.md §4.1). Compiling once and
// re-applying on each evaluation avoids re-parsing the operator
// grammar inside a loop body that references the same `${...}` many
// times.
//
// Open question resolved (see DESIGN.md): the syntax line in spec.md
// §4.1 lists [subkey] first and the apply-order list last; this
// implementation extracts the subkey first (narrowing a list/map to a
// single string) and applies the remaining operators to that string,
// because replace/slice/alt/ternary are defined in terms of a single
// string value. A variable with no subkey that holds a list broadcasts
// string operators across elements and rejoins with a space, matching
// spec.md §8 scenario 5 (`${x:/bar/baz}` => "foo baz").
type varExpr struct {
	name       string
	lengthOnly bool
	subkey     string
	hasSubkey  bool
	replace    *replaceOp
	slice      *sliceOp
	alt        *altOp
	ternary    *ternaryOp
}

type replaceOp struct {
	search  string
	replace string
	regex   bool
}

type sliceOp struct {
	start, length, step int
	hasStep             bool
}

type altOp struct {
	truthy bool // true => ":+text", false => ":-text"
	text   string
}

type ternaryOp struct {
	ifTrue, ifFalse string
}

// compileVarExpr parses the body of a `${...}` occurrence (everything
// between the braces) into a varExpr.
func compileVarExpr(body string) (*varExpr, error) {
	ve := &varExpr{}
	rest := body

	if strings.HasPrefix(rest, "#") {
		ve.lengthOnly = true
		rest = rest[1:]
	}

	// name runs up to the first operator-introducing character.
	i := 0
	for i < len(rest) {
		c := rest[i]
		if c == '[' || c == '/' || c == ':' || c == '?' {
			break
		}
		i++
	}
	ve.name = rest[:i]
	rest = rest[i:]
	if ve.name == "" {
		return nil, fmt.Errorf("empty variable name")
	}

	for len(rest) > 0 {
		switch rest[0] {
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated [subkey]")
			}
			ve.subkey = rest[1:end]
			ve.hasSubkey = true
			rest = rest[end+1:]
		case '/':
			op, consumed, err := parseReplace(rest)
			if err != nil {
				return nil, err
			}
			ve.replace = op
			rest = rest[consumed:]
		case ':':
			if len(rest) > 1 && (rest[1] == '+' || rest[1] == '-') {
				ve.alt = &altOp{truthy: rest[1] == '+', text: rest[2:]}
				rest = ""
				break
			}
			op, consumed, err := parseSlice(rest)
			if err != nil {
				return nil, err
			}
			ve.slice = op
			rest = rest[consumed:]
		case '?':
			idx := strings.IndexByte(rest, ':')
			if idx < 0 {
				return nil, fmt.Errorf("ternary missing ':'")
			}
			ve.ternary = &ternaryOp{ifTrue: rest[1:idx], ifFalse: rest[idx+1:]}
			rest = ""
		default:
			return nil, fmt.Errorf("unexpected character %q in variable expression", rest[0])
		}
	}
	return ve, nil
}

// parseReplace parses "/search/replace/" possibly with a doubled
// leading slash for regex mode ("//search/replace/").
func parseReplace(s string) (*replaceOp, int, error) {
	regex := false
	rest := s[1:]
	if strings.HasPrefix(rest, "/") {
		regex = true
		rest = rest[1:]
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 {
		return nil, 0, fmt.Errorf("malformed /search/replace/")
	}
	search := parts[0]
	replaceAndTail := parts[1]
	end := strings.IndexByte(replaceAndTail, '/')
	replace := replaceAndTail
	consumed := len(s)
	if end >= 0 {
		replace = replaceAndTail[:end]
		prefixLen := 1
		if regex {
			prefixLen = 2
		}
		consumed = prefixLen + len(search) + 1 + end + 1
	}
	return &replaceOp{search: search, replace: replace, regex: regex}, consumed, nil
}

// parseSlice parses ":start:len:step".
func parseSlice(s string) (*sliceOp, int, error) {
	rest := s[1:]
	fields := strings.SplitN(rest, ":", 3)
	op := &sliceOp{}
	var err error
	if len(fields) > 0 && fields[0] != "" {
		if op.start, err = strconv.Atoi(fields[0]); err != nil {
			return nil, 0, fmt.Errorf("bad slice start: %w", err)
		}
	}
	if len(fields) > 1 && fields[1] != "" {
		if op.length, err = strconv.Atoi(fields[1]); err != nil {
			return nil, 0, fmt.Errorf("bad slice length: %w", err)
		}
	} else {
		op.length = -1
	}
	if len(fields) > 2 && fields[2] != "" {
		if op.step, err = strconv.Atoi(fields[2]); err != nil {
			return nil, 0, fmt.Errorf("bad slice step: %w", err)
		}
		op.hasStep = true
	} else {
		op.step = 1
	}
	consumed := 1
	for i, f := range fields {
		consumed += len(f)
		if i < len(fields)-1 {
			consumed++
		}
	}
	return op, consumed, nil
}

// Eval applies the compiled expression against a resolved Value,
// returning the cooked text for the `${...}` occurrence.
func (ve *varExpr) Eval(v Value, defined bool) (string, error) {
	str, truthy := stringify(v, defined)

	if ve.hasSubkey {
		s, err := applySubkey(v, ve.subkey)
		if err != nil {
			return "", err
		}
		str = s
	}

	if ve.replace != nil {
		str = applyReplace(str, ve.replace)
	}
	if ve.slice != nil {
		str = applySlice(str, ve.slice)
	}
	if ve.alt != nil {
		if ve.alt.truthy == truthy {
			str = ve.alt.text
		}
	}
	if ve.ternary != nil {
		if truthy {
			str = ve.ternary.ifTrue
		} else {
			str = ve.ternary.ifFalse
		}
	}
	if ve.lengthOnly {
		return strconv.Itoa(len([]rune(str))), nil
	}
	return str, nil
}

func stringify(v Value, defined bool) (string, bool) {
	if !defined || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case []string:
		return strings.Join(t, " "), len(t) > 0
	case map[string]string:
		parts := make([]string, 0, len(t))
		for k, val := range t {
			parts = append(parts, k+"="+val)
		}
		return strings.Join(parts, " "), len(t) > 0
	default:
		return fmt.Sprintf("%v", t), true
	}
}

func applySubkey(v Value, key string) (string, error) {
	switch t := v.(type) {
	case []string:
		idx, err := strconv.Atoi(key)
		if err != nil {
			return "", fmt.Errorf("list subkey %q is not an index: %w", key, err)
		}
		if idx < 0 || idx >= len(t) {
			return "", fmt.Errorf("list index %d out of range", idx)
		}
		return t[idx], nil
	case map[string]string:
		val, ok := t[key]
		if !ok {
			return "", fmt.Errorf("no such map key %q", key)
		}
		return val, nil
	case string:
		return t, nil
	default:
		return "", fmt.Errorf("value does not support subkeys")
	}
}

func applyReplace(s string, op *replaceOp) string {
	if op.regex {
		re, err := regexp.Compile(op.search)
		if err != nil {
			return s
		}
		return re.ReplaceAllString(s, op.replace)
	}
	return strings.ReplaceAll(s, op.search, op.replace)
}

func applySlice(s string, op *sliceOp) string {
	r := []rune(s)
	n := len(r)
	start := op.start
	if start < 0 {
		start += n
	}
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	length := op.length
	if length < 0 {
		length = n - start
	}
	end := start + length
	if end > n {
		end = n
	}
	if end < start {
		end = start
	}
	if op.step <= 1 {
		return string(r[start:end])
	}
	var b strings.Builder
	for i := start; i < end; i += op.step {
		b.WriteRune(r[i])
	}
	return b.String()
}
