package param

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scpid/scpid/internal/scpierr"
)

func checkRange(b Binding) error {
	f, err := strconv.ParseFloat(b.Cooked, 64)
	if err != nil {
		return scpierr.NewFormatViolation(b.Param.Name, b.Cooked, "not numeric")
	}
	if f < b.Param.Range.Min || f > b.Param.Range.Max {
		return scpierr.NewRangeViolation(b.Param.Name, b.Cooked,
			strconv.FormatFloat(b.Param.Range.Min, 'g', -1, 64),
			strconv.FormatFloat(b.Param.Range.Max, 'g', -1, 64))
	}
	return nil
}

func checkEnum(b Binding) error {
	for _, allowed := range b.Param.Enum {
		if strings.EqualFold(allowed, b.Cooked) {
			return nil
		}
	}
	return scpierr.NewEnumViolation(b.Param.Name, b.Cooked, b.Param.Enum)
}

// ToValue converts a Binding's cooked text to a typed Go value
// according to its parameter's declared Type (spec.md §4.3 step 5,
// the "object" form).
func ToValue(b Binding) (any, error) {
	switch b.Param.Type {
	case TypeBoolean:
		v, err := strconv.ParseBool(b.Cooked)
		if err != nil {
			return nil, scpierr.NewFormatViolation(b.Param.Name, b.Cooked, "not a boolean")
		}
		return v, nil
	case TypeInteger:
		v, err := strconv.ParseInt(b.Cooked, 10, 64)
		if err != nil {
			return nil, scpierr.NewFormatViolation(b.Param.Name, b.Cooked, "not an integer")
		}
		return v, nil
	case TypeReal:
		v, err := strconv.ParseFloat(b.Cooked, 64)
		if err != nil {
			return nil, scpierr.NewFormatViolation(b.Param.Name, b.Cooked, "not a real number")
		}
		return v, nil
	case TypeListOfStrings:
		sep := b.Param.Split.Separator
		if sep == "" {
			sep = ","
		}
		parts := strings.Split(b.Cooked, sep)
		if b.Param.Split.Min > 0 && len(parts) < b.Param.Split.Min {
			return nil, scpierr.NewTooFewRepeats(b.Param.Name, len(parts), b.Param.Split.Min)
		}
		if b.Param.Split.Max > 0 && len(parts) > b.Param.Split.Max {
			return nil, scpierr.NewTooManyRepeats(b.Param.Name, len(parts), b.Param.Split.Max)
		}
		return parts, nil
	case TypeEnumeration, TypeString, TypeLookup:
		return b.Cooked, nil
	case TypeTuple:
		return struct {
			Option string
			Value  string
			Raw    string
		}{b.Option, b.Cooked, b.Raw}, nil
	default:
		return nil, fmt.Errorf("unknown parameter type for %s", b.Param.Name)
	}
}

// ToString is the inverse of ToValue, used by output formatting
// (spec.md §4.3 "Output formatting (inverse)").
func ToString(p Parameter, v any) string {
	if p.Format != "" {
		return fmt.Sprintf(p.Format, v)
	}
	switch t := v.(type) {
	case []string:
		sep := p.Split.Separator
		if sep == "" {
			sep = ","
		}
		return strings.Join(t, sep)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", t)
	}
}
