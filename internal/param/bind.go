package param

import (
	"github.com/scpid/scpid/internal/parser"
	"github.com/scpid/scpid/internal/scpierr"
)

// Binding is a single bound occurrence of a parameter.
type Binding struct {
	Param  Parameter
	Option string
	Cooked string
	Raw    string
}

// Bound is the result of walking a part list against a Partition: one
// ordered slice of Bindings per parameter name (more than one entry
// only for a repeating parameter).
type Bound map[string][]Binding

// Bind implements the binding walk of spec.md §4.3 steps 2-4.
func Bind(leafName string, partition *Partition, parts []parser.Part) (Bound, error) {
	bound := Bound{}
	nextRequired := 0
	nextOptional := 0
	absorbRaw := false

	for _, part := range parts {
		if absorbRaw && partition.RepeatingPositional != nil {
			bound[partition.RepeatingPositional.Name] = append(bound[partition.RepeatingPositional.Name], Binding{
				Param: *partition.RepeatingPositional, Option: part.Option, Cooked: part.Cooked, Raw: part.Raw,
			})
			continue
		}

		if part.Option != "" {
			if p, ok := partition.Named[part.Option]; ok {
				if len(bound[p.Name]) > 0 && !p.Repeating() {
					return nil, scpierr.NewExtraArgument(leafName, part.Raw)
				}
				bound[p.Name] = append(bound[p.Name], Binding{Param: p, Option: part.Option, Cooked: part.Cooked, Raw: part.Raw})
				continue
			}
			if partition.RepeatingNamed != nil {
				bound[partition.RepeatingNamed.Name] = append(bound[partition.RepeatingNamed.Name], Binding{
					Param: *partition.RepeatingNamed, Option: part.Option, Cooked: part.Cooked, Raw: part.Raw,
				})
				continue
			}
			return nil, scpierr.NewNoSuchCommandOption(leafName, part.Option)
		}

		switch {
		case nextRequired < len(partition.PositionalRequired):
			p := partition.PositionalRequired[nextRequired]
			nextRequired++
			bound[p.Name] = append(bound[p.Name], Binding{Param: p, Cooked: part.Cooked, Raw: part.Raw})
		case nextOptional < len(partition.PositionalOptional):
			p := partition.PositionalOptional[nextOptional]
			nextOptional++
			bound[p.Name] = append(bound[p.Name], Binding{Param: p, Cooked: part.Cooked, Raw: part.Raw})
		case partition.RepeatingPositional != nil:
			p := *partition.RepeatingPositional
			bound[p.Name] = append(bound[p.Name], Binding{Param: p, Cooked: part.Cooked, Raw: part.Raw})
			if p.Type == TypeTuple && p.Form == FormRaw {
				absorbRaw = true
			}
		default:
			return nil, scpierr.NewExtraArgument(leafName, part.Raw)
		}
	}

	for _, p := range partition.PositionalRequired {
		if len(bound[p.Name]) == 0 {
			return nil, scpierr.NewMissingArgument(leafName, p.Name)
		}
	}
	for name, p := range partition.Named {
		if !p.Required() {
			continue
		}
		if len(bound[name]) == 0 {
			return nil, scpierr.NewMissingArgument(leafName, name)
		}
	}
	for _, p := range partition.PositionalOptional {
		if len(bound[p.Name]) == 0 && p.HasDefault {
			bound[p.Name] = []Binding{{Param: p, Cooked: p.Default, Raw: p.Default}}
		}
	}
	for name, p := range partition.Named {
		if len(bound[name]) == 0 && p.HasDefault {
			bound[name] = []Binding{{Param: p, Cooked: p.Default, Raw: p.Default}}
		}
	}

	if err := validateRepeats(leafName, partition, bound); err != nil {
		return nil, err
	}
	if err := validateValues(leafName, bound); err != nil {
		return nil, err
	}
	return bound, nil
}

func validateRepeats(leafName string, partition *Partition, bound Bound) error {
	check := func(p *Parameter) error {
		if p == nil {
			return nil
		}
		n := len(bound[p.Name])
		if n < p.Repeats.Min {
			return scpierr.NewTooFewRepeats(p.Name, n, p.Repeats.Min)
		}
		if p.Repeats.Max > 0 && n > p.Repeats.Max {
			return scpierr.NewTooManyRepeats(p.Name, n, p.Repeats.Max)
		}
		return nil
	}
	if err := check(partition.RepeatingPositional); err != nil {
		return err
	}
	if err := check(partition.RepeatingNamed); err != nil {
		return err
	}
	return nil
}

func validateValues(leafName string, bound Bound) error {
	for _, bindings := range bound {
		for _, b := range bindings {
			if b.Param.Range.Enabled {
				if err := checkRange(b); err != nil {
					return err
				}
			}
			if len(b.Param.Enum) > 0 {
				if err := checkEnum(b); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
