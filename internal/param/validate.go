package param

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/mod/semver"

	"github.com/scpid/scpid/internal/scpierr"
)

// Validator additively validates bound values against an optional
// per-parameter JSON Schema fragment (Parameter.Schema), layered on
// top of the hand-rolled range/enum/repeat checks bind.go already
// performs. Schemas are compiled once and cached by their source text.
type Validator struct {
	compiled map[string]*jsonschema.Schema
}

// NewValidator returns a Validator with an empty compile cache.
func NewValidator() *Validator {
	return &Validator{compiled: map[string]*jsonschema.Schema{}}
}

// Validate checks b's typed value against its parameter's Schema, if
// any. A parameter with no Schema always passes.
func (v *Validator) Validate(b Binding) error {
	if b.Param.Schema == "" {
		return nil
	}
	sch, err := v.compile(b.Param.Schema)
	if err != nil {
		return scpierr.NewInternal(err, "compiling schema for "+b.Param.Name)
	}

	value, err := ToValue(b)
	if err != nil {
		return err
	}
	var asAny any
	// jsonschema validates against decoded JSON values; round-trip
	// through json so numeric/bool/string typing matches the schema's
	// expectations regardless of the Go type ToValue produced.
	raw, err := json.Marshal(value)
	if err != nil {
		return scpierr.NewInternal(err, "marshaling value for "+b.Param.Name)
	}
	if err := json.Unmarshal(raw, &asAny); err != nil {
		return scpierr.NewInternal(err, "unmarshaling value for "+b.Param.Name)
	}

	if err := sch.Validate(asAny); err != nil {
		return scpierr.NewFormatViolation(b.Param.Name, b.Cooked, err.Error())
	}
	return nil
}

func (v *Validator) compile(schemaText string) (*jsonschema.Schema, error) {
	if sch, ok := v.compiled[schemaText]; ok {
		return sch, nil
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if compiler.Formats == nil {
		compiler.Formats = map[string]func(any) bool{}
	}
	for name, fn := range formatValidators() {
		compiler.Formats[name] = fn
	}

	url := fmt.Sprintf("schema://%d.json", len(v.compiled))
	if err := compiler.AddResource(url, strings.NewReader(schemaText)); err != nil {
		return nil, err
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	v.compiled[schemaText] = sch
	return sch, nil
}

// formatValidators adds the instrument-parameter formats this system
// needs beyond jsonschema's built-ins (email/uri/ipv4/...).
func formatValidators() map[string]func(any) bool {
	return map[string]func(any) bool{
		"duration": func(v any) bool {
			s, ok := v.(string)
			if !ok {
				return true
			}
			_, err := time.ParseDuration(s)
			return err == nil
		},
		"cidr": func(v any) bool {
			s, ok := v.(string)
			if !ok {
				return true
			}
			_, err := netip.ParsePrefix(s)
			return err == nil
		},
		"semver": func(v any) bool {
			s, ok := v.(string)
			if !ok {
				return true
			}
			if !strings.HasPrefix(s, "v") {
				s = "v" + s
			}
			return semver.IsValid(s)
		},
	}
}
