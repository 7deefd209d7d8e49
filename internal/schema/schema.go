// Package schema defines the closed set of argument shapes a tool can
// declare and validates raw JSON arguments against them. Validation
// collects every violation instead of stopping at the first, so a caller
// can fix all problems in one round trip.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Type enumerates the primitive property kinds.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

// Property describes a single named argument.
type Property struct {
	Type        Type
	Description string

	// Enum constrains a string property to a fixed value set.
	Enum []string

	// Minimum and Maximum bound integer and number properties (inclusive).
	Minimum *float64
	Maximum *float64

	// Coerce allows numeric string inputs ("5") for integer and number
	// properties. Numeric strings are rejected unless this is set.
	Coerce bool
}

// Object is the schema of a tool's argument object.
type Object struct {
	Properties map[string]Property
	Required   []string

	// AtLeastOne requires at least one of the listed properties to be
	// present. Used by partial-update tools where every field is optional
	// but an empty update is meaningless.
	AtLeastOne []string
}

// Violation describes one failed constraint.
type Violation struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
}

func (v Violation) String() string {
	if v.Actual == "" {
		return fmt.Sprintf("%s: expected %s", v.Path, v.Expected)
	}
	return fmt.Sprintf("%s: expected %s, got %s", v.Path, v.Expected, v.Actual)
}

// ValidationError carries every violation found in one pass.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return "invalid arguments: " + e.Violations[0].String()
	}
	return fmt.Sprintf("invalid arguments: %d violations", len(e.Violations))
}

// Validate checks raw JSON arguments against the object schema. On success
// it returns the typed argument map; string properties map to string,
// integer to int64, number to float64, boolean to bool. Absent optional
// properties are omitted from the result. An empty or absent raw payload
// is treated as an empty object.
func (o Object) Validate(raw json.RawMessage) (map[string]any, error) {
	args := map[string]json.RawMessage{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, &ValidationError{Violations: []Violation{{
				Path:     "(arguments)",
				Expected: "a JSON object",
				Actual:   truncate(string(raw), 80),
			}}}
		}
	}

	var violations []Violation
	out := make(map[string]any, len(args))

	for _, name := range o.Required {
		if _, ok := args[name]; !ok {
			violations = append(violations, Violation{
				Path:     name,
				Expected: "a value (required)",
			})
		}
	}

	if len(o.AtLeastOne) > 0 && !anyPresent(args, o.AtLeastOne) {
		violations = append(violations, Violation{
			Path:     "(arguments)",
			Expected: "at least one of " + joinNames(o.AtLeastOne),
		})
	}

	for name, rawVal := range args {
		prop, ok := o.Properties[name]
		if !ok {
			violations = append(violations, Violation{
				Path:     name,
				Expected: "no value (unknown property)",
			})
			continue
		}
		val, vs := prop.validate(name, rawVal)
		if len(vs) > 0 {
			violations = append(violations, vs...)
			continue
		}
		out[name] = val
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	return out, nil
}

func (p Property) validate(path string, raw json.RawMessage) (any, []Violation) {
	switch p.Type {
	case TypeString:
		return p.validateString(path, raw)
	case TypeInteger, TypeNumber:
		return p.validateNumeric(path, raw)
	case TypeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, []Violation{{Path: path, Expected: "a boolean", Actual: truncate(string(raw), 40)}}
		}
		return b, nil
	default:
		return nil, []Violation{{Path: path, Expected: "a known property type", Actual: string(p.Type)}}
	}
}

func (p Property) validateString(path string, raw json.RawMessage) (any, []Violation) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, []Violation{{Path: path, Expected: "a string", Actual: truncate(string(raw), 40)}}
	}
	if len(p.Enum) > 0 && !contains(p.Enum, s) {
		return nil, []Violation{{
			Path:     path,
			Expected: "one of " + joinNames(p.Enum),
			Actual:   strconv.Quote(s),
		}}
	}
	return s, nil
}

func (p Property) validateNumeric(path string, raw json.RawMessage) (any, []Violation) {
	kind := "a number"
	if p.Type == TypeInteger {
		kind = "an integer"
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		// Numeric strings pass only when the property opts into coercion.
		if !p.Coerce {
			return nil, []Violation{{Path: path, Expected: kind, Actual: truncate(string(raw), 40)}}
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, []Violation{{Path: path, Expected: kind, Actual: truncate(string(raw), 40)}}
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, []Violation{{Path: path, Expected: kind, Actual: strconv.Quote(s)}}
		}
		f = parsed
	}

	if p.Type == TypeInteger && f != math.Trunc(f) {
		return nil, []Violation{{Path: path, Expected: "an integer", Actual: formatFloat(f)}}
	}
	if p.Minimum != nil && f < *p.Minimum {
		return nil, []Violation{{
			Path:     path,
			Expected: fmt.Sprintf("%s >= %s", kind, formatFloat(*p.Minimum)),
			Actual:   formatFloat(f),
		}}
	}
	if p.Maximum != nil && f > *p.Maximum {
		return nil, []Violation{{
			Path:     path,
			Expected: fmt.Sprintf("%s <= %s", kind, formatFloat(*p.Maximum)),
			Actual:   formatFloat(f),
		}}
	}

	if p.Type == TypeInteger {
		return int64(f), nil
	}
	return f, nil
}

func anyPresent(args map[string]json.RawMessage, names []string) bool {
	for _, n := range names {
		if _, ok := args[n]; ok {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += strconv.Quote(n)
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
