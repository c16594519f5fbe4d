package tools

import "fmt"

// ParamKind is the accepted value type for a parameter.
type ParamKind int

const (
	KindString ParamKind = iota
	KindStringList
	KindInt
	KindFloat
)

// Param declares one tool parameter. Enum, when non-empty, closes the value
// set. FailCode overrides the generic INVALID_ARGUMENT code for parameters
// whose rejection has a dedicated reason, such as an out-of-range time period.
type Param struct {
	Name     string
	Kind     ParamKind
	Enum     []string
	Default  any
	Required bool
	FailCode string
}

// Schema is the full parameter set of one tool.
type Schema struct {
	Params []Param
}

// Args are validated, defaulted tool arguments.
type Args map[string]any

// String returns the named string argument, or its zero value when absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns the named int argument, or zero when absent.
func (a Args) Int(name string) int {
	switch v := a[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the named float argument, or zero when absent.
func (a Args) Float(name string) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// StringList returns the named list argument, or nil when absent.
func (a Args) StringList(name string) []string {
	v, _ := a[name].([]string)
	return v
}

// Validate checks raw arguments against the schema, applies defaults, and
// drops keys the schema does not declare. A violation returns the parameter's
// FailCode, or INVALID_ARGUMENT when none is set.
func (s Schema) Validate(raw map[string]any) (Args, string, error) {
	out := make(Args, len(s.Params))
	for _, p := range s.Params {
		value, present := raw[p.Name]
		if !present || value == nil {
			if p.Required && p.Default == nil {
				return nil, failCode(p), fmt.Errorf("missing required parameter %q", p.Name)
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}

		coerced, err := coerce(p, value)
		if err != nil {
			return nil, failCode(p), err
		}
		out[p.Name] = coerced
	}
	return out, "", nil
}

func failCode(p Param) string {
	if p.FailCode != "" {
		return p.FailCode
	}
	return CodeInvalidArgument
}

func coerce(p Param, value any) (any, error) {
	switch p.Kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %q must be a string", p.Name)
		}
		if len(p.Enum) > 0 && !contains(p.Enum, s) {
			return nil, fmt.Errorf("parameter %q has unsupported value %q", p.Name, s)
		}
		return s, nil

	case KindStringList:
		switch v := value.(type) {
		case []string:
			return v, nil
		case []any:
			list := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("parameter %q must be a list of strings", p.Name)
				}
				list = append(list, s)
			}
			return list, nil
		}
		return nil, fmt.Errorf("parameter %q must be a list of strings", p.Name)

	case KindInt:
		switch v := value.(type) {
		case int:
			return v, nil
		case float64:
			if v != float64(int(v)) {
				return nil, fmt.Errorf("parameter %q must be an integer", p.Name)
			}
			return int(v), nil
		}
		return nil, fmt.Errorf("parameter %q must be an integer", p.Name)

	case KindFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		}
		return nil, fmt.Errorf("parameter %q must be a number", p.Name)
	}
	return nil, fmt.Errorf("parameter %q has an unknown kind", p.Name)
}

func contains(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}
