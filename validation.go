package medcontent

import (
	"fmt"
	"regexp"
)

// Kind names the value types a TypeRule can demand.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Rule is one declarative constraint on a parameter value. The concrete
// variants below are evaluated by exhaustive matching in ValidateParams;
// the unexported marker keeps the set closed.
type Rule interface {
	isRule()
}

// RequiredRule fails when the parameter is absent.
type RequiredRule struct{}

// TypeRule fails when the value is not of the demanded kind.
type TypeRule struct {
	Kind Kind
}

// RangeRule bounds numeric values, or the length of string values.
// A nil bound is unconstrained.
type RangeRule struct {
	Min *float64
	Max *float64
}

// PatternRule matches string values against a regular expression.
type PatternRule struct {
	Pattern *regexp.Regexp
}

// EnumRule restricts the value to a fixed set. Membership compares rendered
// scalar forms, so int 5 matches float64 5.
type EnumRule struct {
	Values []any
}

// CustomRule delegates to an arbitrary predicate; a non-nil error fails the
// field with the error's message.
type CustomRule struct {
	Check func(value any) error
}

func (RequiredRule) isRule() {}
func (TypeRule) isRule()     {}
func (RangeRule) isRule()    {}
func (PatternRule) isRule()  {}
func (EnumRule) isRule()     {}
func (CustomRule) isRule()   {}

// Required constrains a field to be present.
func Required() Rule { return RequiredRule{} }

// OfType constrains a field's value kind.
func OfType(k Kind) Rule { return TypeRule{Kind: k} }

// Min constrains a number's value (or a string's length) from below.
func Min(v float64) Rule { return RangeRule{Min: &v} }

// Max constrains a number's value (or a string's length) from above.
func Max(v float64) Rule { return RangeRule{Max: &v} }

// Between constrains a number's value (or a string's length) to [min, max].
func Between(min, max float64) Rule { return RangeRule{Min: &min, Max: &max} }

// Matches constrains a string field to a pattern.
func Matches(pattern *regexp.Regexp) Rule { return PatternRule{Pattern: pattern} }

// OneOf constrains a field to an enumerated set.
func OneOf(values ...any) Rule { return EnumRule{Values: values} }

// Custom constrains a field with an arbitrary predicate.
func Custom(check func(value any) error) Rule { return CustomRule{Check: check} }

// Schema maps parameter names to their ordered rule lists.
type Schema map[string][]Rule

// ValidationResult reports the outcome of ValidateParams. Sanitized holds
// every field that passed all of its rules (plus unconstrained fields,
// copied verbatim); failing fields are excluded.
type ValidationResult struct {
	Valid     bool
	Errors    map[string]string
	Sanitized map[string]any
}

// ValidateParams checks params against schema. Rules for a field evaluate in
// order and the first failure short-circuits that field, so at most one error
// per field is reported. Fields without a schema entry pass through.
func ValidateParams(params map[string]any, schema Schema) ValidationResult {
	result := ValidationResult{
		Valid:     true,
		Errors:    make(map[string]string),
		Sanitized: make(map[string]any),
	}

	for field, rules := range schema {
		value, present := params[field]
		if problem := checkField(value, present, rules); problem != "" {
			result.Valid = false
			result.Errors[field] = problem
			continue
		}
		if present {
			result.Sanitized[field] = value
		}
	}

	for field, value := range params {
		if _, constrained := schema[field]; !constrained {
			result.Sanitized[field] = value
		}
	}

	return result
}

// checkField returns the first rule violation for a field, or "".
func checkField(value any, present bool, rules []Rule) string {
	for _, rule := range rules {
		switch r := rule.(type) {
		case RequiredRule:
			if !present {
				return "is required"
			}
		case TypeRule:
			if !present {
				continue
			}
			if !matchesKind(value, r.Kind) {
				return fmt.Sprintf("must be of type %s", r.Kind)
			}
		case RangeRule:
			if !present {
				continue
			}
			if problem := checkRange(value, r); problem != "" {
				return problem
			}
		case PatternRule:
			if !present {
				continue
			}
			s, ok := value.(string)
			if !ok {
				return "must be a string to match a pattern"
			}
			if !r.Pattern.MatchString(s) {
				return fmt.Sprintf("must match pattern %s", r.Pattern)
			}
		case EnumRule:
			if !present {
				continue
			}
			if !enumContains(r.Values, value) {
				return fmt.Sprintf("must be one of %v", r.Values)
			}
		case CustomRule:
			if !present {
				continue
			}
			if err := r.Check(value); err != nil {
				return err.Error()
			}
		}
	}
	return ""
}

func matchesKind(value any, kind Kind) bool {
	switch kind {
	case KindString:
		_, ok := value.(string)
		return ok
	case KindNumber:
		_, ok := asFloat(value)
		return ok
	case KindBool:
		_, ok := value.(bool)
		return ok
	case KindArray:
		_, ok := toSlice(value)
		return ok
	default:
		return false
	}
}

func checkRange(value any, r RangeRule) string {
	if n, ok := asFloat(value); ok {
		if r.Min != nil && n < *r.Min {
			return fmt.Sprintf("must be at least %v", *r.Min)
		}
		if r.Max != nil && n > *r.Max {
			return fmt.Sprintf("must be at most %v", *r.Max)
		}
		return ""
	}
	if s, ok := value.(string); ok {
		length := float64(len(s))
		if r.Min != nil && length < *r.Min {
			return fmt.Sprintf("must be at least %v characters", *r.Min)
		}
		if r.Max != nil && length > *r.Max {
			return fmt.Sprintf("must be at most %v characters", *r.Max)
		}
		return ""
	}
	return "must be a number or string for range checks"
}

func enumContains(values []any, value any) bool {
	rendered := formatScalar(value)
	for _, candidate := range values {
		if formatScalar(candidate) == rendered {
			return true
		}
	}
	return false
}

// asFloat widens any Go numeric type to float64.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
