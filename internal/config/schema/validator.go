package schema

import (
	"fmt"
	"net/url"
	"regexp"
	"sync"
)

// FormatFunc checks a string value against a named format.
type FormatFunc func(value string) error

// Validator validates settings documents against a schema.
type Validator struct {
	schema *Schema

	strictMode bool // unknown properties are errors
	maxErrors  int  // 0 = unlimited

	formats      map[string]FormatFunc
	patternCache sync.Map // map[string]*regexp.Regexp
}

// NewValidator creates a validator for the given schema.
func NewValidator(schema *Schema) *Validator {
	return &Validator{
		schema:    schema,
		maxErrors: 100,
		formats: map[string]FormatFunc{
			FormatURI: validateURI,
		},
	}
}

// WithStrictMode enables strict mode (unknown properties are errors).
func (v *Validator) WithStrictMode(strict bool) *Validator {
	v.strictMode = strict
	return v
}

// WithFormat registers a checker for a named string format, replacing any
// existing checker with the same name.
func (v *Validator) WithFormat(name string, fn FormatFunc) *Validator {
	v.formats[name] = fn
	return v
}

// Schema returns the schema the validator checks against.
func (v *Validator) Schema() *Schema {
	return v.schema
}

// Validate validates a whole document against the schema.
func (v *Validator) Validate(data map[string]any) error {
	if v.schema == nil {
		return nil
	}

	errs := &ValidationErrors{}
	v.validateValue("", data, v.schema, errs)
	return errs.AsError()
}

// ValidatePath validates a single value at a given path.
func (v *Validator) ValidatePath(path string, value any) error {
	if v.schema == nil {
		return nil
	}

	propSchema := v.schema.GetProperty(path)
	if propSchema == nil {
		if v.strictMode {
			return NewUnknownPropertyError(path)
		}
		return nil
	}

	errs := &ValidationErrors{}
	v.validateValue(path, value, propSchema, errs)
	return errs.AsError()
}

// Valid reports whether value is acceptable at path.
func (v *Validator) Valid(path string, value any) bool {
	return v.ValidatePath(path, value) == nil
}

func (v *Validator) validateValue(path string, value any, schema *Schema, errs *ValidationErrors) {
	if schema == nil || (v.maxErrors > 0 && errs.Len() >= v.maxErrors) {
		return
	}

	if len(schema.Enum) > 0 {
		v.validateEnum(path, value, schema.Enum, errs)
	}

	if !schema.Type.IsEmpty() {
		v.validateType(path, value, schema, errs)
	}
}

func (v *Validator) validateType(path string, value any, schema *Schema, errs *ValidationErrors) {
	if value == nil {
		if !schema.Type.Is(TypeNameNull) {
			errs.AddError(NewTypeError(path, schema.Type.String(), value))
		}
		return
	}

	for _, typ := range schema.Type.Types {
		if !matchesType(value, typ) {
			continue
		}
		switch typ {
		case TypeNameString:
			v.validateString(path, value.(string), schema, errs)
		case TypeNameNumber, TypeNameInteger:
			v.validateNumber(path, value, schema, errs)
		case TypeNameObject:
			v.validateObject(path, value.(map[string]any), schema, errs)
		}
		return
	}

	errs.AddError(NewTypeError(path, schema.Type.String(), value))
}

func matchesType(value any, typ string) bool {
	switch typ {
	case TypeNameString:
		_, ok := value.(string)
		return ok
	case TypeNameNumber:
		return isNumber(value)
	case TypeNameInteger:
		return isInteger(value)
	case TypeNameBoolean:
		_, ok := value.(bool)
		return ok
	case TypeNameObject:
		_, ok := value.(map[string]any)
		return ok
	case TypeNameNull:
		return value == nil
	default:
		return false
	}
}

func (v *Validator) validateString(path, value string, schema *Schema, errs *ValidationErrors) {
	if schema.Pattern != "" && !v.matchPattern(value, schema.Pattern) {
		errs.AddError(NewPatternError(path, value, schema.Pattern))
	}

	if schema.Format == "" {
		return
	}
	fn, ok := v.formats[schema.Format]
	if !ok {
		return
	}
	if err := fn(value); err != nil {
		errs.AddWithValue(path, err.Error(), value)
	}
}

func (v *Validator) validateNumber(path string, value any, schema *Schema, errs *ValidationErrors) {
	f := ToFloat64(value)

	if (schema.Minimum != nil && f < *schema.Minimum) || (schema.Maximum != nil && f > *schema.Maximum) {
		errs.AddError(NewRangeError(path, value, schema.Minimum, schema.Maximum))
	}
}

func (v *Validator) validateObject(path string, obj map[string]any, schema *Schema, errs *ValidationErrors) {
	for name, propValue := range obj {
		propPath := joinPath(path, name)

		if propSchema, ok := schema.Properties[name]; ok {
			v.validateValue(propPath, propValue, propSchema, errs)
		} else if v.strictMode && len(schema.Properties) > 0 {
			errs.AddError(NewUnknownPropertyError(propPath))
		}
	}
}

func (v *Validator) validateEnum(path string, value any, allowed []any, errs *ValidationErrors) {
	for _, a := range allowed {
		if valuesEqual(value, a) {
			return
		}
	}
	errs.AddError(NewEnumError(path, value, allowed))
}

func (v *Validator) matchPattern(value, pattern string) bool {
	if cached, ok := v.patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp).MatchString(value)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}

	v.patternCache.Store(pattern, re)
	return re.MatchString(value)
}

// validateURI accepts absolute http and https URIs with a host.
func validateURI(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URI format: %s", value)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URI scheme must be http or https: %s", value)
	}
	if u.Host == "" {
		return fmt.Errorf("URI has no host: %s", value)
	}
	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

func isInteger(v any) bool {
	switch val := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return float32(int32(val)) == val
	case float64:
		return float64(int64(val)) == val
	default:
		return false
	}
}

// ToFloat64 widens any Go numeric value. Non-numeric values yield 0.
func ToFloat64(v any) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	default:
		return 0
	}
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumber(a) && isNumber(b) {
		return ToFloat64(a) == ToFloat64(b)
	}
	return a == b
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
