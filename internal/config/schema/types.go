package schema

// Common type constants for JSON Schema.
const (
	TypeNameString  = "string"
	TypeNameNumber  = "number"
	TypeNameInteger = "integer"
	TypeNameBoolean = "boolean"
	TypeNameObject  = "object"
	TypeNameNull    = "null"
)

// Format constants understood by the validator.
const (
	// FormatURI requires an absolute http or https URI.
	FormatURI = "uri"
	// FormatShortcut requires a canonical shortcut token. The check itself
	// is supplied by the caller through WithFormat.
	FormatShortcut = "shortcut"
)

// Builder provides a fluent API for constructing schemas.
type Builder struct {
	schema *Schema
}

// NewBuilder creates a new schema builder.
func NewBuilder() *Builder {
	return &Builder{schema: &Schema{}}
}

// Build returns the constructed schema.
func (b *Builder) Build() *Schema {
	return b.schema
}

// Title sets the schema title.
func (b *Builder) Title(title string) *Builder {
	b.schema.Title = title
	return b
}

// Description sets the schema description.
func (b *Builder) Description(desc string) *Builder {
	b.schema.Description = desc
	return b
}

// Type sets the schema type.
func (b *Builder) Type(types ...string) *Builder {
	b.schema.Type = SchemaType{Types: types}
	return b
}

// Default sets the default value.
func (b *Builder) Default(value any) *Builder {
	b.schema.Default = value
	return b
}

// Enum sets allowed values.
func (b *Builder) Enum(values ...any) *Builder {
	b.schema.Enum = values
	return b
}

// Minimum sets the minimum value for numbers.
func (b *Builder) Minimum(min float64) *Builder {
	b.schema.Minimum = &min
	return b
}

// Maximum sets the maximum value for numbers.
func (b *Builder) Maximum(max float64) *Builder {
	b.schema.Maximum = &max
	return b
}

// Range sets both numeric bounds.
func (b *Builder) Range(min, max float64) *Builder {
	return b.Minimum(min).Maximum(max)
}

// Pattern sets the regex pattern for strings.
func (b *Builder) Pattern(pattern string) *Builder {
	b.schema.Pattern = pattern
	return b
}

// Format sets the semantic format.
func (b *Builder) Format(format string) *Builder {
	b.schema.Format = format
	return b
}

// Property adds a property to an object schema.
func (b *Builder) Property(name string, schema *Schema) *Builder {
	if b.schema.Properties == nil {
		b.schema.Properties = make(map[string]*Schema)
	}
	b.schema.Properties[name] = schema
	return b
}

// Order sets the display order.
func (b *Builder) Order(order int) *Builder {
	b.schema.Order = order
	return b
}

// String creates a string schema.
func String() *Builder {
	return NewBuilder().Type(TypeNameString)
}

// Integer creates an integer schema.
func Integer() *Builder {
	return NewBuilder().Type(TypeNameInteger)
}

// Number creates a number schema.
func Number() *Builder {
	return NewBuilder().Type(TypeNameNumber)
}

// Boolean creates a boolean schema.
func Boolean() *Builder {
	return NewBuilder().Type(TypeNameBoolean)
}

// Object creates an object schema.
func Object() *Builder {
	return NewBuilder().Type(TypeNameObject)
}

// StringEnum creates a string enum schema.
func StringEnum(values ...string) *Builder {
	anyValues := make([]any, len(values))
	for i, v := range values {
		anyValues[i] = v
	}
	return String().Enum(anyValues...)
}

// IntEnum creates an integer schema restricted to the given codes.
func IntEnum(values ...int) *Builder {
	anyValues := make([]any, len(values))
	for i, v := range values {
		anyValues[i] = v
	}
	return Integer().Enum(anyValues...)
}
