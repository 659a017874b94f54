package field

import "fmt"

// A Type is the storage kind of an attribute. It selects the column type
// when tables are created for a mapping.
type Type uint8

// Attribute types. Composite values are stored as TypeBytes, encoded by the
// DefaultCoercer.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeTime
	TypeUUID
	TypeBytes
	TypeString
	TypeDecimal
	TypeInt
	TypeInt64
	TypeFloat64
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeTime:    "time.Time",
	TypeUUID:    "uuid",
	TypeBytes:   "bytes",
	TypeString:  "string",
	TypeDecimal: "decimal",
	TypeInt:     "int",
	TypeInt64:   "int64",
	TypeFloat64: "float64",
}

// String returns the name of the type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// Valid reports if the given type is a known type.
func (t Type) Valid() bool {
	return t > TypeInvalid && int(t) < len(typeNames)
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeInt64 || t == TypeFloat64 || t == TypeDecimal
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("field: invalid type %d", t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "time" is accepted as
// an alias of "time.Time".
func (t *Type) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "time" {
		s = TypeTime.String()
	}
	for i, name := range typeNames {
		if Type(i).Valid() && name == s {
			*t = Type(i)
			return nil
		}
	}
	return fmt.Errorf("field: unknown type %q", s)
}
