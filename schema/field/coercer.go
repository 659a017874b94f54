package field

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// Coercer converts engine values into backend parameters.
type Coercer interface {
	// Value converts v into a value accepted by database/sql drivers.
	Value(v any) (driver.Value, error)
}

// CoercerFunc adapts a function to the Coercer interface.
type CoercerFunc func(any) (driver.Value, error)

// Value implements Coercer.
func (f CoercerFunc) Value(v any) (driver.Value, error) { return f(v) }

// DefaultCoercer is the Coercer used when none is configured.
type DefaultCoercer struct {
	// KeepLocalTime disables the conversion of time values to UTC.
	KeepLocalTime bool
}

var (
	timeType    = reflect.TypeFor[time.Time]()
	bytesType   = reflect.TypeFor[[]byte]()
	errOverflow = errors.New("field: unsigned value overflows int64")
)

// Value implements Coercer.
func (c DefaultCoercer) Value(v any) (driver.Value, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int64, float64, []byte:
		return v, nil
	case int:
		return int64(v), nil
	case uuid.UUID:
		return v.String(), nil
	case uuid.NullUUID:
		if !v.Valid {
			return nil, nil
		}
		return v.UUID.String(), nil
	case decimal.Decimal:
		return v.String(), nil
	case decimal.NullDecimal:
		if !v.Valid {
			return nil, nil
		}
		return v.Decimal.String(), nil
	case time.Time:
		if c.KeepLocalTime {
			return v, nil
		}
		return v.UTC(), nil
	case driver.Valuer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		return valuer(v)
	}
	return c.reflectValue(reflect.ValueOf(v))
}

func (c DefaultCoercer) reflectValue(rv reflect.Value) (driver.Value, error) {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return c.Value(rv.Elem().Interface())
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, errOverflow
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Struct:
		if rv.Type().ConvertibleTo(timeType) {
			return c.Value(rv.Convert(timeType).Interface())
		}
		return encode(rv.Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().ConvertibleTo(bytesType) {
			return rv.Convert(bytesType).Interface(), nil
		}
		return encode(rv.Interface())
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		return encode(rv.Interface())
	case reflect.Array:
		return encode(rv.Interface())
	default:
		return nil, fmt.Errorf("field: unsupported value type %s", rv.Type())
	}
}

func valuer(v driver.Valuer) (driver.Value, error) {
	dv, err := v.Value()
	if err != nil {
		return nil, fmt.Errorf("field: %T value: %w", v, err)
	}
	return dv, nil
}

// encode serializes composite values.
func encode(v any) (driver.Value, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("field: encode %T: %w", v, err)
	}
	return b, nil
}

// Decode reverses the encoding applied by DefaultCoercer to composite values.
func Decode(b []byte, v any) error {
	if err := msgpack.Unmarshal(b, v); err != nil {
		return fmt.Errorf("field: decode %T: %w", v, err)
	}
	return nil
}

// Values converts every element of vs with c.
func Values(c Coercer, vs ...any) ([]any, error) {
	out := make([]any, len(vs))
	for i, v := range vs {
		dv, err := c.Value(v)
		if err != nil {
			return nil, err
		}
		out[i] = dv
	}
	return out, nil
}

var _ Coercer = DefaultCoercer{}
