// Package field converts in-memory attribute and identifier values into
// parameters the SQL drivers accept.
//
// The DefaultCoercer handles the common cases:
//
//	uuid.UUID          -> canonical string
//	decimal.Decimal    -> exact decimal string
//	time.Time          -> time.Time in UTC
//	int8..uint32       -> int64
//	named basic kinds  -> underlying kind (type Status string -> string)
//	pointers           -> pointee, or NULL when nil
//	slices, maps and structs -> msgpack-encoded []byte
//
// Values implementing driver.Valuer are passed through their Value method.
package field
