package statement

import (
	"fmt"

	"github.com/syssam/strata/schema"
)

// Batch is the set of statements of one unit of work. It is consumed once.
type Batch []Statement

// Inserts returns the insert statements in batch order.
func (b Batch) Inserts() []*Insert { return ofType[*Insert](b) }

// Updates returns the update statements in batch order.
func (b Batch) Updates() []*Update { return ofType[*Update](b) }

// Deletes returns the delete statements in batch order.
func (b Batch) Deletes() []*Delete { return ofType[*Delete](b) }

// AddReferences returns the add-reference statements in batch order.
func (b Batch) AddReferences() []*AddReference { return ofType[*AddReference](b) }

// RemoveReferences returns the remove-reference statements in batch order.
func (b Batch) RemoveReferences() []*RemoveReference { return ofType[*RemoveReference](b) }

// CheckUniques returns the unique-attribute checks in batch order.
func (b Batch) CheckUniques() []*CheckUnique { return ofType[*CheckUnique](b) }

// Exists returns the existence checks in batch order.
func (b Batch) Exists() []*InstanceExists { return ofType[*InstanceExists](b) }

// Count returns the number of statements per kind.
func (b Batch) Count() map[Kind]int {
	m := make(map[Kind]int)
	for _, s := range b {
		m[s.Kind()]++
	}
	return m
}

// Validate checks the shape of every statement: a target with a type and an
// identifier, and for reference statements a reference declared on the
// target type.
func (b Batch) Validate() error {
	for i, s := range b {
		if s == nil {
			return fmt.Errorf("statement: #%d is nil", i)
		}
		inst := s.Target()
		if inst == nil || inst.Type == nil || inst.ID == nil {
			return fmt.Errorf("statement: #%d (%s) has no typed target with an id", i, s.Kind())
		}
		var (
			ref *schema.Reference
			far any
		)
		switch s := s.(type) {
		case *AddReference:
			ref, far = s.Reference, s.ID
		case *RemoveReference:
			ref, far = s.Reference, s.ID
		default:
			continue
		}
		if ref == nil || !declares(inst.Type, ref) {
			return fmt.Errorf("statement: #%d (%s) reference is not declared on %s", i, s.Kind(), inst.Type)
		}
		if far == nil {
			return fmt.Errorf("statement: #%d (%s) has no far id", i, s.Kind())
		}
	}
	return nil
}

func declares(t *schema.Type, ref *schema.Reference) bool {
	r, ok := t.Reference(ref.Name)
	return ok && r == ref
}

func ofType[T Statement](b Batch) []T {
	var out []T
	for _, s := range b {
		if t, ok := s.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
