package statement

import (
	"fmt"
	"time"

	"github.com/syssam/strata/schema"
)

// Instance is one entity row being mutated.
type Instance struct {
	// ID identifies the instance. It must be comparable and unique among the
	// instances of one batch.
	ID     any
	Type   *schema.Type
	Values map[*schema.Attribute]any
}

// NewInstance returns an instance of t without attribute values.
func NewInstance(t *schema.Type, id any) *Instance {
	return &Instance{ID: id, Type: t, Values: make(map[*schema.Attribute]any)}
}

// Set assigns the named attribute. It panics if t declares no such
// attribute, as the batch would otherwise be silently truncated.
func (i *Instance) Set(name string, v any) *Instance {
	a, ok := i.Type.Attribute(name)
	if !ok {
		panic(fmt.Sprintf("statement: %s has no attribute %q", i.Type, name))
	}
	if i.Values == nil {
		i.Values = make(map[*schema.Attribute]any)
	}
	i.Values[a] = v
	return i
}

// Value returns the value of the named attribute, if set.
func (i *Instance) Value(name string) (any, bool) {
	a, ok := i.Type.Attribute(name)
	if !ok {
		return nil, false
	}
	v, ok := i.Values[a]
	return v, ok
}

// String returns "Type(id)".
func (i *Instance) String() string {
	return fmt.Sprintf("%s(%v)", i.Type, i.ID)
}

// Audit holds the optimistic-lock and bookkeeping values attached to an
// insert or update. Zero fields are not written.
type Audit struct {
	// Version is the version written on insert, and the expected stored
	// version on update.
	Version   *int64
	Timestamp *time.Time
	UserID    any
	UserName  string
}

// Empty reports whether no audit value is present.
func (a Audit) Empty() bool {
	return a.Version == nil && a.Timestamp == nil && a.UserID == nil && a.UserName == ""
}

// Kind identifies the variant of a Statement.
type Kind int

// Statement kinds.
const (
	KindInsert Kind = iota + 1
	KindUpdate
	KindDelete
	KindAddReference
	KindRemoveReference
	KindCheckUnique
	KindInstanceExists
)

var kindNames = [...]string{
	KindInsert:          "Insert",
	KindUpdate:          "Update",
	KindDelete:          "Delete",
	KindAddReference:    "AddReference",
	KindRemoveReference: "RemoveReference",
	KindCheckUnique:     "CheckUnique",
	KindInstanceExists:  "InstanceExists",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Statement is one pending mutation. The set of implementations is closed.
type Statement interface {
	// Kind returns the variant of the statement.
	Kind() Kind
	// Target returns the instance the statement applies to. For reference
	// statements this is the near end.
	Target() *Instance
	statement()
}

type (
	// Insert creates the rows of an instance.
	Insert struct {
		Instance *Instance
		Audit    Audit
	}

	// Update writes changed attributes and audit columns of an instance.
	Update struct {
		Instance *Instance
		Audit    Audit
	}

	// Delete removes the rows of an instance.
	Delete struct {
		Instance *Instance
	}

	// AddReference links Instance (the near end) to the instance identified
	// by ID (the far end) through Reference.
	AddReference struct {
		ID        any
		Reference *schema.Reference
		Instance  *Instance
		// Referencing optionally lists the identifiers of the instances that
		// currently reference the far end through Reference. It feeds the
		// cardinality check of the opposite reference.
		Referencing []any
	}

	// RemoveReference unlinks Instance from the instance identified by ID.
	RemoveReference struct {
		ID        any
		Reference *schema.Reference
		Instance  *Instance
	}

	// CheckUnique verifies that no other row holds the identifying attribute
	// values of Instance.
	CheckUnique struct {
		Instance *Instance
	}

	// InstanceExists verifies that Instance is stored.
	InstanceExists struct {
		Instance *Instance
	}
)

func (*Insert) Kind() Kind          { return KindInsert }
func (*Update) Kind() Kind          { return KindUpdate }
func (*Delete) Kind() Kind          { return KindDelete }
func (*AddReference) Kind() Kind    { return KindAddReference }
func (*RemoveReference) Kind() Kind { return KindRemoveReference }
func (*CheckUnique) Kind() Kind     { return KindCheckUnique }
func (*InstanceExists) Kind() Kind  { return KindInstanceExists }

func (s *Insert) Target() *Instance          { return s.Instance }
func (s *Update) Target() *Instance          { return s.Instance }
func (s *Delete) Target() *Instance          { return s.Instance }
func (s *AddReference) Target() *Instance    { return s.Instance }
func (s *RemoveReference) Target() *Instance { return s.Instance }
func (s *CheckUnique) Target() *Instance     { return s.Instance }
func (s *InstanceExists) Target() *Instance  { return s.Instance }

func (*Insert) statement()          {}
func (*Update) statement()          {}
func (*Delete) statement()          {}
func (*AddReference) statement()    {}
func (*RemoveReference) statement() {}
func (*CheckUnique) statement()     {}
func (*InstanceExists) statement()  {}

// String returns a short description of the statement.
func (s *AddReference) String() string {
	return fmt.Sprintf("add %s.%s -> %v", s.Instance, s.Reference.Name, s.ID)
}

// String returns a short description of the statement.
func (s *RemoveReference) String() string {
	return fmt.Sprintf("remove %s.%s -> %v", s.Instance, s.Reference.Name, s.ID)
}
