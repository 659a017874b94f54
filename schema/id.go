package schema

import (
	"reflect"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDProvider describes and generates identifiers. The engine uses it for
// the surrogate keys of join-table rows.
type IDProvider interface {
	// Name returns the name of the identifier kind.
	Name() string
	// Type returns the Go type of the identifiers.
	Type() reflect.Type
	// New returns a fresh identifier.
	New() (any, error)
}

// UUIDProvider generates random uuid.UUID identifiers.
type UUIDProvider struct{}

// Name implements IDProvider.
func (UUIDProvider) Name() string { return "uuid" }

// Type implements IDProvider.
func (UUIDProvider) Type() reflect.Type { return reflect.TypeFor[uuid.UUID]() }

// New implements IDProvider.
func (UUIDProvider) New() (any, error) { return uuid.NewRandom() }

// StringUUIDProvider generates random UUIDs in their canonical string form,
// for backends storing identifiers as text.
type StringUUIDProvider struct{}

// Name implements IDProvider.
func (StringUUIDProvider) Name() string { return "uuid_string" }

// Type implements IDProvider.
func (StringUUIDProvider) Type() reflect.Type { return reflect.TypeFor[string]() }

// New implements IDProvider.
func (StringUUIDProvider) New() (any, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}

// SequenceProvider generates increasing int64 identifiers from an
// in-process counter.
type SequenceProvider struct {
	next atomic.Int64
}

// NewSequenceProvider returns a provider whose first identifier is start.
func NewSequenceProvider(start int64) *SequenceProvider {
	p := &SequenceProvider{}
	p.next.Store(start - 1)
	return p
}

// Name implements IDProvider.
func (*SequenceProvider) Name() string { return "sequence" }

// Type implements IDProvider.
func (*SequenceProvider) Type() reflect.Type { return reflect.TypeFor[int64]() }

// New implements IDProvider.
func (p *SequenceProvider) New() (any, error) { return p.next.Add(1), nil }

var (
	_ IDProvider = UUIDProvider{}
	_ IDProvider = StringUUIDProvider{}
	_ IDProvider = (*SequenceProvider)(nil)
)
