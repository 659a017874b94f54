package engine

import (
	"context"

	"github.com/syssam/strata"
)

// collect runs check for the n items of a check phase and gathers the
// validation errors. Any other error stops the phase at once, and so does
// the first validation error in fail-fast mode.
func (r *run) collect(n int, check func(i int) error) error {
	var errs []error
	for i := range n {
		err := check(i)
		switch {
		case err == nil:
		case !strata.IsValidation(err):
			return err
		case r.failFast:
			return err
		default:
			errs = append(errs, err)
		}
	}
	return strata.NewAggregateError(errs...)
}

// checkExists verifies that every instance the batch expects is stored.
func (r *run) checkExists(ctx context.Context) error {
	exists := r.batch.Exists()
	return r.collect(len(exists), func(i int) error {
		if err := r.graph.InstanceExists(ctx, r.eq, exists[i]); err != nil {
			return err
		}
		r.report.Checked++
		return nil
	})
}

// checkRemoves rejects removing a link that the far instance must keep: its
// reference back is single-valued and mandatory, and the far instance is
// not deleted by the batch.
func (r *run) checkRemoves(context.Context) error {
	return r.collect(len(r.removes), func(i int) error {
		l := r.removes[i]
		opp := l.ref.Opposite
		if opp == nil || opp.Many() || !r.provider.IsMandatory(opp) {
			return nil
		}
		if _, ok := r.deleted[l.far]; ok {
			return nil
		}
		return strata.NewMandatoryReferenceError(opp.Owner.Name, l.far, opp.String())
	})
}

// checkAdds rejects adding a link the far instance cannot take. A
// single-valued mandatory reference back can only be set on an instance
// inserted by the batch. A bounded reference back fails once the links it
// already has, less the ones the batch removes, plus the ones the batch
// added before, reach its upper bound.
func (r *run) checkAdds(context.Context) error {
	added := make(map[end]map[any]struct{})
	return r.collect(len(r.adds), func(i int) error {
		l := r.adds[i]
		opp := l.ref.Opposite
		if opp == nil || l.dup {
			return nil
		}
		if !opp.Many() && r.provider.IsMandatory(opp) {
			if _, ok := r.inserted[l.far]; !ok {
				return strata.NewMandatoryReferenceError(opp.Owner.Name, l.far, opp.String())
			}
		}
		key := end{opp, l.far}
		if opp.Bounded() {
			linked := make(map[any]struct{}, len(l.referencing))
			for _, id := range l.referencing {
				linked[id] = struct{}{}
			}
			for id := range r.unlinked[key] {
				delete(linked, id)
			}
			for id := range added[key] {
				linked[id] = struct{}{}
			}
			delete(linked, l.near.ID)
			if len(linked) >= opp.Upper {
				return strata.NewCardinalityError(opp.Owner.Name, l.far, opp.String(), len(linked)+1, opp.Upper)
			}
		}
		addTo(added, key, l.near.ID)
		addTo(added, end{l.ref, l.near.ID}, l.far)
		return nil
	})
}

// checkUnique verifies the identifying attributes of the batch before the
// first write.
func (r *run) checkUnique(ctx context.Context) error {
	checks := r.batch.CheckUniques()
	return r.collect(len(checks), func(i int) error {
		if err := r.graph.CheckUnique(ctx, r.eq, checks[i]); err != nil {
			return err
		}
		r.report.Unique++
		return nil
	})
}

func addTo(m map[end]map[any]struct{}, e end, id any) {
	if m[e] == nil {
		m[e] = make(map[any]struct{})
	}
	m[e][id] = struct{}{}
}
