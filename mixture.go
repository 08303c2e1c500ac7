package distributions

import (
	"fmt"
	"slices"

	"github.com/posterior/distributions/dump"
)

// Mixture is an ordered, dynamically resizable collection of groups of one
// model, with batched scoring against all groups at once.
//
// Group ids are dense integers 0..Len-1 assigned by position: RemoveGroup
// shifts every higher id down by one. The density lets inference loops
// (e.g. collapsed Gibbs sampling over cluster assignments) treat ids as
// contiguous array indexes, at the cost of O(k) relabeling on removal.
//
// Lifecycle: Append groups, call Init once, then score and mutate through
// the mixture. Appending after Init fails with ErrInvalidArgument; post-init
// growth goes through AddGroup.
type Mixture[V any] struct {
	model  VectorScorerModel[V]
	groups []Group[V]
	cache  VectorScorer[V]
	inited bool
}

// NewMixture builds a mixture over the given model. Fails with
// ErrUnsupported if the model family lacks the VectorScorer capability;
// check HasMixture first.
func NewMixture[V any](m Model[V]) (*Mixture[V], error) {
	vsm, ok := m.(VectorScorerModel[V])
	if !ok {
		return nil, fmt.Errorf("%w: model family does not support mixtures", ErrUnsupported)
	}
	return &Mixture[V]{model: vsm}, nil
}

// Append adds one group at the end, id = current length. Only valid before
// Init.
func (x *Mixture[V]) Append(g Group[V]) error {
	if x.inited {
		return fmt.Errorf("%w: append after init (use AddGroup)", ErrInvalidArgument)
	}
	x.groups = append(x.groups, g)
	return nil
}

// Init finalizes the per-group scoring caches from the currently appended
// groups. Scoring reflects exactly those groups' statistics immediately
// after Init.
func (x *Mixture[V]) Init() error {
	cache, err := x.model.NewVectorScorer()
	if err != nil {
		return err
	}
	for _, g := range x.groups {
		if err := cache.Append(g); err != nil {
			return err
		}
	}
	x.cache = cache
	x.inited = true
	return nil
}

// Len returns the current number of groups.
func (x *Mixture[V]) Len() int { return len(x.groups) }

// Group returns the group at the given id.
func (x *Mixture[V]) Group(groupid int) (Group[V], error) {
	if err := x.checkID(groupid); err != nil {
		return nil, err
	}
	return x.groups[groupid], nil
}

// ScoreValue fills scores[i] with the predictive log probability of value
// under group i, in id order. The buffer must be sized exactly to Len;
// callers own the buffer so hot scoring loops allocate nothing.
func (x *Mixture[V]) ScoreValue(value V, scores []float64) error {
	if err := x.checkInit(); err != nil {
		return err
	}
	if len(scores) != len(x.groups) {
		return fmt.Errorf("%w: scores buffer length %d, want %d", ErrInvalidArgument, len(scores), len(x.groups))
	}
	return x.cache.ScoreValue(value, scores)
}

// AddValue incorporates value into the identified group and refreshes its
// scoring cache.
func (x *Mixture[V]) AddValue(groupid int, value V) error {
	if err := x.checkInit(); err != nil {
		return err
	}
	if err := x.checkID(groupid); err != nil {
		return err
	}
	if err := x.groups[groupid].Add(value); err != nil {
		return err
	}
	return x.cache.Update(groupid, x.groups[groupid])
}

// RemoveValue removes value from the identified group and refreshes its
// scoring cache. The value must previously have been added to that group.
func (x *Mixture[V]) RemoveValue(groupid int, value V) error {
	if err := x.checkInit(); err != nil {
		return err
	}
	if err := x.checkID(groupid); err != nil {
		return err
	}
	if err := x.groups[groupid].Remove(value); err != nil {
		return err
	}
	return x.cache.Update(groupid, x.groups[groupid])
}

// AddGroup appends one new empty group and returns its id (the old length).
func (x *Mixture[V]) AddGroup() (int, error) {
	if err := x.checkInit(); err != nil {
		return 0, err
	}
	g, err := x.model.NewGroup()
	if err != nil {
		return 0, err
	}
	if err := x.cache.Append(g); err != nil {
		return 0, err
	}
	x.groups = append(x.groups, g)
	return len(x.groups) - 1, nil
}

// RemoveGroup deletes the group at groupid. All ids greater than groupid
// shift down by one and Len decreases by one.
func (x *Mixture[V]) RemoveGroup(groupid int) error {
	if err := x.checkInit(); err != nil {
		return err
	}
	if err := x.checkID(groupid); err != nil {
		return err
	}
	if err := x.cache.Remove(groupid); err != nil {
		return err
	}
	x.groups = slices.Delete(x.groups, groupid, groupid+1)
	return nil
}

// DumpGroups serializes every group in id order, e.g. for snapshotting a
// mixture through the persist package.
func (x *Mixture[V]) DumpGroups() []dump.Value {
	dumps := make([]dump.Value, len(x.groups))
	for i, g := range x.groups {
		dumps[i] = g.Dump()
	}
	return dumps
}

func (x *Mixture[V]) checkInit() error {
	if !x.inited {
		return fmt.Errorf("%w: mixture not initialized", ErrInvalidArgument)
	}
	return nil
}

func (x *Mixture[V]) checkID(groupid int) error {
	if groupid < 0 || groupid >= len(x.groups) {
		return &GroupIDError{GroupID: groupid, Len: len(x.groups)}
	}
	return nil
}
