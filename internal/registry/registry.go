package registry

import (
	"fmt"
	"sort"

	"github.com/albapepper/scoracle-fusion/internal/source"
)

// Outcome reports what an Upsert or Ensure did.
type Outcome string

const (
	OutcomeUnchanged  Outcome = "unchanged"
	OutcomeCreated    Outcome = "created"
	OutcomeAttached   Outcome = "attached"
	OutcomeAbsorbed   Outcome = "absorbed"
	OutcomeReassigned Outcome = "reassigned"
	OutcomeRejected   Outcome = "rejected"
)

// Claim asks the registry to place two source ids on the same identity.
type Claim struct {
	A, B       source.Ref
	Method     Method
	Confidence float64
}

// Registry is the in-memory working copy of the identity table for one run.
// It is not safe for concurrent use; a run has exactly one writer.
type Registry struct {
	identities map[int64]*Identity
	holders    map[source.Ref]int64
	nextID     int64
	priority   FieldPriority
	changed    map[int64]bool
}

// New loads persisted identities. Loading fails if the rows already violate
// source-id uniqueness, since every later decision depends on it.
func New(existing []Identity, priority FieldPriority) (*Registry, error) {
	if priority == nil {
		priority = DefaultFieldPriority()
	}
	r := &Registry{
		identities: make(map[int64]*Identity, len(existing)),
		holders:    make(map[source.Ref]int64),
		nextID:     1,
		priority:   priority,
		changed:    make(map[int64]bool),
	}
	for _, in := range existing {
		id := in.clone()
		if _, dup := r.identities[id.PlayerID]; dup {
			return nil, fmt.Errorf("load registry: duplicate player_id %d", id.PlayerID)
		}
		r.identities[id.PlayerID] = &id
		if id.PlayerID >= r.nextID {
			r.nextID = id.PlayerID + 1
		}
		if id.MergedInto != nil {
			continue
		}
		for _, ref := range id.Refs() {
			if other, taken := r.holders[ref]; taken {
				return nil, fmt.Errorf("load registry: %s held by players %d and %d", ref, other, id.PlayerID)
			}
			r.holders[ref] = id.PlayerID
		}
	}
	return r, nil
}

// Len returns the number of identity rows, merged ones included.
func (r *Registry) Len() int { return len(r.identities) }

// Holder returns the identity holding ref.
func (r *Registry) Holder(ref source.Ref) (Identity, bool) {
	pid, ok := r.holders[ref]
	if !ok {
		return Identity{}, false
	}
	return r.identities[pid].clone(), true
}

// HolderID returns the player id holding ref, or 0.
func (r *Registry) HolderID(ref source.Ref) int64 {
	return r.holders[ref]
}

// Get returns one identity by player id.
func (r *Registry) Get(playerID int64) (Identity, bool) {
	id, ok := r.identities[playerID]
	if !ok {
		return Identity{}, false
	}
	return id.clone(), true
}

// Upsert places c.A and c.B on one identity, creating or extending it.
//
// A manual claim may displace an automatically attached id of the same
// source, unless that id is itself pinned to the identity by another manual
// pair. When both ids already have distinct holders, a provisional identity
// (one that holds a single id) is absorbed into the other; anything larger
// is a merge conflict left for review.
func (r *Registry) Upsert(c Claim, manual *source.ManualSet) (int64, Outcome, error) {
	if c.A.Source == c.B.Source || !c.A.Source.Valid() || !c.B.Source.Valid() {
		return 0, OutcomeRejected, fmt.Errorf("claim %s <-> %s: need two distinct known sources", c.A, c.B)
	}
	ha, heldA := r.holders[c.A]
	hb, heldB := r.holders[c.B]

	switch {
	case heldA && heldB && ha == hb:
		return ha, OutcomeUnchanged, nil

	case heldA && heldB:
		return r.absorb(c, ha, hb, manual)

	case heldA:
		return r.attach(c, ha, c.B, manual)

	case heldB:
		return r.attach(c, hb, c.A, manual)
	}

	id := r.create()
	id.setID(c.A.Source, c.A.ID)
	id.setID(c.B.Source, c.B.ID)
	r.holders[c.A] = id.PlayerID
	r.holders[c.B] = id.PlayerID
	return id.PlayerID, OutcomeCreated, nil
}

// Ensure gives ref an identity of its own if nothing holds it yet.
func (r *Registry) Ensure(ref source.Ref) (int64, Outcome) {
	if pid, ok := r.holders[ref]; ok {
		return pid, OutcomeUnchanged
	}
	id := r.create()
	id.setID(ref.Source, ref.ID)
	r.holders[ref] = id.PlayerID
	return id.PlayerID, OutcomeCreated
}

// Merge applies rec's attributes to the identity holding it under the field
// priority table. An empty field takes the first writer; a filled one is
// replaced only by the same source or a higher-ranked one.
func (r *Registry) Merge(rec source.Record) bool {
	pid, ok := r.holders[rec.Ref()]
	if !ok {
		return false
	}
	id := r.identities[pid]
	updated := false
	for _, f := range Fields {
		value := recordValue(rec, f)
		if value == "" {
			continue
		}
		holder, written := id.FieldSources[f]
		if written && !r.priority.Wins(f, rec.Source, holder) {
			continue
		}
		if written && holder == rec.Source && id.Attr(f) == value {
			continue
		}
		id.setAttr(f, value, rec.Source)
		updated = true
	}
	if updated {
		r.changed[pid] = true
	}
	return updated
}

// Identities returns copies of every row ordered by player id.
func (r *Registry) Identities() []Identity {
	out := make([]Identity, 0, len(r.identities))
	for _, id := range r.identities {
		out = append(out, id.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// Active returns the identities that still hold at least one source id.
func (r *Registry) Active() []Identity {
	var out []Identity
	for _, id := range r.Identities() {
		if id.Active() {
			out = append(out, id)
		}
	}
	return out
}

// Changed returns the rows created or modified since New, by player id.
func (r *Registry) Changed() []Identity {
	var out []Identity
	for pid := range r.changed {
		out = append(out, r.identities[pid].clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

func (r *Registry) create() *Identity {
	id := &Identity{PlayerID: r.nextID}
	r.nextID++
	r.identities[id.PlayerID] = id
	r.changed[id.PlayerID] = true
	return id
}

func (r *Registry) attach(c Claim, holderID int64, free source.Ref, manual *source.ManualSet) (int64, Outcome, error) {
	id := r.identities[holderID]
	current, has := id.ID(free.Source)
	if !has {
		id.setID(free.Source, free.ID)
		r.holders[free] = holderID
		r.changed[holderID] = true
		return holderID, OutcomeAttached, nil
	}

	held := source.Ref{Source: free.Source, ID: current}
	if c.Method == MethodManual && !r.pinned(id, held, manual) {
		delete(r.holders, held)
		id.setID(free.Source, free.ID)
		r.holders[free] = holderID
		r.changed[holderID] = true
		return holderID, OutcomeReassigned, nil
	}
	return 0, OutcomeRejected, &ConflictError{
		Kind:      ErrSourceIDTaken,
		Claim:     c,
		PlayerIDs: []int64{holderID},
		Held:      held,
	}
}

// pinned reports whether held is tied to id by a manual pair with any other
// id the identity holds.
func (r *Registry) pinned(id *Identity, held source.Ref, manual *source.ManualSet) bool {
	for _, ref := range id.Refs() {
		if ref != held && manual.Names(held, ref) {
			return true
		}
	}
	return false
}

func (r *Registry) absorb(c Claim, ha, hb int64, manual *source.ManualSet) (int64, Outcome, error) {
	a, b := r.identities[ha], r.identities[hb]
	provA, provB := a.SourcesLinked() == 1, b.SourcesLinked() == 1

	var survivor, absorbed *Identity
	switch {
	case provA && provB:
		survivor, absorbed = a, b
		if b.PlayerID < a.PlayerID {
			survivor, absorbed = b, a
		}
	case provA:
		survivor, absorbed = b, a
	case provB:
		survivor, absorbed = a, b
	default:
		return 0, OutcomeRejected, &ConflictError{
			Kind:      ErrMergeConflict,
			Claim:     c,
			PlayerIDs: sortedIDs(ha, hb),
		}
	}

	moved := absorbed.Refs()[0]
	if current, has := survivor.ID(moved.Source); has {
		held := source.Ref{Source: moved.Source, ID: current}
		if c.Method != MethodManual || r.pinned(survivor, held, manual) {
			return 0, OutcomeRejected, &ConflictError{
				Kind:      ErrSourceIDTaken,
				Claim:     c,
				PlayerIDs: []int64{survivor.PlayerID},
				Held:      held,
			}
		}
		delete(r.holders, held)
	}

	absorbed.clearID(moved.Source)
	into := survivor.PlayerID
	absorbed.MergedInto = &into
	survivor.setID(moved.Source, moved.ID)
	r.holders[moved] = survivor.PlayerID
	for f, src := range absorbed.FieldSources {
		v := absorbed.Attr(f)
		holder, written := survivor.FieldSources[f]
		if v != "" && (!written || r.priority.Wins(f, src, holder)) && !(written && holder == src) {
			survivor.setAttr(f, v, src)
		}
	}
	r.changed[survivor.PlayerID] = true
	r.changed[absorbed.PlayerID] = true
	return survivor.PlayerID, OutcomeAbsorbed, nil
}

func sortedIDs(a, b int64) []int64 {
	if b < a {
		return []int64{b, a}
	}
	return []int64{a, b}
}
