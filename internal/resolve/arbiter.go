package resolve

import (
	"errors"
	"math"
	"sort"

	"github.com/albapepper/scoracle-fusion/internal/registry"
)

// Accepted is a proposal the registry applied.
type Accepted struct {
	Proposal
	PlayerID int64
	Outcome  registry.Outcome
}

// Demotion is a proposal that lost to a stronger one. It is exported for
// review with its score, never dropped.
type Demotion struct {
	Proposal
	Reason    string
	PlayerIDs []int64
	Err       error
}

// MergeConflict reports whether the demotion touches two established
// identities, the highest review priority.
func (d Demotion) MergeConflict() bool {
	return errors.Is(d.Err, registry.ErrMergeConflict)
}

// ArbiterResult is the outcome of applying one run's proposals.
type ArbiterResult struct {
	Accepted []Accepted
	Demoted  []Demotion
}

// Evidence returns both endpoints of every accepted proposal, as consumed by
// registry.Links.
func (a ArbiterResult) Evidence() []registry.Evidence {
	out := make([]registry.Evidence, 0, 2*len(a.Accepted))
	for _, acc := range a.Accepted {
		out = append(out, registry.EvidenceFor(acc.Claim(), acc.PlayerID)...)
	}
	return out
}

// Arbiter is the single writer of the registry during a run.
type Arbiter struct {
	run *Run
	reg *registry.Registry
}

// NewArbiter binds an arbiter to the run's registry.
func NewArbiter(run *Run, reg *registry.Registry) *Arbiter {
	return &Arbiter{run: run, reg: reg}
}

// Apply ranks every proposal globally and applies them in that order:
// confidence, then method priority, then the earliest identity either
// endpoint already belongs to, then the endpoint refs. Whatever the registry
// rejects is demoted, which keeps every source id on at most one identity.
func (a *Arbiter) Apply(proposals []Proposal) ArbiterResult {
	ranked := make([]rankedProposal, len(proposals))
	for i, p := range proposals {
		ranked[i] = rankedProposal{Proposal: p, earliest: a.earliest(p)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].before(ranked[j]) })

	var result ArbiterResult
	for _, rp := range ranked {
		pid, outcome, err := a.reg.Upsert(rp.Claim(), a.run.Manual)
		if err == nil {
			result.Accepted = append(result.Accepted, Accepted{Proposal: rp.Proposal, PlayerID: pid, Outcome: outcome})
			continue
		}

		d := Demotion{Proposal: rp.Proposal, Reason: "rejected", Err: err}
		var conflict *registry.ConflictError
		if errors.As(err, &conflict) {
			d.Reason = conflict.Reason()
			d.PlayerIDs = conflict.PlayerIDs
		}
		a.run.Logger.Info("proposal demoted",
			"x", rp.X.String(),
			"y", rp.Y.String(),
			"method", rp.Method,
			"score", rp.Score,
			"reason", d.Reason,
		)
		result.Demoted = append(result.Demoted, d)
	}
	return result
}

// earliest is the lowest player id already holding either endpoint. Player
// ids are allocated in creation order.
func (a *Arbiter) earliest(p Proposal) int64 {
	e := int64(math.MaxInt64)
	for _, pid := range []int64{a.reg.HolderID(p.X), a.reg.HolderID(p.Y)} {
		if pid > 0 && pid < e {
			e = pid
		}
	}
	return e
}

type rankedProposal struct {
	Proposal
	earliest int64
}

func (p rankedProposal) before(o rankedProposal) bool {
	if math.Abs(p.Confidence-o.Confidence) > epsilon {
		return p.Confidence > o.Confidence
	}
	if pp, op := p.Method.Priority(), o.Method.Priority(); pp != op {
		return pp < op
	}
	if p.earliest != o.earliest {
		return p.earliest < o.earliest
	}
	if c := p.X.Compare(o.X); c != 0 {
		return c < 0
	}
	return p.Y.Compare(o.Y) < 0
}
