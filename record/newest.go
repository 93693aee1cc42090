package record

import "sync/atomic"

// newestValue is the immutable payload swapped into a NewestPtr: either a
// direct target, or a forwarding indirection to another NewestPtr. Exactly
// one of target/forwardTo is set.
//
// This mirrors the source algorithm's tagged pointer (low bit set means
// "the value minus one is the address of another atomic that must be
// reloaded"): here the tag is the Go type system rather than a stolen bit,
// and the "atomic that must be reloaded" is another *NewestPtr rather than
// a raw address, so the chase stays type- and memory-safe.
type newestValue struct {
	target    Entry
	forwardTo *NewestPtr
}

// NewestPtr is the per-key indirection cell GC swings to forward readers
// from an absorbed chain onto its freshly compacted replacement (spec
// section 4.7, "Forwarding"). Only Insert and MVRecord entries own one;
// Update and Delete entries never do, matching the source algorithm.
type NewestPtr struct {
	v atomic.Pointer[newestValue]
}

// NewNewestPtr creates a cell directly pointing at target.
func NewNewestPtr(target Entry) *NewestPtr {
	p := &NewestPtr{}
	p.v.Store(&newestValue{target: target})
	return p
}

// Resolve chases any forwarding chain and returns the live target.
func (p *NewestPtr) Resolve() Entry {
	cur := p
	for {
		v := cur.v.Load()
		if v == nil {
			return nil
		}
		if v.forwardTo != nil {
			cur = v.forwardTo
			continue
		}
		return v.target
	}
}

// snapshot returns the raw cell contents, for use as the CAS witness.
func (p *NewestPtr) snapshot() *newestValue { return p.v.Load() }

// CompareAndSwap atomically replaces the current target with next,
// succeeding only if the cell still holds exactly the value last observed
// via Resolve/snapshot (witness). This is the write-write conflict gate:
// callers pass the Entry they read as witness and fail the CAS (hence the
// write) if someone else already advanced the chain. Forwarding is chased
// first, so the swap lands on the same cell Resolve reads from.
func (p *NewestPtr) CompareAndSwap(witness Entry, next Entry) bool {
	cur := p
	for {
		old := cur.v.Load()
		if old == nil {
			return false
		}
		if old.forwardTo != nil {
			cur = old.forwardTo
			continue
		}
		if old.target != witness {
			return false
		}
		return cur.v.CompareAndSwap(old, &newestValue{target: next})
	}
}

// Forward atomically redirects the live cell reached from this one (after
// chasing any earlier forwarding) to target, the mechanism GC uses to
// retarget every absorbed key's newest pointer onto its freshly compacted
// replacement without blocking concurrent readers or writers.
func (p *NewestPtr) Forward(witness Entry, target *NewestPtr) bool {
	cur := p
	for {
		old := cur.v.Load()
		if old == nil {
			return false
		}
		if old.forwardTo != nil {
			cur = old.forwardTo
			continue
		}
		if old.target != witness {
			return false
		}
		return cur.v.CompareAndSwap(old, &newestValue{forwardTo: target})
	}
}
