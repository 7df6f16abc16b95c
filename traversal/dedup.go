package traversal

import "sync/atomic"

// DeleteDedup suppresses re-delivery of delete events already emitted in
// the most recently checkpointed batch. The audit timestamp only has
// second precision, so a "from timestamp" continuation can replay rows at
// the boundary; this cache is what makes that replay idempotent.
//
// The published set is immutable: writers build a fresh set and swap the
// reference, so a concurrent reader of the old snapshot is never affected
// by a publish in progress.
type DeleteDedup struct {
	snapshot atomic.Value // map[int64]struct{}
}

func NewDeleteDedup() *DeleteDedup {
	dedup := &DeleteDedup{}
	dedup.snapshot.Store(map[int64]struct{}{})
	return dedup
}

func (d *DeleteDedup) load() map[int64]struct{} {
	return d.snapshot.Load().(map[int64]struct{})
}

// Contains reports whether the node id was delivered in the last batch.
func (d *DeleteDedup) Contains(id int64) bool {
	_, found := d.load()[id]
	return found
}

// ContainsAll reports whether every id was already delivered; the indexed
// delete strategy uses it to short-circuit a fully-cached result set.
func (d *DeleteDedup) ContainsAll(ids []int64) bool {
	delivered := d.load()
	for _, id := range ids {
		if _, found := delivered[id]; !found {
			return false
		}
	}
	return true
}

// Publish replaces the snapshot with the ids delivered by the batch that
// was just checkpointed. The previous snapshot is never mutated.
func (d *DeleteDedup) Publish(ids []int64) {
	delivered := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		delivered[id] = struct{}{}
	}
	d.snapshot.Store(delivered)
}
