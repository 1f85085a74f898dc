package dedup

// Index is the in-memory view of the deduplication set for one sync run.
// It is owned exclusively by the active run; persistence happens through
// the store's batch commits. A full resync starts from an empty index,
// an incremental pass is seeded from the persisted keys.
type Index struct {
	seen map[string]struct{}
}

// NewIndex builds an index seeded with previously persisted keys.
// Pass nil for a full resync.
func NewIndex(seeded map[string]struct{}) *Index {
	if seeded == nil {
		seeded = make(map[string]struct{})
	}
	return &Index{seen: seeded}
}

// Seen reports whether the key has already been counted.
func (i *Index) Seen(key string) bool {
	_, ok := i.seen[key]
	return ok
}

// MarkSeen records the key as counted.
func (i *Index) MarkSeen(key string) {
	i.seen[key] = struct{}{}
}

// Len returns the number of tracked keys.
func (i *Index) Len() int {
	return len(i.seen)
}
