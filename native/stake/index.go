package stake

import (
	"fmt"
	"sort"
)

// Ordering selects one of the six derived orderings maintained over the
// position store.
type Ordering uint8

const (
	OrderByOwner Ordering = iota
	OrderByAmount
	OrderByStakedTime
	OrderByExpirationTime
	OrderByDuration
	OrderByRate
)

// ParseOrdering maps the wire names used by the query surface onto orderings.
func ParseOrdering(name string) (Ordering, error) {
	switch name {
	case "", "owner":
		return OrderByOwner, nil
	case "amount":
		return OrderByAmount, nil
	case "stakedtime":
		return OrderByStakedTime, nil
	case "exptime":
		return OrderByExpirationTime, nil
	case "duration":
		return OrderByDuration, nil
	case "rate":
		return OrderByRate, nil
	default:
		return 0, fmt.Errorf("%w: unknown ordering %q", ErrInvalid, name)
	}
}

type ownerEntry struct {
	owner string
	id    uint64
}

type numEntry struct {
	key uint64
	id  uint64
}

// PositionIndex keeps the six derived orderings consistent with the primary
// id -> position map. Every mutation of the primary store must flow through
// Insert, Update or Remove inside the same critical section, so the orderings
// never diverge from the primary records across an operation boundary.
type PositionIndex struct {
	byOwner    []ownerEntry
	byAmount   []numEntry
	byStaked   []numEntry
	byExpires  []numEntry
	byDuration []numEntry
	byRate     []numEntry
}

// NewPositionIndex returns an empty index.
func NewPositionIndex() *PositionIndex {
	return &PositionIndex{}
}

// Insert adds the position to all six orderings.
func (ix *PositionIndex) Insert(p *Position) {
	if p == nil {
		return
	}
	ix.byOwner = insertOwner(ix.byOwner, ownerEntry{owner: p.Owner, id: p.ID})
	ix.byAmount = insertNum(ix.byAmount, numEntry{key: amountKey(p), id: p.ID})
	ix.byStaked = insertNum(ix.byStaked, numEntry{key: uint64(p.StakedAt), id: p.ID})
	ix.byExpires = insertNum(ix.byExpires, numEntry{key: uint64(p.ExpiresAt), id: p.ID})
	ix.byDuration = insertNum(ix.byDuration, numEntry{key: uint64(p.DurationSeconds()), id: p.ID})
	ix.byRate = insertNum(ix.byRate, numEntry{key: p.rateKey(), id: p.ID})
}

// Remove deletes the position from all six orderings. The supplied position
// must carry the same derived keys as the indexed instance.
func (ix *PositionIndex) Remove(p *Position) {
	if p == nil {
		return
	}
	ix.byOwner = removeOwner(ix.byOwner, ownerEntry{owner: p.Owner, id: p.ID})
	ix.byAmount = removeNum(ix.byAmount, numEntry{key: amountKey(p), id: p.ID})
	ix.byStaked = removeNum(ix.byStaked, numEntry{key: uint64(p.StakedAt), id: p.ID})
	ix.byExpires = removeNum(ix.byExpires, numEntry{key: uint64(p.ExpiresAt), id: p.ID})
	ix.byDuration = removeNum(ix.byDuration, numEntry{key: uint64(p.DurationSeconds()), id: p.ID})
	ix.byRate = removeNum(ix.byRate, numEntry{key: p.rateKey(), id: p.ID})
}

// Update re-keys the position after a mutation. prev must be the instance as
// previously indexed.
func (ix *PositionIndex) Update(prev, next *Position) {
	ix.Remove(prev)
	ix.Insert(next)
}

// OwnerIDs returns the ids of every position owned by the account, ascending
// by id.
func (ix *PositionIndex) OwnerIDs(owner string) []uint64 {
	start := sort.Search(len(ix.byOwner), func(i int) bool {
		return ix.byOwner[i].owner >= owner
	})
	var ids []uint64
	for i := start; i < len(ix.byOwner) && ix.byOwner[i].owner == owner; i++ {
		ids = append(ids, ix.byOwner[i].id)
	}
	return ids
}

// DurationIDs returns the ids of every position whose total duration equals
// the given number of seconds.
func (ix *PositionIndex) DurationIDs(seconds int64) []uint64 {
	key := uint64(seconds)
	start := sort.Search(len(ix.byDuration), func(i int) bool {
		return ix.byDuration[i].key >= key
	})
	var ids []uint64
	for i := start; i < len(ix.byDuration) && ix.byDuration[i].key == key; i++ {
		ids = append(ids, ix.byDuration[i].id)
	}
	return ids
}

// IDs returns every position id in the requested ordering.
func (ix *PositionIndex) IDs(ordering Ordering) []uint64 {
	switch ordering {
	case OrderByOwner:
		ids := make([]uint64, len(ix.byOwner))
		for i, e := range ix.byOwner {
			ids[i] = e.id
		}
		return ids
	case OrderByAmount:
		return numIDs(ix.byAmount)
	case OrderByStakedTime:
		return numIDs(ix.byStaked)
	case OrderByExpirationTime:
		return numIDs(ix.byExpires)
	case OrderByDuration:
		return numIDs(ix.byDuration)
	case OrderByRate:
		return numIDs(ix.byRate)
	default:
		return nil
	}
}

// Len returns the number of indexed positions.
func (ix *PositionIndex) Len() int {
	return len(ix.byOwner)
}

func amountKey(p *Position) uint64 {
	if p.Staked.Amount == nil {
		return 0
	}
	// Amounts are capped at MaxAssetAmount on entry, so Uint64 is lossless.
	return p.Staked.Amount.Uint64()
}

func numIDs(entries []numEntry) []uint64 {
	ids := make([]uint64, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

func insertOwner(entries []ownerEntry, e ownerEntry) []ownerEntry {
	at := sort.Search(len(entries), func(i int) bool {
		if entries[i].owner != e.owner {
			return entries[i].owner > e.owner
		}
		return entries[i].id >= e.id
	})
	entries = append(entries, ownerEntry{})
	copy(entries[at+1:], entries[at:])
	entries[at] = e
	return entries
}

func removeOwner(entries []ownerEntry, e ownerEntry) []ownerEntry {
	at := sort.Search(len(entries), func(i int) bool {
		if entries[i].owner != e.owner {
			return entries[i].owner > e.owner
		}
		return entries[i].id >= e.id
	})
	if at < len(entries) && entries[at] == e {
		entries = append(entries[:at], entries[at+1:]...)
	}
	return entries
}

func insertNum(entries []numEntry, e numEntry) []numEntry {
	at := sort.Search(len(entries), func(i int) bool {
		if entries[i].key != e.key {
			return entries[i].key > e.key
		}
		return entries[i].id >= e.id
	})
	entries = append(entries, numEntry{})
	copy(entries[at+1:], entries[at:])
	entries[at] = e
	return entries
}

func removeNum(entries []numEntry, e numEntry) []numEntry {
	at := sort.Search(len(entries), func(i int) bool {
		if entries[i].key != e.key {
			return entries[i].key > e.key
		}
		return entries[i].id >= e.id
	})
	if at < len(entries) && entries[at] == e {
		entries = append(entries[:at], entries[at+1:]...)
	}
	return entries
}
