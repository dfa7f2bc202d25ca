package evmapi

import (
	"math"

	"github.com/ethereum/go-ethereum/common"
)

// EvmApiInk is the flat ink cost of crossing the host boundary at all,
// charged once per request that actually leaves the cache.
const EvmApiInk = 59673

// Cached accesses are priced in tiers: the access count determines the cost
// of each further read or write. The exact numbers are deployment
// parameters shared with the host's gas schedule.
const (
	storageReadTier1  = 32
	storageReadTier2  = 128
	storageWriteTier1 = 8
	storageWriteTier2 = 64

	storageReadTier2Cost  = 2
	storageWriteTier2Cost = 7
	storageTier3Cost      = 10
)

// storageWord is one cached slot. known tracks the last value confirmed
// synced with the host; nil means the slot was written before ever being
// read. A word is dirty iff known is nil or differs from value.
type storageWord struct {
	value common.Hash
	known *common.Hash
}

func knownWord(value common.Hash) *storageWord {
	known := value
	return &storageWord{value: value, known: &known}
}

func unknownWord(value common.Hash) *storageWord {
	return &storageWord{value: value}
}

func (w *storageWord) dirty() bool {
	return w.known == nil || *w.known != w.value
}

type storageCache struct {
	slots  map[common.Hash]*storageWord
	reads  int
	writes int
}

func newStorageCache() storageCache {
	return storageCache{slots: make(map[common.Hash]*storageWord)}
}

// readGas prices the next cached read.
func (c *storageCache) readGas() uint64 {
	c.reads++
	switch {
	case c.reads <= storageReadTier1:
		return 0
	case c.reads <= storageReadTier2:
		return storageReadTier2Cost
	default:
		return storageTier3Cost
	}
}

// writeGas prices the next cached write.
func (c *storageCache) writeGas() uint64 {
	c.writes++
	switch {
	case c.writes <= storageWriteTier1:
		return 0
	case c.writes <= storageWriteTier2:
		return storageWriteTier2Cost
	default:
		return storageTier3Cost
	}
}

// clear drops every slot but keeps the access counters, which meter the
// whole execution rather than one cache generation.
func (c *storageCache) clear() {
	c.slots = make(map[common.Hash]*storageWord)
}

func saturatingAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return math.MaxUint64
}
