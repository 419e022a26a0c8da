package persist

import "sort"

// FreeIndex tracks the free extents of one bucket from two angles: by
// offset, so a freed extent can be coalesced with its neighbours, and
// by size, so allocation can pick a best fit. Grounded on the original
// broker's MemoryBucket::FreeBlocks (an offset-ordered map paired with a
// size-ordered multimap).
type FreeIndex struct {
	byOffset map[uint32]uint32          // offset -> size
	bySize   map[uint32]map[uint32]bool // size -> set of offsets
}

func newFreeIndex() *FreeIndex {
	return &FreeIndex{
		byOffset: make(map[uint32]uint32),
		bySize:   make(map[uint32]map[uint32]bool),
	}
}

func (fi *FreeIndex) addSize(size, offset uint32) {
	set, ok := fi.bySize[size]
	if !ok {
		set = make(map[uint32]bool)
		fi.bySize[size] = set
	}
	set[offset] = true
}

func (fi *FreeIndex) removeSize(size, offset uint32) {
	set, ok := fi.bySize[size]
	if !ok {
		return
	}
	delete(set, offset)
	if len(set) == 0 {
		delete(fi.bySize, size)
	}
}

// load registers a free extent discovered at startup scan or at bucket
// creation, without attempting to coalesce (the caller scans in offset
// order and extents discovered this way are already maximal).
func (fi *FreeIndex) load(offset, size uint32) {
	fi.byOffset[offset] = size
	fi.addSize(size, offset)
}

// free registers a newly freed extent and coalesces it with any
// adjacent free extent on either side.
func (fi *FreeIndex) free(offset, size uint32) {
	// Merge with the extent immediately before this one, if free.
	for prevOffset, prevSize := range fi.byOffset {
		if prevOffset+prevSize == offset {
			fi.removeSize(prevSize, prevOffset)
			delete(fi.byOffset, prevOffset)
			offset = prevOffset
			size += prevSize
			break
		}
	}

	// Merge with the extent immediately after this one, if free.
	if nextSize, ok := fi.byOffset[offset+size]; ok {
		fi.removeSize(nextSize, offset+size)
		delete(fi.byOffset, offset+size)
		size += nextSize
	}

	fi.byOffset[offset] = size
	fi.addSize(size, offset)
}

// alloc finds the smallest free extent that fits `need` bytes (best
// fit), removes it from the index, and returns its offset plus the
// leftover bytes to re-index as a smaller free extent (0 if the extent
// was consumed exactly). ok is false if no extent fits.
func (fi *FreeIndex) alloc(need uint32) (offset uint32, leftover uint32, ok bool) {
	sizes := make([]uint32, 0, len(fi.bySize))
	for size := range fi.bySize {
		if size >= need {
			sizes = append(sizes, size)
		}
	}
	if len(sizes) == 0 {
		return 0, 0, false
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })

	bestSize := sizes[0]
	var bestOffset uint32
	for off := range fi.bySize[bestSize] {
		bestOffset = off
		break
	}

	fi.removeSize(bestSize, bestOffset)
	delete(fi.byOffset, bestOffset)

	leftover = bestSize - need
	if leftover > 0 {
		fi.byOffset[bestOffset+need] = leftover
		fi.addSize(leftover, bestOffset+need)
	}

	return bestOffset, leftover, true
}

// available returns the sum of all free extent sizes.
func (fi *FreeIndex) available() uint32 {
	var total uint32
	for _, size := range fi.byOffset {
		total += size
	}
	return total
}

// count returns the number of distinct free extents.
func (fi *FreeIndex) count() int {
	return len(fi.byOffset)
}

// clear empties the index, used when a bucket is reset.
func (fi *FreeIndex) clear() {
	fi.byOffset = make(map[uint32]uint32)
	fi.bySize = make(map[uint32]map[uint32]bool)
}
