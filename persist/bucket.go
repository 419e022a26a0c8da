package persist

import (
	"fmt"
	"sync"
)

// DefaultBucketSize is the size of a freshly created bucket file, the
// same default the original broker used for its memory-mapped segments.
const DefaultBucketSize int64 = 64 * 1024 * 1024

// Bucket is one memory-mapped segment of the store. Allocation within a
// bucket is guarded by the bucket's own mutex so that concurrent inserts
// into different buckets never contend with each other, per the
// store's per-bucket locking model.
type Bucket struct {
	mu      sync.Mutex
	id      uint16
	mf      *mappedFile
	freeIdx *FreeIndex
	dirty   bool
}

// openBucket opens (creating if necessary) the bucket file at path and
// recovers its free index by rescanning record signatures.
func openBucket(id uint16, path string, size int64) (*Bucket, error) {
	if id == 0 {
		return nil, ErrInvalidBucketID
	}
	mf, err := openMappedFile(path, size)
	if err != nil {
		return nil, err
	}
	b := &Bucket{id: id, mf: mf, freeIdx: newFreeIndex()}
	if err := b.recover(); err != nil {
		mf.Close()
		return nil, err
	}
	return b, nil
}

// recover rescans the bucket's records from offset 0, rebuilding the
// free index from signatures rather than trusting any persisted free
// list. A bucket that has never been written is a single free extent
// spanning the whole file.
func (b *Bucket) recover() error {
	data := b.mf.data
	total := uint32(len(data))
	var offset uint32

	for offset+recordHeaderSize <= total {
		hdr := decodeRecordHeader(data[offset:])

		switch hdr.signature {
		case signatureAllocated, signatureFree:
			span := recordSpan(hdr.size)
			if offset+span > total || span < recordHeaderSize {
				return fmt.Errorf("%w: bucket %d record at offset %d has invalid span",
					ErrStoreCorrupt, b.id, offset)
			}
			if hdr.signature == signatureFree {
				b.freeIdx.load(offset, span)
			}
			offset += span
		case 0:
			// Untouched tail of the file: one trailing free extent.
			b.freeIdx.load(offset, total-offset)
			return nil
		default:
			return fmt.Errorf("%w: bucket %d has an unrecognized record signature at offset %d",
				ErrStoreCorrupt, b.id, offset)
		}
	}
	return nil
}

// available returns the number of free bytes in this bucket, including
// header overhead that would be consumed by a new allocation.
func (b *Bucket) available() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.freeIdx.available()
}

// size returns the full mapped size of the bucket file.
func (b *Bucket) size() int64 {
	return int64(len(b.mf.data))
}

// insert writes a new record of the given type and payload into the
// first best-fitting free extent, returning the offset it was written
// at. Returns ErrBucketFull if no extent is large enough.
func (b *Bucket) insert(kind RecordType, payload []byte) (uint32, error) {
	if len(payload) > 1<<32-1-recordHeaderSize {
		return 0, ErrRecordTooLarge
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	need := recordSpan(uint32(len(payload)))
	offset, leftover, ok := b.freeIdx.alloc(need)
	if !ok {
		return 0, ErrBucketFull
	}

	hdr := recordHeader{signature: signatureAllocated, kind: kind, size: uint32(len(payload))}
	encodeRecordHeader(b.mf.data[offset:], hdr)
	copy(b.mf.data[offset+recordHeaderSize:], payload)

	if leftover > 0 {
		// The unused tail of the chosen extent becomes its own free
		// record so a future recovery scan can see it directly.
		tailOffset := offset + need
		if leftover >= recordHeaderSize {
			encodeRecordHeader(b.mf.data[tailOffset:], recordHeader{
				signature: signatureFree,
				size:      leftover - recordHeaderSize,
			})
		}
	}

	b.dirty = true
	return offset, nil
}

// free marks the record at offset as free and coalesces it into the
// free index. The caller is responsible for validating the offset
// refers to a live, allocated record (Handle does this).
func (b *Bucket) free(offset uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	hdr := decodeRecordHeader(b.mf.data[offset:])
	if hdr.signature != signatureAllocated {
		return ErrStaleHandle
	}
	span := recordSpan(hdr.size)

	encodeRecordHeader(b.mf.data[offset:], recordHeader{signature: signatureFree, size: hdr.size})
	b.freeIdx.free(offset, span)
	b.dirty = true
	return nil
}

// header reads the record header at offset without holding the lock
// across the caller's use of the returned value; callers that need a
// consistent read/write pair should go through insert/free/read.
func (b *Bucket) header(offset uint32) recordHeader {
	b.mu.Lock()
	defer b.mu.Unlock()
	return decodeRecordHeader(b.mf.data[offset:])
}

// payload returns a slice of the record's payload bytes at offset. The
// slice aliases the mapped memory directly; callers must not retain it
// past a Free() of the owning handle.
func (b *Bucket) payload(offset uint32) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	hdr := decodeRecordHeader(b.mf.data[offset:])
	start := offset + recordHeaderSize
	return b.mf.data[start : start+hdr.size]
}

// overwrite replaces the payload bytes of an existing allocated record
// in place. The caller must ensure len(payload) does not exceed the
// record's current size.
func (b *Bucket) overwrite(offset uint32, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	hdr := decodeRecordHeader(b.mf.data[offset:])
	if hdr.signature != signatureAllocated {
		return ErrStaleHandle
	}
	if uint32(len(payload)) > hdr.size {
		return ErrRecordTooLarge
	}
	start := offset + recordHeaderSize
	copy(b.mf.data[start:], payload)
	b.dirty = true
	return nil
}

func (b *Bucket) sync() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty {
		return nil
	}
	if err := b.mf.Sync(); err != nil {
		return err
	}
	b.dirty = false
	return nil
}

// findListHeader scans this bucket's live records for a list header
// whose name matches, used when Store.List reopens a list that already
// exists on disk.
func (b *Bucket) findListHeader(name string) (Handle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := b.mf.data
	total := uint32(len(data))
	var offset uint32
	for offset+recordHeaderSize <= total {
		hdr := decodeRecordHeader(data[offset:])
		if hdr.signature == 0 {
			break
		}
		span := recordSpan(hdr.size)
		if offset+span > total {
			break
		}
		if hdr.signature == signatureAllocated && hdr.kind == TypeListHeader {
			payload := data[offset+recordHeaderSize : offset+recordHeaderSize+hdr.size]
			_, name2 := decodeHeaderPayload(payload)
			if name2 == name {
				return Handle{bucket: b, offset: offset}, true
			}
		}
		offset += span
	}
	return Handle{}, false
}

func (b *Bucket) close() error {
	if err := b.sync(); err != nil {
		b.mf.Close()
		return err
	}
	return b.mf.Close()
}
