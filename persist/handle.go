package persist

// Handle is a non-owning, stable reference to a record inside the
// store. It caches the bucket and offset the record lives at so
// repeated access avoids a bucket lookup, but it never assumes the
// record is still alive: every access re-checks the record's
// signature and returns ErrStaleHandle if it has since been freed.
// Grounded on the original broker's Handle, which plays the same role
// over a raw mapped pointer.
type Handle struct {
	bucket *Bucket
	offset uint32
}

// NullHandle is the zero value Handle; it is always stale.
var NullHandle = Handle{}

// IsNull reports whether this handle was ever assigned a record.
func (h Handle) IsNull() bool {
	return h.bucket == nil
}

// Location returns the bucket-id/offset pair this handle refers to.
func (h Handle) Location() Location {
	if h.IsNull() {
		return Location{}
	}
	return Location{BucketID: h.bucket.id, Offset: h.offset}
}

// live validates that the record this handle points at is still
// allocated and returns its header. It takes the bucket lock itself,
// so callers must not already hold it.
func (h Handle) live() (recordHeader, error) {
	if h.IsNull() {
		return recordHeader{}, ErrStaleHandle
	}
	hdr := h.bucket.header(h.offset)
	if !hdr.allocated() {
		return recordHeader{}, ErrStaleHandle
	}
	return hdr, nil
}

// Type returns the record's payload type.
func (h Handle) Type() (RecordType, error) {
	hdr, err := h.live()
	if err != nil {
		return 0, err
	}
	return hdr.kind, nil
}

// Size returns the record's payload size in bytes.
func (h Handle) Size() (uint32, error) {
	hdr, err := h.live()
	if err != nil {
		return 0, err
	}
	return hdr.size, nil
}

// Data returns the record's payload bytes. The returned slice aliases
// mapped memory directly and must not be retained past a Free of this
// handle or of any other handle to the same record.
func (h Handle) Data() ([]byte, error) {
	if _, err := h.live(); err != nil {
		return nil, err
	}
	return h.bucket.payload(h.offset), nil
}

// Overwrite replaces the record's payload in place. len(payload) must
// not exceed the record's current size; grow operations must allocate
// a new record instead.
func (h Handle) Overwrite(payload []byte) error {
	if h.IsNull() {
		return ErrStaleHandle
	}
	return h.bucket.overwrite(h.offset, payload)
}

// Free releases the record this handle refers to. After Free, this
// handle and any copy of it is stale.
func (h Handle) Free() error {
	if h.IsNull() {
		return ErrStaleHandle
	}
	return h.bucket.free(h.offset)
}
