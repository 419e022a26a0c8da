package persist

import "errors"

var (
	ErrStoreClosed      = errors.New("persistent store is closed")
	ErrBucketClosed     = errors.New("bucket is closed")
	ErrBucketFull       = errors.New("bucket has no extent large enough for this allocation")
	ErrRecordTooLarge   = errors.New("record payload exceeds maximum size (2^32-1 bytes)")
	ErrStaleHandle      = errors.New("handle no longer references an allocated record")
	ErrStoreCorrupt     = errors.New("persistent store is corrupt")
	ErrListAlreadyOpen  = errors.New("a PersistentList with this name is already open")
	ErrListNotFound     = errors.New("no PersistentList with this name exists")
	ErrInvalidBucketID  = errors.New("bucket-id 0 is reserved as null")
	ErrManifestMismatch = errors.New("manifest bucket size does not match on-disk bucket size")
)
