package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// bucketFileName returns the on-disk filename for a bucket-id, zero
// padded to 5 digits so a directory listing sorts in bucket-id order.
func bucketFileName(id uint16) string {
	return fmt.Sprintf("%05d.bucket", id)
}

// Store is a directory of buckets forming one persistent heap. It
// selects a bucket for each insert using best-fit across all open
// buckets, creating a new bucket when none has room, and maintains a
// registry so at most one in-memory PersistentList exists per name.
type Store struct {
	mu     sync.Mutex // guards buckets, manifest, closed
	listMu sync.Mutex // guards lists; held for the whole open-or-create so
	// two callers never race to create the same named list twice
	root       string
	bucketSize int64
	buckets    map[uint16]*Bucket
	lists      map[string]*PersistentList
	manifest   *Manifest
	closed     bool
}

// Open opens (creating if necessary) a store rooted at dir. bucketSize
// is used when creating new buckets; existing buckets keep their own
// on-disk size.
func Open(dir string, bucketSize int64) (*Store, error) {
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	manifest, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		root:       dir,
		bucketSize: bucketSize,
		buckets:    make(map[uint16]*Bucket),
		lists:      make(map[string]*PersistentList),
		manifest:   manifest,
	}

	if err := s.recoverBuckets(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) recoverBuckets() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("list store directory: %w", err)
	}

	var ids []uint16
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var id uint16
		if _, err := fmt.Sscanf(e.Name(), "%05d.bucket", &id); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		path := filepath.Join(s.root, bucketFileName(id))
		size := s.bucketSize
		if recorded, ok := s.manifest.bucketSize(id); ok {
			size = recorded
		} else if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			// No manifest entry: keep the bucket's on-disk length.
			size = info.Size()
		}
		b, err := openBucket(id, path, size)
		if err != nil {
			return err
		}
		s.buckets[id] = b
		s.manifest.setBucketSize(id, b.size())
	}
	return s.manifest.save(s.root)
}

func (s *Store) maxBucketID() uint16 {
	var max uint16
	for id := range s.buckets {
		if id > max {
			max = id
		}
	}
	return max
}

func (s *Store) createBucket() (*Bucket, error) {
	id := s.maxBucketID() + 1
	if id == 0 {
		return nil, ErrInvalidBucketID // wrapped past uint16 max
	}
	b, err := openBucket(id, filepath.Join(s.root, bucketFileName(id)), s.bucketSize)
	if err != nil {
		return nil, err
	}
	s.buckets[id] = b
	s.manifest.setBucketSize(id, b.size())
	return b, s.manifest.save(s.root)
}

// insert allocates space for payload across the store's buckets using
// best-fit by total free bytes: it picks the open bucket with the least
// free space that still covers the record's span, falling back to a
// freshly created bucket when no bucket has that much free space or
// the chosen bucket's free space has no single extent large enough.
func (s *Store) insert(kind RecordType, payload []byte) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Handle{}, ErrStoreClosed
	}

	need := recordSpan(uint32(len(payload)))

	var chosen *Bucket
	var chosenAvail uint32
	for _, b := range s.buckets {
		avail := b.available()
		if avail >= need && (chosen == nil || avail < chosenAvail) {
			chosen = b
			chosenAvail = avail
		}
	}

	if chosen == nil {
		var err error
		chosen, err = s.createBucket()
		if err != nil {
			return Handle{}, err
		}
	}

	offset, err := chosen.insert(kind, payload)
	if err == ErrBucketFull {
		if chosen, err = s.createBucket(); err != nil {
			return Handle{}, err
		}
		offset, err = chosen.insert(kind, payload)
	}
	if err != nil {
		return Handle{}, err
	}
	return Handle{bucket: chosen, offset: offset}, nil
}

// Insert is the exported form of insert, for callers storing plain
// byte payloads (e.g. retained message bodies).
func (s *Store) Insert(kind RecordType, payload []byte) (Handle, error) {
	return s.insert(kind, payload)
}

// List opens (or returns the already-open) named PersistentList,
// creating its header record on first use. Per the store's registry
// invariant, repeated calls with the same name return the same
// in-memory instance rather than opening it twice.
func (s *Store) List(name string) (*PersistentList, error) {
	s.listMu.Lock()
	defer s.listMu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrStoreClosed
	}

	if l, ok := s.lists[name]; ok {
		return l, nil
	}

	l, err := s.openOrCreateList(name)
	if err != nil {
		return nil, err
	}
	s.lists[name] = l
	return l, nil
}

func (s *Store) openOrCreateList(name string) (*PersistentList, error) {
	for _, b := range s.bucketsSnapshot() {
		if h, ok := b.findListHeader(name); ok {
			return s.loadList(name, h)
		}
	}
	return s.createList(name)
}

func (s *Store) createList(name string) (*PersistentList, error) {
	h, err := s.insert(TypeListHeader, encodeHeaderPayload(Location{}, name))
	if err != nil {
		return nil, err
	}
	return &PersistentList{store: s, name: name, header: h}, nil
}

func (s *Store) loadList(name string, header Handle) (*PersistentList, error) {
	l := &PersistentList{store: s, name: name, header: header}

	payload, err := header.Data()
	if err != nil {
		return nil, err
	}
	first, _ := decodeHeaderPayload(payload)

	loc := first
	var prevValid Location
	for !loc.Empty() {
		b, ok := s.bucketByID(loc.BucketID)
		if !ok {
			break
		}
		hdr := b.header(loc.Offset)
		if !hdr.allocated() || hdr.kind != TypeListItem {
			// Truncate at the previous valid node, per the recovery
			// contract: a broken link ends the list there.
			if !prevValid.Empty() {
				last := l.items[len(l.items)-1]
				lp, _, ld := decodeItemPayload(mustData(last))
				_ = last.Overwrite(encodeItemPayload(lp, Location{}, ld))
			} else {
				_ = l.writeHeaderRaw(Location{})
			}
			break
		}
		item := Handle{bucket: b, offset: loc.Offset}
		l.items = append(l.items, item)

		itemPayload := b.payload(loc.Offset)
		_, next, _ := decodeItemPayload(itemPayload)
		prevValid = loc
		loc = next
	}

	return l, nil
}

func (l *PersistentList) writeHeaderRaw(first Location) error {
	return l.header.Overwrite(encodeHeaderPayload(first, l.name))
}

// bucketsSnapshot returns a point-in-time copy of the open buckets,
// safe to range over without holding the store lock.
func (s *Store) bucketsSnapshot() []*Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Bucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		out = append(out, b)
	}
	return out
}

// bucketByID returns the bucket for a given id, used by handles
// resolved from a Location read off disk (e.g. during list recovery).
func (s *Store) bucketByID(id uint16) (*Bucket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[id]
	return b, ok
}

// Stats reports aggregate free/total bytes across all buckets.
func (s *Store) Stats() (free uint64, total uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buckets {
		free += uint64(b.available())
		total += uint64(b.size())
	}
	return
}

// Close flushes and closes every bucket in the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	ids := make([]uint16, 0, len(s.buckets))
	for id := range s.buckets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := s.buckets[id].close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
