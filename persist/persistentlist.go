package persist

import "sync"

// itemPrefixSize is the fixed-width prefix of an item record's payload:
// prior Location (6 bytes) + next Location (6 bytes). Whatever follows
// is the item's data, its length implied by the record header's size
// field rather than stored again.
const itemPrefixSize = locationSize * 2

// headerPrefixSize is the fixed-width prefix of a list header record's
// payload: first-item Location (6 bytes) + name length (2 bytes).
const headerPrefixSize = locationSize + 2

// PersistentList is a named, durable doubly-linked list: a header
// record carrying the list's name and the Location of its first item,
// plus item records each carrying prior/next Locations and a payload.
// Grounded on the original broker's PersistentList, which keeps the
// same on-disk shape with an in-memory handle cache mirroring it.
type PersistentList struct {
	mu      sync.RWMutex
	store   *Store
	name    string
	header  Handle
	items   []Handle // insertion order, mirrors the on-disk links
}

func decodeHeaderPayload(payload []byte) (first Location, name string) {
	first = decodeLocation(payload[0:locationSize])
	nameLen := int(payload[locationSize])<<8 | int(payload[locationSize+1])
	name = string(payload[headerPrefixSize : headerPrefixSize+nameLen])
	return
}

func encodeHeaderPayload(first Location, name string) []byte {
	buf := make([]byte, headerPrefixSize+len(name))
	encodeLocation(buf[0:locationSize], first)
	buf[locationSize] = byte(len(name) >> 8)
	buf[locationSize+1] = byte(len(name))
	copy(buf[headerPrefixSize:], name)
	return buf
}

func decodeItemPayload(payload []byte) (prior, next Location, data []byte) {
	prior = decodeLocation(payload[0:locationSize])
	next = decodeLocation(payload[locationSize : 2*locationSize])
	data = payload[itemPrefixSize:]
	return
}

func encodeItemPayload(prior, next Location, data []byte) []byte {
	buf := make([]byte, itemPrefixSize+len(data))
	encodeLocation(buf[0:locationSize], prior)
	encodeLocation(buf[locationSize:2*locationSize], next)
	copy(buf[itemPrefixSize:], data)
	return buf
}

// Len returns the number of items currently in the list.
func (l *PersistentList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Empty reports whether the list has no items.
func (l *PersistentList) Empty() bool {
	return l.Len() == 0
}

// Items returns a snapshot of the list's handles in insertion order.
// The slice is a copy; mutating it does not affect the list.
func (l *PersistentList) Items() []Handle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Handle, len(l.items))
	copy(out, l.items)
	return out
}

func (l *PersistentList) writeHeader(first Location) error {
	return l.header.Overwrite(encodeHeaderPayload(first, l.name))
}

// PushBack appends data as a new tail item. Grounded on
// PersistentList::push_back: the mutation touches at most three
// records — the new item, the previous tail's next pointer, and the
// header only if the list was empty.
func (l *PersistentList) PushBack(data []byte) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var prior Location
	if len(l.items) > 0 {
		prior = l.items[len(l.items)-1].Location()
	}

	h, err := l.store.insert(TypeListItem, encodeItemPayload(prior, Location{}, data))
	if err != nil {
		return Handle{}, err
	}

	if len(l.items) > 0 {
		tail := l.items[len(l.items)-1]
		payload, err := tail.Data()
		if err != nil {
			return Handle{}, err
		}
		tp, _, td := decodeItemPayload(payload)
		if err := tail.Overwrite(encodeItemPayload(tp, h.Location(), td)); err != nil {
			return Handle{}, err
		}
	} else {
		if err := l.writeHeader(h.Location()); err != nil {
			return Handle{}, err
		}
	}

	l.items = append(l.items, h)
	return h, nil
}

// PushFront prepends data as a new head item.
func (l *PersistentList) PushFront(data []byte) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var next Location
	if len(l.items) > 0 {
		next = l.items[0].Location()
	}

	h, err := l.store.insert(TypeListItem, encodeItemPayload(Location{}, next, data))
	if err != nil {
		return Handle{}, err
	}

	if len(l.items) > 0 {
		head := l.items[0]
		payload, err := head.Data()
		if err != nil {
			return Handle{}, err
		}
		_, hn, hd := decodeItemPayload(payload)
		if err := head.Overwrite(encodeItemPayload(h.Location(), hn, hd)); err != nil {
			return Handle{}, err
		}
	}

	if err := l.writeHeader(h.Location()); err != nil {
		return Handle{}, err
	}

	l.items = append([]Handle{h}, l.items...)
	return h, nil
}

// PopFront removes and returns the head item's data, or ok=false if
// the list is empty.
func (l *PersistentList) PopFront() (data []byte, ok bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.items) == 0 {
		return nil, false, nil
	}

	head := l.items[0]
	payload, err := head.Data()
	if err != nil {
		return nil, false, err
	}
	_, next, hd := decodeItemPayload(payload)
	out := make([]byte, len(hd))
	copy(out, hd)

	if len(l.items) > 1 {
		newHead := l.items[1]
		np, nn, nd := decodeItemPayload(mustData(newHead))
		_ = np
		if err := newHead.Overwrite(encodeItemPayload(Location{}, nn, nd)); err != nil {
			return nil, false, err
		}
	}

	if err := l.writeHeader(next); err != nil {
		return nil, false, err
	}
	if err := head.Free(); err != nil {
		return nil, false, err
	}

	l.items = l.items[1:]
	return out, true, nil
}

func mustData(h Handle) []byte {
	d, err := h.Data()
	if err != nil {
		return nil
	}
	return d
}

// Erase removes the item at index i from the list.
func (l *PersistentList) Erase(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i < 0 || i >= len(l.items) {
		return ErrListNotFound
	}
	target := l.items[i]
	payload, err := target.Data()
	if err != nil {
		return err
	}
	prior, next, _ := decodeItemPayload(payload)

	if i > 0 {
		prevItem := l.items[i-1]
		pp, _, pd := decodeItemPayload(mustData(prevItem))
		if err := prevItem.Overwrite(encodeItemPayload(pp, next, pd)); err != nil {
			return err
		}
	} else {
		if err := l.writeHeader(next); err != nil {
			return err
		}
	}

	if i < len(l.items)-1 {
		nextItem := l.items[i+1]
		_, nn, nd := decodeItemPayload(mustData(nextItem))
		if err := nextItem.Overwrite(encodeItemPayload(prior, nn, nd)); err != nil {
			return err
		}
	}

	if err := target.Free(); err != nil {
		return err
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return nil
}
