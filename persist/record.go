package persist

import "encoding/binary"

// RecordType distinguishes the payload a record carries.
type RecordType uint8

const (
	TypeString     RecordType = 1
	TypeListHeader RecordType = 2
	TypeListItem   RecordType = 4
)

const (
	signatureAllocated uint16 = 0x5F7F
	signatureFree      uint16 = 0x5E7E
)

// recordHeaderSize is the packed, unpadded on-disk size of a record
// header: signature (u16) + type (u8) + size (u32).
const recordHeaderSize = 2 + 1 + 4

// alignment records are padded to, so a freed extent and its successor
// never straddle a boundary smaller than the allocator's granularity.
const recordAlignment = 8

// recordHeader is the in-memory decoding of the bytes at a record's
// offset. All persisted integers are little-endian, distinct from the
// big-endian wire protocol the Framer speaks.
type recordHeader struct {
	signature uint16
	kind      RecordType
	size      uint32
}

func (h recordHeader) allocated() bool {
	return h.signature == signatureAllocated
}

// encodeRecordHeader writes a record header into buf[0:recordHeaderSize].
func encodeRecordHeader(buf []byte, h recordHeader) {
	binary.LittleEndian.PutUint16(buf[0:2], h.signature)
	buf[2] = byte(h.kind)
	binary.LittleEndian.PutUint32(buf[3:7], h.size)
}

// decodeRecordHeader reads a record header from buf[0:recordHeaderSize].
func decodeRecordHeader(buf []byte) recordHeader {
	return recordHeader{
		signature: binary.LittleEndian.Uint16(buf[0:2]),
		kind:      RecordType(buf[2]),
		size:      binary.LittleEndian.Uint32(buf[3:7]),
	}
}

// recordSpan is the total bytes a record of the given payload size
// occupies on disk: header plus payload, rounded up to a multiple of 8 so
// every record (and the free remainder after it) starts 8-byte aligned.
func recordSpan(size uint32) uint32 {
	return alignUp(recordHeaderSize+size, recordAlignment)
}

func alignUp(n uint32, align uint32) uint32 {
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

// Location identifies a record by the bucket that holds it and the byte
// offset of its header within that bucket. A zero BucketID is null.
type Location struct {
	BucketID uint16
	Offset   uint32
}

func (l Location) Empty() bool {
	return l.BucketID == 0
}

const locationSize = 2 + 4

func encodeLocation(buf []byte, l Location) {
	binary.LittleEndian.PutUint16(buf[0:2], l.BucketID)
	binary.LittleEndian.PutUint32(buf[2:6], l.Offset)
}

func decodeLocation(buf []byte) Location {
	return Location{
		BucketID: binary.LittleEndian.Uint16(buf[0:2]),
		Offset:   binary.LittleEndian.Uint32(buf[2:6]),
	}
}
