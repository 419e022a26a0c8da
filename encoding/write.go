package encoding

import "io"

// Primitive writers shared by the 3.1.1 packet encoders: single byte,
// two-byte big-endian integer, length-prefixed UTF-8 string, and
// length-prefixed binary data.

func writeByte(w io.Writer, value byte) error {
	_, err := w.Write([]byte{value})
	return err
}

func writeTwoByteInt(w io.Writer, value uint16) error {
	_, err := w.Write([]byte{byte(value >> 8), byte(value)})
	return err
}

func writeUTF8String(w io.Writer, value string) error {
	if err := writeTwoByteInt(w, uint16(len(value))); err != nil {
		return err
	}
	if len(value) == 0 {
		return nil
	}
	_, err := w.Write([]byte(value))
	return err
}

func writeBinaryData(w io.Writer, value []byte) error {
	if err := writeTwoByteInt(w, uint16(len(value))); err != nil {
		return err
	}
	if len(value) == 0 {
		return nil
	}
	_, err := w.Write(value)
	return err
}
