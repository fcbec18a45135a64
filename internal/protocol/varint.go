package protocol

import (
	"io"
)

const (
	SEGMENT_BITS = 0x7F
	CONTINUE_BIT = 0x80

	MaxVarintLen  = 5
	MaxVarLongLen = 10
)

func ReadVarint(r io.Reader) (value int32, err error) {
	value = 0
	position := 0
	currentByte := make([]byte, 1)
	for {
		_, err = io.ReadFull(r, currentByte)
		if err != nil {
			return
		}
		b := currentByte[0]
		value |= int32(b&SEGMENT_BITS) << position
		if (b & CONTINUE_BIT) == 0 {
			break
		}
		position += 7
		if position >= 32 {
			err = ErrVarIntTooLong
			return
		}
	}
	return
}

func WriteVarint(w io.Writer, value int32) (err error) {
	_, err = w.Write(AppendVarint(nil, value))
	return
}

// AppendVarint appends the encoding of value to dst.
func AppendVarint(dst []byte, value int32) []byte {
	uvalue := uint32(value)
	for {
		temp := byte(uvalue & SEGMENT_BITS)
		uvalue >>= 7
		if uvalue != 0 {
			temp |= CONTINUE_BIT
		}
		dst = append(dst, temp)
		if uvalue == 0 {
			return dst
		}
	}
}

// DecodeVarint reads a varint from the front of b. n == 0 with a nil error
// means b ends before the varint does.
func DecodeVarint(b []byte) (value int32, n int, err error) {
	position := 0
	for i, c := range b {
		value |= int32(c&SEGMENT_BITS) << position
		if c&CONTINUE_BIT == 0 {
			return value, i + 1, nil
		}
		position += 7
		if position >= 32 {
			return 0, 0, ErrVarIntTooLong
		}
	}
	return 0, 0, nil
}

func VarintLen(value int32) int {
	uvalue := uint32(value)
	n := 1
	for uvalue >= CONTINUE_BIT {
		uvalue >>= 7
		n++
	}
	return n
}

func ReadVarLong(r io.Reader) (value int64, err error) {
	value = 0
	position := 0
	currentByte := make([]byte, 1)
	for {
		_, err = io.ReadFull(r, currentByte)
		if err != nil {
			return
		}
		b := currentByte[0]
		value |= int64(b&SEGMENT_BITS) << position
		if (b & CONTINUE_BIT) == 0 {
			break
		}
		position += 7
		if position >= 64 {
			err = ErrVarLongTooLong
			return
		}
	}
	return
}

func WriteVarLong(w io.Writer, value int64) (err error) {
	uvalue := uint64(value)
	for {
		temp := byte(uvalue & SEGMENT_BITS)
		uvalue >>= 7
		if uvalue != 0 {
			temp |= CONTINUE_BIT
		}
		_, err = w.Write([]byte{temp})
		if err != nil {
			return
		}
		if uvalue == 0 {
			break
		}
	}
	return
}
