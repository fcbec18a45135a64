package protocol

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxStringLength 是未声明上限时字符串允许的最大字符数
	MaxStringLength = 32767
	SignatureLength = 256
)

// ReadString reads a length-prefixed UTF-8 string of at most maxChars characters.
func ReadString(r io.Reader, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = MaxStringLength
	}
	length, err := ReadVarint(r)
	if err != nil {
		return "", err
	}
	if length < 0 {
		return "", ErrInvalidPacket
	}
	// 一个字符最多占 3 字节
	if int(length) > maxChars*3 {
		return "", fmt.Errorf("%w: %d bytes (max %d chars)", ErrStringTooLong, length, maxChars)
	}
	strBytes := make([]byte, length)
	if _, err := io.ReadFull(r, strBytes); err != nil {
		return "", err
	}
	if utf8.RuneCount(strBytes) > maxChars {
		return "", fmt.Errorf("%w: %d chars (max %d)", ErrStringTooLong, utf8.RuneCount(strBytes), maxChars)
	}
	return string(strBytes), nil
}

func WriteString(w io.Writer, s string) error {
	err := WriteVarint(w, int32(len(s)))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

func ReadByteArray(r io.Reader, maxLen int) ([]byte, error) {
	length, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	if length < 0 || int(length) > maxLen {
		return nil, fmt.Errorf("%w: byte array of %d (max %d)", ErrInvalidPacket, length, maxLen)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func WriteByteArray(w io.Writer, b []byte) error {
	if err := WriteVarint(w, int32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func ReadByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func WriteByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func ReadBool(r io.Reader) (bool, error) {
	b, err := ReadByte(r)
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func WriteBool(w io.Writer, value bool) error {
	var b byte
	if value {
		b = 1
	}
	return WriteByte(w, b)
}

func ReadUnsignedShort(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func WriteUnsignedShort(w io.Writer, value uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], value)
	_, err := w.Write(buf[:])
	return err
}

func ReadInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func WriteInt32(w io.Writer, value int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(value))
	_, err := w.Write(buf[:])
	return err
}

func ReadInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

func WriteInt64(w io.Writer, value int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(value))
	_, err := w.Write(buf[:])
	return err
}

func ReadFloat(r io.Reader) (float32, error) {
	v, err := ReadInt32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

func WriteFloat(w io.Writer, value float32) error {
	return WriteInt32(w, int32(math.Float32bits(value)))
}

func ReadDouble(r io.Reader) (float64, error) {
	v, err := ReadInt64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(v)), nil
}

func WriteDouble(w io.Writer, value float64) error {
	return WriteInt64(w, int64(math.Float64bits(value)))
}

func ReadUUID(r io.Reader) (uuid.UUID, error) {
	var id uuid.UUID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func WriteUUID(w io.Writer, id uuid.UUID) error {
	_, err := w.Write(id[:])
	return err
}

// MessageSignature is a 256-byte RSA-2048 chat signature.
type MessageSignature [SignatureLength]byte

func ReadSignature(r io.Reader) (MessageSignature, error) {
	var sig MessageSignature
	_, err := io.ReadFull(r, sig[:])
	return sig, err
}

func ReadOptionalSignature(r io.Reader) (*MessageSignature, error) {
	present, err := ReadBool(r)
	if err != nil || !present {
		return nil, err
	}
	sig, err := ReadSignature(r)
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

func WriteOptionalSignature(w io.Writer, sig *MessageSignature) error {
	if err := WriteBool(w, sig != nil); err != nil || sig == nil {
		return err
	}
	_, err := w.Write(sig[:])
	return err
}

// ReadFixedBitSet reads a bit set of exactly n bits, little-endian by byte.
func ReadFixedBitSet(r io.Reader, n int) ([]bool, error) {
	raw := make([]byte, (n+7)/8)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, err
	}
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = raw[i/8]&(1<<(i%8)) != 0
	}
	return bits, nil
}

func WriteFixedBitSet(w io.Writer, bits []bool, n int) error {
	raw := make([]byte, (n+7)/8)
	for i := 0; i < n && i < len(bits); i++ {
		if bits[i] {
			raw[i/8] |= 1 << (i % 8)
		}
	}
	_, err := w.Write(raw)
	return err
}

// GenerateOfflineUUID generates a version-3 UUID for offline-mode players.
// Algorithm: MD5("OfflinePlayer:" + username), then set version=3 and variant=RFC4122.
func GenerateOfflineUUID(username string) uuid.UUID {
	hash := md5.Sum([]byte("OfflinePlayer:" + username))
	hash[6] = (hash[6] & 0x0F) | 0x30
	hash[8] = (hash[8] & 0x3F) | 0x80
	return uuid.UUID(hash)
}
