// Package protocol 负责帧编解码、字段编解码与消息注册表
package protocol

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

const (
	MaxPacketSize = 2097152 // 2MB

	// maxLengthPrefix 帧长度前缀最多 3 字节（21 位）
	maxLengthPrefix = 3
)

type Packet struct {
	ID      int32
	Payload []byte
}

// FrameDecoder splits an arbitrary byte stream into length-prefixed frames.
// It keeps no state between frames apart from the unconsumed tail.
type FrameDecoder struct {
	buf     []byte
	maxSize int
}

func NewFrameDecoder(maxSize int) *FrameDecoder {
	if maxSize <= 0 {
		maxSize = MaxPacketSize
	}
	return &FrameDecoder{maxSize: maxSize}
}

// Write buffers p; it never fails.
func (d *FrameDecoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Buffered reports how many bytes are waiting for a complete frame.
func (d *FrameDecoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next complete frame body. ok is false when more data is
// needed. The returned slice is owned by the caller.
func (d *FrameDecoder) Next() (frame []byte, ok bool, err error) {
	length, n, err := DecodeVarint(d.buf)
	if err != nil || (n == 0 && len(d.buf) >= maxLengthPrefix) || n > maxLengthPrefix {
		return nil, false, fmt.Errorf("%w: bad length prefix", ErrInvalidPacket)
	}
	if n == 0 {
		return nil, false, nil
	}
	if length < 0 {
		return nil, false, fmt.Errorf("%w: negative length %d", ErrInvalidPacket, length)
	}
	if int(length) > d.maxSize {
		return nil, false, fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, length, d.maxSize)
	}
	end := n + int(length)
	if len(d.buf) < end {
		return nil, false, nil
	}
	frame = make([]byte, length)
	copy(frame, d.buf[n:end])
	rest := copy(d.buf, d.buf[end:])
	d.buf = d.buf[:rest]
	return frame, true, nil
}

// EncodeFrame prepends the varint length prefix to body.
func EncodeFrame(body []byte) []byte {
	out := make([]byte, 0, VarintLen(int32(len(body)))+len(body))
	out = AppendVarint(out, int32(len(body)))
	return append(out, body...)
}

// ReadFrame reads one length-prefixed frame body from r.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxPacketSize
	}
	frameLen, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	if frameLen < 0 {
		return nil, ErrInvalidPacket
	}
	if int(frameLen) > maxSize {
		return nil, ErrPacketTooLarge
	}
	data := make([]byte, frameLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Join(ErrInvalidPacket, err)
	}
	return data, nil
}

// DecodePacket turns a frame body into a Packet. A threshold < 0 means
// compression is off.
func DecodePacket(frame []byte, threshold int, maxSize int) (*Packet, error) {
	if len(frame) == 0 {
		return nil, ErrInvalidPacket
	}
	if maxSize <= 0 {
		maxSize = MaxPacketSize
	}
	var rawDataReader io.Reader = bytes.NewReader(frame)

	if threshold >= 0 {
		dataLen, err := ReadVarint(rawDataReader)
		if err != nil {
			return nil, err
		}
		if dataLen != 0 {
			if int(dataLen) < threshold {
				return nil, fmt.Errorf("%w: compressed size %d below threshold %d", ErrInvalidPacket, dataLen, threshold)
			}
			if int(dataLen) > maxSize {
				return nil, fmt.Errorf("%w: decompressed size %d", ErrPacketTooLarge, dataLen)
			}
			z, err := zlib.NewReader(rawDataReader)
			if err != nil {
				return nil, errors.Join(ErrInvalidPacket, err)
			}
			defer z.Close()

			decompressed := make([]byte, dataLen)
			if _, err := io.ReadFull(z, decompressed); err != nil {
				return nil, errors.Join(ErrInvalidPacket, err)
			}
			rawDataReader = bytes.NewReader(decompressed)
		}
	}

	id, err := ReadVarint(rawDataReader)
	if err != nil {
		return nil, errors.Join(ErrInvalidPacket, err)
	}
	payload, _ := io.ReadAll(rawDataReader)
	return &Packet{
		ID:      id,
		Payload: payload,
	}, nil
}

// EncodePacket builds the frame body for packet (without the length prefix).
func EncodePacket(packet *Packet, threshold int) ([]byte, error) {
	raw := AppendVarint(make([]byte, 0, MaxVarintLen+len(packet.Payload)), packet.ID)
	raw = append(raw, packet.Payload...)

	if threshold < 0 {
		return raw, nil
	}
	if len(raw) < threshold {
		// [Data Length = 0] [ID] [Payload]
		return append([]byte{0x00}, raw...), nil
	}

	var buf bytes.Buffer
	buf.Write(AppendVarint(nil, int32(len(raw))))
	z := zlib.NewWriter(&buf)
	if _, err := z.Write(raw); err != nil {
		return nil, err
	}
	if err := z.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ReadPacket(r io.Reader, threshold int) (*Packet, error) {
	frame, err := ReadFrame(r, MaxPacketSize)
	if err != nil {
		return nil, err
	}
	return DecodePacket(frame, threshold, MaxPacketSize)
}

func WritePacket(w io.Writer, packet *Packet, threshold int) error {
	body, err := EncodePacket(packet, threshold)
	if err != nil {
		return err
	}
	if len(body) > MaxPacketSize {
		return ErrPacketTooLarge
	}
	_, err = w.Write(EncodeFrame(body))
	return err
}
