package protocol

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x00},
		[]byte("Hello"),
		bytes.Repeat([]byte{0xAB}, 127),
		bytes.Repeat([]byte{0xCD}, 128),
		bytes.Repeat([]byte{0xEF}, 70000),
	}

	for _, p := range payloads {
		d := NewFrameDecoder(0)
		d.Write(EncodeFrame(p))
		got, ok, err := d.Next()
		if err != nil || !ok {
			t.Fatalf("Next() = (ok=%v, err=%v), 期望完整帧", ok, err)
		}
		if !bytes.Equal(got, p) {
			t.Errorf("长度 %d 的帧往返后不一致", len(p))
		}
		if d.Buffered() != 0 {
			t.Errorf("Buffered() = %d, 期望 0", d.Buffered())
		}
	}
}

// 任意切分的写入都应重组出同样的帧序列
func TestFrameDecoderArbitrarySplits(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var want [][]byte
	var stream []byte
	for i := 0; i < 50; i++ {
		p := make([]byte, rng.Intn(400))
		rng.Read(p)
		want = append(want, p)
		stream = append(stream, EncodeFrame(p)...)
	}

	for trial := 0; trial < 20; trial++ {
		d := NewFrameDecoder(0)
		var got [][]byte
		rest := stream
		for len(rest) > 0 {
			n := 1 + rng.Intn(64)
			if n > len(rest) {
				n = len(rest)
			}
			d.Write(rest[:n])
			rest = rest[n:]
			for {
				frame, ok, err := d.Next()
				if err != nil {
					t.Fatalf("Next() 返回错误: %v", err)
				}
				if !ok {
					break
				}
				got = append(got, frame)
			}
		}
		if len(got) != len(want) {
			t.Fatalf("第 %d 轮得到 %d 帧, 期望 %d", trial, len(got), len(want))
		}
		for i := range want {
			if !bytes.Equal(got[i], want[i]) {
				t.Fatalf("第 %d 轮第 %d 帧不一致", trial, i)
			}
		}
	}
}

func TestFrameDecoderErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		maxSize int
		wantErr error
		wantOK  bool
	}{
		{name: "长度前缀不完整", input: []byte{0x80}, wantErr: nil},
		{name: "帧体不完整", input: []byte{0x05, 0x01, 0x02}, wantErr: nil},
		{name: "超过最大长度", input: []byte{0x0B}, maxSize: 10, wantErr: ErrPacketTooLarge},
		{name: "恰好最大长度", input: append([]byte{0x0A}, make([]byte, 10)...), maxSize: 10, wantOK: true},
		{name: "前缀超过三字节", input: []byte{0x80, 0x80, 0x80, 0x01}, wantErr: ErrInvalidPacket},
		{name: "三字节仍未结束", input: []byte{0x80, 0x80, 0x80}, wantErr: ErrInvalidPacket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewFrameDecoder(tt.maxSize)
			d.Write(tt.input)
			_, ok, err := d.Next()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Next() 返回错误: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Next() error = %v, 期望 %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, 期望 %v", ok, tt.wantOK)
			}
		})
	}
}

func TestPacketCompression(t *testing.T) {
	tests := []struct {
		name      string
		packet    *Packet
		threshold int
	}{
		{"未开启压缩", &Packet{ID: 0x07, Payload: []byte("hi")}, -1},
		{"低于阈值不压缩", &Packet{ID: 0x07, Payload: []byte("hi")}, 256},
		{"高于阈值压缩", &Packet{ID: 0x3B, Payload: bytes.Repeat([]byte("chat "), 200)}, 256},
		{"阈值为零", &Packet{ID: 0x01, Payload: []byte{1, 2, 3}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			if err := WritePacket(buf, tt.packet, tt.threshold); err != nil {
				t.Fatalf("WritePacket() 返回错误: %v", err)
			}
			got, err := ReadPacket(buf, tt.threshold)
			if err != nil {
				t.Fatalf("ReadPacket() 返回错误: %v", err)
			}
			if got.ID != tt.packet.ID || !bytes.Equal(got.Payload, tt.packet.Payload) {
				t.Errorf("ReadPacket() = {%#x, %d bytes}, 期望 {%#x, %d bytes}",
					got.ID, len(got.Payload), tt.packet.ID, len(tt.packet.Payload))
			}
		})
	}
}

func TestCompressedFrameIsSmaller(t *testing.T) {
	p := &Packet{ID: 1, Payload: bytes.Repeat([]byte{0}, 4096)}
	body, err := EncodePacket(p, 256)
	if err != nil {
		t.Fatalf("EncodePacket() 返回错误: %v", err)
	}
	if len(body) >= 4096 {
		t.Errorf("压缩后长度 %d, 期望明显小于 4096", len(body))
	}
}

func TestDecodePacketRejects(t *testing.T) {
	tests := []struct {
		name      string
		frame     []byte
		threshold int
	}{
		{"空帧", nil, -1},
		{"压缩长度低于阈值", []byte{0x05, 0x78, 0x9C}, 256},
		{"压缩数据损坏", []byte{0x80, 0x04, 0x00, 0x01, 0x02}, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePacket(tt.frame, tt.threshold, 0); !errors.Is(err, ErrInvalidPacket) {
				t.Errorf("DecodePacket() error = %v, 期望 %v", err, ErrInvalidPacket)
			}
		})
	}
}
