package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestWriteVarint(t *testing.T) {
	tests := []struct {
		name  string
		input int32
		want  []byte
	}{
		{"零值", 0, []byte{0x00}},
		{"单字节最大值", 127, []byte{0x7F}},
		{"需要两字节", 128, []byte{0x80, 0x01}},
		{"300", 300, []byte{0xAC, 0x02}},
		{"三字节最大值", 2097151, []byte{0xFF, 0xFF, 0x7F}},
		{"int32 最大值", 2147483647, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x07}},
		{"负一", -1, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
		{"int32 最小值", -2147483648, []byte{0x80, 0x80, 0x80, 0x80, 0x08}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			if err := WriteVarint(buf, tt.input); err != nil {
				t.Fatalf("WriteVarint() 返回错误: %v", err)
			}
			if !bytes.Equal(buf.Bytes(), tt.want) {
				t.Errorf("WriteVarint(%d) = %v, 期望 %v", tt.input, buf.Bytes(), tt.want)
			}
			if got := VarintLen(tt.input); got != len(tt.want) {
				t.Errorf("VarintLen(%d) = %d, 期望 %d", tt.input, got, len(tt.want))
			}

			got, err := ReadVarint(bytes.NewReader(tt.want))
			if err != nil {
				t.Fatalf("ReadVarint() 返回错误: %v", err)
			}
			if got != tt.input {
				t.Errorf("ReadVarint() = %d, 期望 %d", got, tt.input)
			}
		})
	}
}

func TestReadVarintErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{"空输入", nil, io.EOF},
		{"被截断", []byte{0x80}, io.EOF},
		{"超过五字节", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}, ErrVarIntTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadVarint(bytes.NewReader(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadVarint() error = %v, 期望 %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeVarint(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		value   int32
		n       int
		wantErr bool
	}{
		{"完整单字节", []byte{0x05, 0xFF}, 5, 1, false},
		{"完整两字节", []byte{0xAC, 0x02}, 300, 2, false},
		{"需要更多数据", []byte{0xAC}, 0, 0, false},
		{"空输入", nil, 0, 0, false},
		{"过长", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, n, err := DecodeVarint(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeVarint() error = %v, wantErr %v", err, tt.wantErr)
			}
			if value != tt.value || n != tt.n {
				t.Errorf("DecodeVarint() = (%d, %d), 期望 (%d, %d)", value, n, tt.value, tt.n)
			}
		})
	}
}

func TestVarLongRoundTrip(t *testing.T) {
	values := []int64{0, 1, 127, 128, 1 << 40, -1, -9223372036854775808, 9223372036854775807}
	for _, v := range values {
		buf := &bytes.Buffer{}
		if err := WriteVarLong(buf, v); err != nil {
			t.Fatalf("WriteVarLong(%d) 返回错误: %v", v, err)
		}
		got, err := ReadVarLong(buf)
		if err != nil {
			t.Fatalf("ReadVarLong() 返回错误: %v", err)
		}
		if got != v {
			t.Errorf("往返 %d 得到 %d", v, got)
		}
	}

	_, err := ReadVarLong(bytes.NewReader(bytes.Repeat([]byte{0x80}, 11)))
	if !errors.Is(err, ErrVarLongTooLong) {
		t.Errorf("ReadVarLong() error = %v, 期望 %v", err, ErrVarLongTooLong)
	}
}
