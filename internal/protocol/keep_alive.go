package protocol

import (
	"bytes"
	"io"
)

// KeepAlive is an opaque 64-bit challenge echoed in both directions. The
// direction decides which Type it reports.
type KeepAlive struct {
	KeepAliveID int64
	Clientbound bool
}

func (k *KeepAlive) Type() Type {
	if k.Clientbound {
		return TypeKeepAliveClientbound
	}
	return TypeKeepAliveServerbound
}

func (k *KeepAlive) Encode(w io.Writer) error { return WriteInt64(w, k.KeepAliveID) }

func ParseKeepAlive(r *bytes.Reader) (Message, error) {
	keepAliveID, err := ReadInt64(r)
	if err != nil {
		return nil, err
	}
	return &KeepAlive{KeepAliveID: keepAliveID}, nil
}

func parseClientboundKeepAlive(r *bytes.Reader) (Message, error) {
	m, err := ParseKeepAlive(r)
	if err != nil {
		return nil, err
	}
	m.(*KeepAlive).Clientbound = true
	return m, nil
}
