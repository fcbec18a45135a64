package protocol

import (
	"bytes"
	"io"
)

type StatusRequest struct{}

func (*StatusRequest) Type() Type             { return TypeStatusRequest }
func (*StatusRequest) Encode(io.Writer) error { return nil }

func ParseStatusRequest(*bytes.Reader) (Message, error) {
	return &StatusRequest{}, nil
}

type PingRequest struct {
	Time int64
}

func (*PingRequest) Type() Type { return TypePingRequest }

func (p *PingRequest) Encode(w io.Writer) error { return WriteInt64(w, p.Time) }

func ParsePingRequest(r *bytes.Reader) (Message, error) {
	t, err := ReadInt64(r)
	if err != nil {
		return nil, err
	}
	return &PingRequest{Time: t}, nil
}

// StatusResponse carries the server list JSON document.
type StatusResponse struct {
	JSON string
}

func (*StatusResponse) Type() Type { return TypeStatusResponse }

func (s *StatusResponse) Encode(w io.Writer) error { return WriteString(w, s.JSON) }

func ParseStatusResponse(r *bytes.Reader) (Message, error) {
	s, err := ReadString(r, MaxStringLength)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{JSON: s}, nil
}

type PongResponse struct {
	Time int64
}

func (*PongResponse) Type() Type { return TypePongResponse }

func (p *PongResponse) Encode(w io.Writer) error { return WriteInt64(w, p.Time) }

func ParsePongResponse(r *bytes.Reader) (Message, error) {
	t, err := ReadInt64(r)
	if err != nil {
		return nil, err
	}
	return &PongResponse{Time: t}, nil
}
