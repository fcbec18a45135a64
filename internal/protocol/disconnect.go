package protocol

import (
	"bytes"
	"encoding/json"
	"io"
)

// TextComponent renders plain text as a JSON chat component.
func TextComponent(text string) string {
	b, _ := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	return string(b)
}

// PlainText extracts the "text" field of a JSON component, falling back to the raw input.
func PlainText(component string) string {
	var c struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(component), &c); err != nil {
		return component
	}
	return c.Text
}

type Disconnect struct {
	Reason string
}

func (*Disconnect) Type() Type { return TypeDisconnect }

func (d *Disconnect) Encode(w io.Writer) error { return WriteString(w, d.Reason) }

func ParseDisconnect(r *bytes.Reader) (Message, error) {
	reason, err := ReadString(r, 262144)
	if err != nil {
		return nil, err
	}
	return &Disconnect{Reason: reason}, nil
}

type SystemChat struct {
	Content string
	Overlay bool
}

func (*SystemChat) Type() Type { return TypeSystemChat }

func (s *SystemChat) Encode(w io.Writer) error {
	if err := WriteString(w, s.Content); err != nil {
		return err
	}
	return WriteBool(w, s.Overlay)
}

func ParseSystemChat(r *bytes.Reader) (Message, error) {
	content, err := ReadString(r, 262144)
	if err != nil {
		return nil, err
	}
	overlay, err := ReadBool(r)
	if err != nil {
		return nil, err
	}
	return &SystemChat{Content: content, Overlay: overlay}, nil
}
