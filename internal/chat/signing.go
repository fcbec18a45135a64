package chat

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Versifine/warden/internal/kick"
	"github.com/Versifine/warden/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	messageVersion = 1
	// MessageExpiry is how old a message may be before the server warns about
	// clock skew. Such messages are still accepted.
	MessageExpiry = 5 * time.Minute
)

var ErrNotRSAKey = errors.New("chat session key is not an RSA key")

// Link is a position in a sender's signing chain.
type Link struct {
	Index     int32
	Sender    uuid.UUID
	SessionID uuid.UUID
	Previous  *protocol.MessageSignature
}

func RootLink(sender, sessionID uuid.UUID) Link {
	return Link{Sender: sender, SessionID: sessionID}
}

// advance returns the link following l, or false when the index space is
// exhausted.
func (l Link) advance(sig protocol.MessageSignature) (Link, bool) {
	if l.Index == math.MaxInt32 {
		return Link{}, false
	}
	return Link{Index: l.Index + 1, Sender: l.Sender, SessionID: l.SessionID, Previous: &sig}, true
}

// Body is the signed part of a chat message.
type Body struct {
	Content   string
	Timestamp time.Time
	Salt      int64
	LastSeen  []protocol.MessageSignature
}

// Message is a chat submission that passed the trust chain.
type Message struct {
	Link      Link
	Signature *protocol.MessageSignature
	Body      Body
	// Unsigned holds decorated content when it differs from the signed text.
	Unsigned *string
}

func (m *Message) Signed() bool { return m.Signature != nil }

// ExpiredAt reports whether the message is older than MessageExpiry at now.
func (m *Message) ExpiredAt(now time.Time) bool {
	return now.Sub(m.Body.Timestamp) > MessageExpiry
}

// SignaturePayload is the byte string a client signs for one message.
func SignaturePayload(link Link, body Body) []byte {
	var buf bytes.Buffer
	_ = protocol.WriteInt32(&buf, messageVersion)

	_ = protocol.WriteUUID(&buf, link.Sender)
	_ = protocol.WriteUUID(&buf, link.SessionID)
	_ = protocol.WriteInt32(&buf, link.Index)
	_ = protocol.WriteOptionalSignature(&buf, link.Previous)

	_ = protocol.WriteInt64(&buf, body.Salt)
	_ = protocol.WriteInt64(&buf, body.Timestamp.Unix())
	content := []byte(body.Content)
	_ = protocol.WriteInt32(&buf, int32(len(content)))
	buf.Write(content)
	_ = protocol.WriteInt32(&buf, int32(len(body.LastSeen)))
	for i := range body.LastSeen {
		buf.Write(body.LastSeen[i][:])
	}
	return buf.Bytes()
}

// PublicKey is a player's chat signing key.
type PublicKey struct {
	Key       *rsa.PublicKey
	ExpiresAt time.Time
}

// ParsePublicKey decodes a DER (PKIX) RSA key.
func ParsePublicKey(der []byte, expiresAtMillis int64) (*PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse chat session key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return &PublicKey{Key: key, ExpiresAt: time.UnixMilli(expiresAtMillis)}, nil
}

func (k *PublicKey) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}

func (k *PublicKey) Verify(payload []byte, sig protocol.MessageSignature) bool {
	digest := sha256.Sum256(payload)
	return rsa.VerifyPKCS1v15(k.Key, crypto.SHA256, digest[:], sig[:]) == nil
}

// SignedChain verifies one sender's successive messages. Once broken it
// stays broken until a new chat session replaces it.
type SignedChain struct {
	key           *PublicKey
	next          *Link
	lastTimestamp time.Time
	log           zerolog.Logger
}

func NewSignedChain(sender, sessionID uuid.UUID, key *PublicKey, log zerolog.Logger) *SignedChain {
	root := RootLink(sender, sessionID)
	return &SignedChain{key: key, next: &root, log: log}
}

func (c *SignedChain) Key() *PublicKey { return c.key }

func (c *SignedChain) Broken() bool { return c.next == nil }

func (c *SignedChain) Break() { c.next = nil }

// Unpack verifies sig over body at the chain's current link and advances it.
func (c *SignedChain) Unpack(sig *protocol.MessageSignature, body Body, now time.Time) (*Message, error) {
	if sig == nil {
		return nil, kick.MissingProfileKey
	}
	if c.key.Expired(now) {
		return nil, kick.ExpiredPublicKey
	}
	if c.next == nil {
		return nil, kick.ChainBroken
	}
	link := *c.next
	if body.Timestamp.Before(c.lastTimestamp) {
		c.Break()
		return nil, kick.OutOfOrderChat
	}
	c.lastTimestamp = body.Timestamp

	if !c.key.Verify(SignaturePayload(link, body), *sig) {
		c.Break()
		return nil, kick.InvalidSignature
	}

	msg := &Message{Link: link, Signature: sig, Body: body}
	if msg.ExpiredAt(now) {
		c.log.Warn().
			Str("content", body.Content).
			Time("timestamp", body.Timestamp).
			Msg("received expired chat, is the client or server clock out of sync?")
	}
	c.advance(*sig)
	return msg, nil
}

// Skip advances the chain past a signature the server does not verify
// itself, such as a command argument.
func (c *SignedChain) Skip(sig protocol.MessageSignature) error {
	if c.next == nil {
		return kick.ChainBroken
	}
	c.advance(sig)
	return nil
}

func (c *SignedChain) advance(sig protocol.MessageSignature) {
	next, ok := c.next.advance(sig)
	if !ok {
		c.next = nil
		return
	}
	c.next = &next
}
