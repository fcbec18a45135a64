package chat

import (
	"strings"
	"sync"

	"github.com/Versifine/warden/internal/protocol"
)

// LastSeenError 表示客户端的确认与服务器实际发送内容不一致的一种情况
type LastSeenError uint8

const (
	ErrOffsetOutOfRange LastSeenError = 1 << iota
	ErrWindowTooLarge
	ErrUnknownAcknowledged
	ErrIgnoredAcknowledged
	ErrChecksumMismatch
)

var lastSeenErrorNames = []struct {
	bit  LastSeenError
	name string
}{
	{ErrOffsetOutOfRange, "offset_out_of_range"},
	{ErrWindowTooLarge, "window_too_large"},
	{ErrUnknownAcknowledged, "unknown_acknowledged"},
	{ErrIgnoredAcknowledged, "ignored_acknowledged"},
	{ErrChecksumMismatch, "checksum_mismatch"},
}

// LastSeenErrors is the set of conditions found while applying one update.
// A non-empty set is an error.
type LastSeenErrors LastSeenError

func (e LastSeenErrors) Has(bit LastSeenError) bool { return LastSeenError(e)&bit != 0 }

func (e LastSeenErrors) Empty() bool { return e == 0 }

func (e LastSeenErrors) Error() string {
	var names []string
	for _, n := range lastSeenErrorNames {
		if e.Has(n.bit) {
			names = append(names, n.name)
		}
	}
	return "last seen validation failed: " + strings.Join(names, ",")
}

type trackedEntry struct {
	sig     protocol.MessageSignature
	pending bool
}

// LastSeenValidator tracks the messages broadcast to one session and checks
// the client's acknowledgments against them. The window holds the last
// Window entries; anything beyond it is pending. Safe for concurrent use.
type LastSeenValidator struct {
	mu          sync.Mutex
	window      int
	tracked     []*trackedEntry
	lastPending *protocol.MessageSignature
}

func NewLastSeenValidator(window int) *LastSeenValidator {
	return &LastSeenValidator{
		window:  window,
		tracked: make([]*trackedEntry, window),
	}
}

// AddPending records a signature broadcast to this session and returns the
// resulting pending count. Consecutive duplicates are collapsed.
func (v *LastSeenValidator) AddPending(sig protocol.MessageSignature) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.lastPending == nil || *v.lastPending != sig {
		v.tracked = append(v.tracked, &trackedEntry{sig: sig, pending: true})
		s := sig
		v.lastPending = &s
	}
	return len(v.tracked) - v.window
}

// PendingCount 是客户端还没有移出窗口的广播消息数
func (v *LastSeenValidator) PendingCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.tracked) - v.window
}

// ApplyOffset 处理单独发送的确认
func (v *LastSeenValidator) ApplyOffset(offset int32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if errs := v.applyOffset(offset); !errs.Empty() {
		return errs
	}
	return nil
}

func (v *LastSeenValidator) applyOffset(offset int32) LastSeenErrors {
	limit := len(v.tracked) - v.window
	if offset < 0 || int(offset) > limit {
		return LastSeenErrors(ErrOffsetOutOfRange)
	}
	v.tracked = append(v.tracked[:0:0], v.tracked[offset:]...)
	return 0
}

// ApplyUpdate validates and applies the client's last-seen update, returning
// the acknowledged signatures in window order.
func (v *LastSeenValidator) ApplyUpdate(u protocol.LastSeenUpdate) ([]protocol.MessageSignature, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if errs := v.applyOffset(u.Offset); !errs.Empty() {
		return nil, errs
	}

	var errs LastSeenErrors
	if len(u.Acknowledged) > v.window {
		errs |= LastSeenErrors(ErrWindowTooLarge)
	}

	seen := make([]protocol.MessageSignature, 0, v.window)
	for i := 0; i < v.window; i++ {
		acked := i < len(u.Acknowledged) && u.Acknowledged[i]
		entry := v.tracked[i]
		if acked {
			if entry == nil {
				errs |= LastSeenErrors(ErrUnknownAcknowledged)
				continue
			}
			v.tracked[i] = &trackedEntry{sig: entry.sig}
			seen = append(seen, entry.sig)
			continue
		}
		if entry != nil && !entry.pending {
			errs |= LastSeenErrors(ErrIgnoredAcknowledged)
		}
		v.tracked[i] = nil
	}

	if u.Checksum != 0 && u.Checksum != Checksum(seen) {
		errs |= LastSeenErrors(ErrChecksumMismatch)
	}
	if !errs.Empty() {
		return nil, errs
	}
	return seen, nil
}

// Checksum 把已确认的签名折叠成一个非零字节
func Checksum(sigs []protocol.MessageSignature) byte {
	h := int32(1)
	for i := range sigs {
		h = 31*h + signatureHash(sigs[i])
	}
	b := byte(h)
	if b == 0 {
		return 1
	}
	return b
}

func signatureHash(sig protocol.MessageSignature) int32 {
	h := int32(1)
	for _, b := range sig {
		h = 31*h + int32(int8(b))
	}
	return h
}
