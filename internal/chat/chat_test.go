package chat

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/Versifine/warden/internal/kick"
	"github.com/Versifine/warden/internal/protocol"
)

func TestValidateText(t *testing.T) {
	long := make([]rune, protocol.MaxChatLength+1)
	for i := range long {
		long[i] = 'a'
	}
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"普通文本", "hello world", false},
		{"中文", "你好", false},
		{"分节符", "§cred", true},
		{"控制字符", "line\nbreak", true},
		{"DEL", "a\x7f", true},
		{"超长", string(long), true},
		{"非法 UTF-8", "\xff", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateText(tt.text)
			if tt.wantErr && !errors.Is(err, kick.IllegalCharacters) {
				t.Fatalf("ValidateText(%q) = %v, 期望 %v", tt.text, err, kick.IllegalCharacters)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("ValidateText(%q) = %v, 期望 nil", tt.text, err)
			}
		})
	}
}

// TestTimestampCursor 测试时间戳游标只能前进
func TestTimestampCursor(t *testing.T) {
	var c TimestampCursor
	if !c.Advance(100) || !c.Advance(100) || !c.Advance(200) {
		t.Fatalf("不递减的时间戳应被接受")
	}
	if c.Advance(199) {
		t.Fatalf("更早的时间戳必须被拒绝")
	}
	if c.Last() != 200 {
		t.Fatalf("Last() = %d, 期望 200", c.Last())
	}
}

// TestTimestampCursorConcurrent 测试并发推进时游标仍然单调
func TestTimestampCursorConcurrent(t *testing.T) {
	var c TimestampCursor
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c.Advance(int64(i*8 + g))
			}
		}(g)
	}
	wg.Wait()
	if c.Last() != 999*8+7 {
		t.Fatalf("Last() = %d, 期望 %d", c.Last(), 999*8+7)
	}
}

// TestThrottlerDecay 测试刷屏计数按 tick 衰减且不为负
func TestThrottlerDecay(t *testing.T) {
	th := NewThrottler(20, 200)
	for i := 0; i < 9; i++ {
		th.Increment()
	}
	if !th.UnderThreshold() {
		t.Fatalf("180 应低于阈值")
	}
	th.Increment()
	if th.UnderThreshold() {
		t.Fatalf("200 应达到阈值")
	}
	for i := 0; i < 200; i++ {
		th.Tick()
	}
	if th.Count() != 0 {
		t.Fatalf("Count() = %d, 期望 0", th.Count())
	}
	th.Tick()
	if th.Count() != 0 {
		t.Fatalf("计数不能为负, 实际 %d", th.Count())
	}
}

func sigOf(i int) protocol.MessageSignature {
	var s protocol.MessageSignature
	binary.BigEndian.PutUint32(s[:4], uint32(i)+1)
	return s
}

func ackBits(indexes ...int) []bool {
	bits := make([]bool, protocol.LastSeenWindow)
	for _, i := range indexes {
		bits[i] = true
	}
	return bits
}

func TestLastSeenValidatorApplyUpdate(t *testing.T) {
	v := NewLastSeenValidator(protocol.LastSeenWindow)
	for i := 0; i < 3; i++ {
		v.AddPending(sigOf(i))
	}
	if v.PendingCount() != 3 {
		t.Fatalf("PendingCount() = %d, 期望 3", v.PendingCount())
	}

	want := []protocol.MessageSignature{sigOf(0), sigOf(1), sigOf(2)}
	seen, err := v.ApplyUpdate(protocol.LastSeenUpdate{
		Offset:       3,
		Acknowledged: ackBits(17, 18, 19),
		Checksum:     Checksum(want),
	})
	if err != nil {
		t.Fatalf("ApplyUpdate() error = %v", err)
	}
	if len(seen) != 3 || seen[0] != want[0] || seen[2] != want[2] {
		t.Fatalf("seen = %d entries, 期望 3 in order", len(seen))
	}
	if v.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d, 期望 0", v.PendingCount())
	}

	// 之后再忽略已确认的消息
	_, err = v.ApplyUpdate(protocol.LastSeenUpdate{Offset: 0, Acknowledged: ackBits(17, 18)})
	var errs LastSeenErrors
	if !errors.As(err, &errs) || !errs.Has(ErrIgnoredAcknowledged) {
		t.Fatalf("error = %v, 期望 ignored_acknowledged", err)
	}
}

// TestLastSeenValidatorErrors 测试各种不一致的确认都会被记录
func TestLastSeenValidatorErrors(t *testing.T) {
	tests := []struct {
		name   string
		update protocol.LastSeenUpdate
		want   LastSeenError
	}{
		{"offset 超出待确认数量", protocol.LastSeenUpdate{Offset: 2, Acknowledged: ackBits()}, ErrOffsetOutOfRange},
		{"负 offset", protocol.LastSeenUpdate{Offset: -1, Acknowledged: ackBits()}, ErrOffsetOutOfRange},
		{"确认未知消息", protocol.LastSeenUpdate{Offset: 0, Acknowledged: ackBits(0)}, ErrUnknownAcknowledged},
		{"窗口过大", protocol.LastSeenUpdate{Offset: 0, Acknowledged: make([]bool, protocol.LastSeenWindow+1)}, ErrWindowTooLarge},
		{"校验和不一致", protocol.LastSeenUpdate{Offset: 1, Acknowledged: ackBits(19), Checksum: Checksum(nil)}, ErrChecksumMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewLastSeenValidator(protocol.LastSeenWindow)
			v.AddPending(sigOf(0))
			_, err := v.ApplyUpdate(tt.update)
			var errs LastSeenErrors
			if !errors.As(err, &errs) || !errs.Has(tt.want) {
				t.Fatalf("error = %v, 期望包含 %d", err, tt.want)
			}
		})
	}
}

func TestLastSeenChecksumZeroSkipsCheck(t *testing.T) {
	v := NewLastSeenValidator(protocol.LastSeenWindow)
	v.AddPending(sigOf(0))
	if _, err := v.ApplyUpdate(protocol.LastSeenUpdate{Offset: 1, Acknowledged: ackBits(19)}); err != nil {
		t.Fatalf("ApplyUpdate() error = %v", err)
	}
}

func TestAddPendingCollapsesDuplicates(t *testing.T) {
	v := NewLastSeenValidator(protocol.LastSeenWindow)
	v.AddPending(sigOf(1))
	v.AddPending(sigOf(1))
	if n := v.AddPending(sigOf(2)); n != 2 {
		t.Fatalf("pending = %d, 期望 2", n)
	}
}

func TestChecksumNeverZero(t *testing.T) {
	for i := 0; i < 1000; i++ {
		if Checksum([]protocol.MessageSignature{sigOf(i)}) == 0 {
			t.Fatalf("%d 的校验和为 0", i)
		}
	}
}

// TestPipelinePreservesOrder 测试同一会话的消息按提交顺序应用
func TestPipelinePreservesOrder(t *testing.T) {
	logic := make(chan func(), 16)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case fn := <-logic:
				fn()
			case <-stop:
				return
			}
		}
	}()
	defer close(stop)

	p := NewPipeline(ExecutorFunc(func(fn func()) { logic <- fn }))
	defer p.Close()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	const n = 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		ok := Append(p,
			func() (int, error) {
				// 让靠前的任务更慢
				for spin := 0; spin < (n-i)*1000; spin++ {
				}
				return i, nil
			},
			func(v int, _ error) {
				mu.Lock()
				got = append(got, v)
				mu.Unlock()
				wg.Done()
			})
		if !ok {
			t.Fatalf("Append(%d) 返回 false", i)
		}
	}
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("apply order = %v, 期望严格递增", got)
		}
	}
}

func TestPipelineClosed(t *testing.T) {
	p := NewPipeline(ExecutorFunc(func(fn func()) { fn() }))
	p.Close()
	p.Close()
	if Append(p, func() (int, error) { return 0, nil }, func(int, error) {}) {
		t.Fatalf("Close 之后 Append 应返回 false")
	}
}
