package chat

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Versifine/warden/internal/kick"
	"github.com/Versifine/warden/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

func sign(t *testing.T, link Link, body Body) *protocol.MessageSignature {
	t.Helper()
	digest := sha256.Sum256(SignaturePayload(link, body))
	raw, err := rsa.SignPKCS1v15(rand.Reader, signingKey(t), crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("签名失败: %v", err)
	}
	var sig protocol.MessageSignature
	copy(sig[:], raw)
	return &sig
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []*Message
	wg   sync.WaitGroup
}

func (b *recordingBroadcaster) BroadcastChat(msg *Message) {
	b.mu.Lock()
	b.msgs = append(b.msgs, msg)
	b.mu.Unlock()
	b.wg.Done()
}

type recordingSender struct {
	sent []protocol.Message
}

func (r *recordingSender) Send(msg protocol.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

type fixture struct {
	tc     *TrustChain
	player uuid.UUID
	now    time.Time
	bc     *recordingBroadcaster
	out    *recordingSender
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		player: uuid.New(),
		now:    time.UnixMilli(1_700_000_000_000),
		bc:     &recordingBroadcaster{},
		out:    &recordingSender{},
	}
	opts := Options{
		Player:      f.player,
		Out:         f.out,
		Broadcaster: f.bc,
		Now:         func() time.Time { return f.now },
		Logger:      zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.tc = NewTrustChain(opts)
	t.Cleanup(f.tc.Close)
	return f
}

func (f *fixture) chat(text string, ts int64) *protocol.ChatMessage {
	return &protocol.ChatMessage{
		Message:   text,
		Timestamp: ts,
		Salt:      42,
		LastSeen:  protocol.LastSeenUpdate{Acknowledged: make([]bool, protocol.LastSeenWindow)},
	}
}

func (f *fixture) startSession(t *testing.T, expires time.Time) uuid.UUID {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&signingKey(t).PublicKey)
	if err != nil {
		t.Fatalf("序列化公钥失败: %v", err)
	}
	sessionID := uuid.New()
	err = f.tc.HandleSessionUpdate(&protocol.ChatSessionUpdate{
		SessionID: sessionID,
		ExpiresAt: expires.UnixMilli(),
		PublicKey: der,
	})
	if err != nil {
		t.Fatalf("HandleSessionUpdate() error = %v", err)
	}
	return sessionID
}

func TestUnsignedChatIsBroadcast(t *testing.T) {
	f := newFixture(t, nil)
	f.bc.wg.Add(1)
	if err := f.tc.HandleChat(f.chat("hello", 1000)); err != nil {
		t.Fatalf("HandleChat() error = %v", err)
	}
	f.bc.wg.Wait()
	if len(f.bc.msgs) != 1 || f.bc.msgs[0].Body.Content != "hello" || f.bc.msgs[0].Signed() {
		t.Fatalf("广播内容不正确: %+v", f.bc.msgs)
	}
}

// TestChatOrdering 测试同一会话的聊天按时间戳顺序广播
func TestChatOrdering(t *testing.T) {
	f := newFixture(t, nil)
	f.bc.wg.Add(2)
	if err := f.tc.HandleChat(f.chat("first", 1000)); err != nil {
		t.Fatalf("第一条消息: %v", err)
	}
	if err := f.tc.HandleChat(f.chat("second", 2000)); err != nil {
		t.Fatalf("第二条消息: %v", err)
	}
	f.bc.wg.Wait()
	if f.bc.msgs[0].Body.Content != "first" || f.bc.msgs[1].Body.Content != "second" {
		t.Fatalf("广播顺序不正确: %q, %q", f.bc.msgs[0].Body.Content, f.bc.msgs[1].Body.Content)
	}

	err := f.tc.HandleChat(f.chat("late", 1500))
	if !errors.Is(err, kick.OutOfOrderChat) {
		t.Fatalf("error = %v, 期望 %v", err, kick.OutOfOrderChat)
	}
}

func TestEnforceSecureChat(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.EnforceSecure = true })
	err := f.tc.HandleChat(f.chat("hello", 1000))
	if !errors.Is(err, kick.MissingProfileKey) {
		t.Fatalf("error = %v, 期望 %v", err, kick.MissingProfileKey)
	}
}

// TestSignedChain 测试签名链逐条校验并推进
func TestSignedChain(t *testing.T) {
	f := newFixture(t, nil)
	sessionID := f.startSession(t, f.now.Add(time.Hour))

	link := RootLink(f.player, sessionID)
	ts := f.now.UnixMilli()

	f.bc.wg.Add(2)
	for i, text := range []string{"one", "two"} {
		m := f.chat(text, ts+int64(i))
		body := Body{Content: text, Timestamp: time.UnixMilli(m.Timestamp), Salt: m.Salt}
		m.Signature = sign(t, link, body)
		if err := f.tc.HandleChat(m); err != nil {
			t.Fatalf("第 %d 条消息: %v", i, err)
		}
		next, _ := link.advance(*m.Signature)
		link = next
	}
	f.bc.wg.Wait()
	if got := f.bc.msgs[1].Link.Index; got != 1 {
		t.Fatalf("second link index = %d, 期望 1", got)
	}

	// 篡改内容
	m := f.chat("three", ts+10)
	m.Signature = sign(t, link, Body{Content: "tampered", Timestamp: time.UnixMilli(m.Timestamp), Salt: m.Salt})
	if err := f.tc.HandleChat(m); !errors.Is(err, kick.InvalidSignature) {
		t.Fatalf("error = %v, 期望 %v", err, kick.InvalidSignature)
	}

	// 链断开后保持断开
	m = f.chat("four", ts+20)
	m.Signature = sign(t, link, Body{Content: "four", Timestamp: time.UnixMilli(m.Timestamp), Salt: m.Salt})
	if err := f.tc.HandleChat(m); !errors.Is(err, kick.ChainBroken) {
		t.Fatalf("error = %v, 期望 %v", err, kick.ChainBroken)
	}
}

func TestSignedChainMissingSignature(t *testing.T) {
	f := newFixture(t, nil)
	f.startSession(t, f.now.Add(time.Hour))
	if err := f.tc.HandleChat(f.chat("unsigned", f.now.UnixMilli())); !errors.Is(err, kick.MissingProfileKey) {
		t.Fatalf("error = %v, 期望 %v", err, kick.MissingProfileKey)
	}
}

func TestExpiredKey(t *testing.T) {
	f := newFixture(t, nil)
	sessionID := f.startSession(t, f.now.Add(time.Minute))
	f.now = f.now.Add(2 * time.Minute)

	m := f.chat("hi", f.now.UnixMilli())
	m.Signature = sign(t, RootLink(f.player, sessionID), Body{Content: "hi", Timestamp: time.UnixMilli(m.Timestamp), Salt: m.Salt})
	if err := f.tc.HandleChat(m); !errors.Is(err, kick.ExpiredPublicKey) {
		t.Fatalf("error = %v, 期望 %v", err, kick.ExpiredPublicKey)
	}
}

func TestSessionUpdateRejectsBadKeys(t *testing.T) {
	f := newFixture(t, nil)

	err := f.tc.HandleSessionUpdate(&protocol.ChatSessionUpdate{PublicKey: []byte("garbage"), ExpiresAt: f.now.Add(time.Hour).UnixMilli()})
	if !errors.Is(err, kick.InvalidPublicKey) {
		t.Fatalf("error = %v, 期望 %v", err, kick.InvalidPublicKey)
	}

	der, _ := x509.MarshalPKIXPublicKey(&signingKey(t).PublicKey)
	err = f.tc.HandleSessionUpdate(&protocol.ChatSessionUpdate{PublicKey: der, ExpiresAt: f.now.Add(-time.Second).UnixMilli()})
	if !errors.Is(err, kick.ExpiredPublicKey) {
		t.Fatalf("error = %v, 期望 %v", err, kick.ExpiredPublicKey)
	}
}

// TestStaleMessageOnlyWarns 测试服务器端过期的消息只记日志
func TestStaleMessageOnlyWarns(t *testing.T) {
	f := newFixture(t, nil)
	sessionID := f.startSession(t, f.now.Add(time.Hour))

	old := f.now.Add(-10 * time.Minute).UnixMilli()
	m := f.chat("old news", old)
	m.Signature = sign(t, RootLink(f.player, sessionID), Body{Content: "old news", Timestamp: time.UnixMilli(old), Salt: m.Salt})
	f.bc.wg.Add(1)
	if err := f.tc.HandleChat(m); err != nil {
		t.Fatalf("过期消息只记日志, 应被接受, 实际 %v", err)
	}
	f.bc.wg.Wait()
}

// TestBackpressure 测试未确认消息达到上限时才断开
func TestBackpressure(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Broadcaster = nil })

	for i := 0; i < DefaultMaxPending-1; i++ {
		if err := f.tc.AddPending(sigOf(i)); err != nil {
			t.Fatalf("AddPending(%d) error = %v", i, err)
		}
	}
	if err := f.tc.HandleChat(f.chat("ok", 1)); err != nil {
		t.Fatalf("4095 条未确认不应触发, 实际 %v", err)
	}

	if err := f.tc.AddPending(sigOf(DefaultMaxPending)); err != nil {
		t.Fatalf("AddPending error = %v", err)
	}
	if f.tc.PendingCount() != DefaultMaxPending {
		t.Fatalf("PendingCount() = %d, 期望 %d", f.tc.PendingCount(), DefaultMaxPending)
	}
	if err := f.tc.HandleChat(f.chat("blocked", 2)); !errors.Is(err, kick.TooManyPendingChats) {
		t.Fatalf("error = %v, 期望 %v", err, kick.TooManyPendingChats)
	}
	if err := f.tc.AddPending(sigOf(DefaultMaxPending + 1)); !errors.Is(err, kick.TooManyPendingChats) {
		t.Fatalf("AddPending beyond limit error = %v, 期望 %v", err, kick.TooManyPendingChats)
	}
}

func TestAckReleasesPending(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 5; i++ {
		_ = f.tc.AddPending(sigOf(i))
	}
	if err := f.tc.HandleAck(&protocol.ChatAck{Offset: 5}); err != nil {
		t.Fatalf("HandleAck() error = %v", err)
	}
	if f.tc.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d, 期望 0", f.tc.PendingCount())
	}
	if err := f.tc.HandleAck(&protocol.ChatAck{Offset: 1}); !errors.Is(err, kick.ChatValidationFailed) {
		t.Fatalf("error = %v, 期望 %v", err, kick.ChatValidationFailed)
	}
}

// TestSpam 测试刷屏计数的触发和衰减
func TestSpam(t *testing.T) {
	t.Run("一个 tick 内 10 条触发", func(t *testing.T) {
		f := newFixture(t, func(o *Options) { o.Broadcaster = nil })
		for i := 0; i < 9; i++ {
			if err := f.tc.HandleChat(f.chat("spam", int64(i))); err != nil {
				t.Fatalf("第 %d 条消息: %v", i, err)
			}
		}
		if err := f.tc.HandleChat(f.chat("spam", 9)); !errors.Is(err, kick.Spam) {
			t.Fatalf("error = %v, 期望 %v", err, kick.Spam)
		}
	})

	t.Run("豁免玩家不被踢出", func(t *testing.T) {
		f := newFixture(t, func(o *Options) {
			o.Broadcaster = nil
			o.Exempt = func() bool { return true }
		})
		for i := 0; i < 20; i++ {
			if err := f.tc.HandleChat(f.chat("op", int64(i))); err != nil {
				t.Fatalf("第 %d 条消息: %v", i, err)
			}
		}
	})

	t.Run("200 tick 后归零", func(t *testing.T) {
		f := newFixture(t, func(o *Options) { o.Broadcaster = nil })
		for i := 0; i < 9; i++ {
			_ = f.tc.HandleChat(f.chat("burst", int64(i)))
		}
		for i := 0; i < 200; i++ {
			f.tc.Tick()
		}
		if f.tc.SpamCount() != 0 {
			t.Fatalf("SpamCount() = %d, 期望 0", f.tc.SpamCount())
		}
		for i := 0; i < 9; i++ {
			if err := f.tc.HandleChat(f.chat("fresh", int64(100+i))); err != nil {
				t.Fatalf("衰减后新一轮第 %d 条消息: %v", i, err)
			}
		}
	})
}

func TestChatHidden(t *testing.T) {
	f := newFixture(t, nil)
	f.tc.SetChatMode(protocol.ChatModeHidden)
	if err := f.tc.HandleChat(f.chat("hello", 1)); err != nil {
		t.Fatalf("关闭聊天不应踢出, 实际 %v", err)
	}
	if len(f.out.sent) != 1 {
		t.Fatalf("sent = %d, 期望 1 system message", len(f.out.sent))
	}
	if _, ok := f.out.sent[0].(*protocol.SystemChat); !ok {
		t.Fatalf("sent %T, 期望 *protocol.SystemChat", f.out.sent[0])
	}
}

type recordingCommands struct {
	got []string
	err error
}

func (r *recordingCommands) Dispatch(_ uuid.UUID, command string) error {
	r.got = append(r.got, command)
	return r.err
}

// TestCommands 测试命令交给分发器执行
func TestCommands(t *testing.T) {
	cmds := &recordingCommands{}
	f := newFixture(t, func(o *Options) { o.Commands = cmds })

	if err := f.tc.HandleCommand(&protocol.ChatCommand{Command: "tp 0 64 0"}); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	err := f.tc.HandleSignedCommand(&protocol.ChatCommandSigned{
		Command:   "msg bob hi",
		Timestamp: 10,
		LastSeen:  protocol.LastSeenUpdate{Acknowledged: make([]bool, protocol.LastSeenWindow)},
	})
	if err != nil {
		t.Fatalf("HandleSignedCommand() error = %v", err)
	}
	if len(cmds.got) != 2 || cmds.got[1] != "msg bob hi" {
		t.Fatalf("分发的命令不正确: %v", cmds.got)
	}

	err = f.tc.HandleSignedCommand(&protocol.ChatCommandSigned{
		Command:   "msg bob late",
		Timestamp: 5,
		LastSeen:  protocol.LastSeenUpdate{Acknowledged: make([]bool, protocol.LastSeenWindow)},
	})
	if !errors.Is(err, kick.OutOfOrderChat) {
		t.Fatalf("error = %v, 期望 %v", err, kick.OutOfOrderChat)
	}

	cmds.err = errors.New("no such player")
	if err := f.tc.HandleCommand(&protocol.ChatCommand{Command: "kill nobody"}); err != nil {
		t.Fatalf("命令失败应回复提示而不是踢出: %v", err)
	}
	if len(f.out.sent) != 1 {
		t.Fatalf("sent = %d, 期望 1", len(f.out.sent))
	}
}
