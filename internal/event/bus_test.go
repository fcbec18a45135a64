package event

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TestPublishIsSynchronous 测试 Publish 返回前所有 handler 都已执行
func TestPublishIsSynchronous(t *testing.T) {
	bus := NewBus()
	var received any
	bus.Subscribe(EventSessionJoin, func(evt any) {
		received = evt
	})

	evt := &SessionEvent{SessionID: uuid.New(), Name: "Steve"}
	bus.Publish(EventSessionJoin, evt)

	if received != evt {
		t.Errorf("handler 收到 %v, 期望 %v", received, evt)
	}
}

// TestPublishOrder 测试 handler 按订阅顺序执行
func TestPublishOrder(t *testing.T) {
	bus := NewBus()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		bus.Subscribe(EventChatBroadcast, func(any) { order = append(order, i) })
	}
	bus.Publish(EventChatBroadcast, nil)

	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("执行顺序 = %v, 期望 [0 1 2]", order)
	}
}

// TestPublishNoSubscribers 测试发布无订阅者的事件不会 panic
func TestPublishNoSubscribers(t *testing.T) {
	NewBus().Publish("nonexistent", "data")
}

// TestHandlerPanicIsContained 测试某个 handler panic 不影响其他 handler
func TestHandlerPanicIsContained(t *testing.T) {
	bus := NewBus()
	var called bool
	bus.Subscribe(EventSessionLeave, func(any) { panic("boom") })
	bus.Subscribe(EventSessionLeave, func(any) { called = true })

	bus.Publish(EventSessionLeave, &SessionEvent{Reason: "timeout"})

	if !called {
		t.Error("panic 之后的 handler 应该仍被调用")
	}
}

// TestMultipleEvents 测试不同事件名称互不干扰
func TestMultipleEvents(t *testing.T) {
	bus := NewBus()
	var chatReceived, joinReceived bool
	bus.Subscribe(EventChatBroadcast, func(any) { chatReceived = true })
	bus.Subscribe(EventSessionJoin, func(any) { joinReceived = true })

	bus.Publish(EventChatBroadcast, NewChatEvent(uuid.New(), "Steve", "hi", false, SourcePlayer))

	if !chatReceived {
		t.Error("chat handler 应该被调用")
	}
	if joinReceived {
		t.Error("join handler 不应该被调用")
	}
}

// TestConcurrentSubscribeAndPublish 测试并发订阅和发布的线程安全性
func TestConcurrentSubscribeAndPublish(t *testing.T) {
	bus := NewBus()
	var count atomic.Int64
	bus.Subscribe("test", func(any) { count.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			bus.Publish("test", "data")
		}()
		go func() {
			defer wg.Done()
			bus.Subscribe("other", func(any) {})
		}()
	}
	wg.Wait()

	if count.Load() != 50 {
		t.Errorf("handler 被调用 %d 次, 期望 50 次", count.Load())
	}
}

func TestSourceTypeString(t *testing.T) {
	tests := []struct {
		source   SourceType
		expected string
	}{
		{SourceSystem, "System"},
		{SourcePlayer, "Player"},
		{SourceCommand, "Command"},
		{SourceType(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.source.String(); got != tt.expected {
			t.Errorf("SourceType(%d).String() = %q, 期望 %q", tt.source, got, tt.expected)
		}
	}
}

// TestChatLogger 测试聊天日志处理器写出广播内容, 并忽略类型不对的事件
func TestChatLogger(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus()
	bus.Subscribe(EventChatBroadcast, NewChatLogger(zerolog.New(&buf)))

	bus.Publish(EventChatBroadcast, NewChatEvent(uuid.New(), "Alex", "hello", true, SourcePlayer))
	out := buf.String()
	for _, want := range []string{`"name":"Alex"`, `"source":"Player"`, `"signed":true`, `"message":"hello"`} {
		if !strings.Contains(out, want) {
			t.Errorf("日志缺少 %s: %s", want, out)
		}
	}

	buf.Reset()
	bus.Publish(EventChatBroadcast, "not an event")
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Errorf("类型错误的事件应记录错误: %s", buf.String())
	}
}
