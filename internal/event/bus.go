package event

import (
	"sync"

	"github.com/Versifine/warden/internal/logger"
)

type HandlerFunc func(raw any)

// Bus delivers events to subscribers synchronously, in subscription order,
// on the publishing goroutine. Handlers run on the logic goroutine and must
// not block.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]HandlerFunc),
	}
}

func (b *Bus) Subscribe(eventName string, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

func (b *Bus) Publish(eventName string, evt any) {
	b.mu.RLock()
	handlers := make([]HandlerFunc, len(b.handlers[eventName]))
	copy(handlers, b.handlers[eventName])
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.deliver(eventName, handler, evt)
	}
}

func (b *Bus) deliver(eventName string, h HandlerFunc, evt any) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error().Str("event", eventName).Interface("panic", r).Msg("event handler panicked")
		}
	}()
	h(evt)
}
