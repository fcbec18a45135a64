// Package event 把会话生命周期和聊天广播通知给逻辑 goroutine 之外的使用方
// (模拟层, 审计日志). 处理器在发布方的 goroutine 上同步执行, 不能阻塞.
package event

import "github.com/google/uuid"

const (
	EventSessionJoin   = "session.join"
	EventSessionLeave  = "session.leave"
	EventChatBroadcast = "chat.broadcast"
)

// SessionEvent is published when a player enters play and when any session
// closes. Reason is empty on join.
type SessionEvent struct {
	SessionID uuid.UUID
	PlayerID  uuid.UUID
	Name      string
	Remote    string
	Reason    string
}
