package protocol

import (
	"fmt"
	"io"
)

type Direction int8

const (
	Serverbound Direction = iota
	Clientbound
)

func (d Direction) String() string {
	if d == Serverbound {
		return "serverbound"
	}
	return "clientbound"
}

// Type 标记每一种具体消息. 集合是封闭的, 只有本包定义消息类型.
type Type uint16

const (
	TypeUnknown Type = iota

	TypeIntention

	TypeStatusRequest
	TypePingRequest
	TypeStatusResponse
	TypePongResponse

	TypeLoginStart
	TypeLoginAcknowledged
	TypeLoginDisconnect
	TypeLoginSuccess
	TypeSetCompression

	TypeAcceptTeleportation
	TypeChatAck
	TypeChatCommand
	TypeChatCommandSigned
	TypeChat
	TypeChatSessionUpdate
	TypeClientInformation
	TypeCustomPayload
	TypeKeepAliveServerbound
	TypeMovePlayerPos
	TypeMovePlayerPosRot
	TypeMovePlayerRot
	TypeMovePlayerStatusOnly
	TypeMoveVehicleServerbound
	TypePlayerAction
	TypeSwing

	TypeDisconnect
	TypeKeepAliveClientbound
	TypeMoveVehicleClientbound
	TypePlayerChat
	TypePlayerPosition
	TypeSystemChat

	typeCount
)

var typeNames = [...]string{
	TypeUnknown:                "unknown",
	TypeIntention:              "intention",
	TypeStatusRequest:          "status_request",
	TypePingRequest:            "ping_request",
	TypeStatusResponse:         "status_response",
	TypePongResponse:           "pong_response",
	TypeLoginStart:             "login_start",
	TypeLoginAcknowledged:      "login_acknowledged",
	TypeLoginDisconnect:        "login_disconnect",
	TypeLoginSuccess:           "login_success",
	TypeSetCompression:         "set_compression",
	TypeAcceptTeleportation:    "accept_teleportation",
	TypeChatAck:                "chat_ack",
	TypeChatCommand:            "chat_command",
	TypeChatCommandSigned:      "chat_command_signed",
	TypeChat:                   "chat",
	TypeChatSessionUpdate:      "chat_session_update",
	TypeClientInformation:      "client_information",
	TypeCustomPayload:          "custom_payload",
	TypeKeepAliveServerbound:   "keep_alive",
	TypeMovePlayerPos:          "move_player_pos",
	TypeMovePlayerPosRot:       "move_player_pos_rot",
	TypeMovePlayerRot:          "move_player_rot",
	TypeMovePlayerStatusOnly:   "move_player_status_only",
	TypeMoveVehicleServerbound: "move_vehicle",
	TypePlayerAction:           "player_action",
	TypeSwing:                  "swing",
	TypeDisconnect:             "disconnect",
	TypeKeepAliveClientbound:   "keep_alive",
	TypeMoveVehicleClientbound: "move_vehicle",
	TypePlayerChat:             "player_chat",
	TypePlayerPosition:         "player_position",
	TypeSystemChat:             "system_chat",
}

func (t Type) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint16(t))
}

// Message is one decoded payload. Concrete messages are flat records.
type Message interface {
	Type() Type
	Encode(w io.Writer) error
}
