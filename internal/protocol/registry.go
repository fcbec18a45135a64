package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

// DecodeFunc 把负载解析成具体消息
type DecodeFunc func(r *bytes.Reader) (Message, error)

// Entry 描述一条已注册的消息
type Entry struct {
	Phase     Phase
	Direction Direction
	ID        int32
	Type      Type
	// Skippable 为 true 时解码失败只丢弃该消息, 不断开连接
	Skippable bool
	// Terminal 消息会切换入站阶段, 读 goroutine 必须等逻辑 goroutine
	// 应用新阶段后才能继续解码后面的帧
	Terminal bool
	decode   DecodeFunc
}

type entryKey struct {
	phase Phase
	dir   Direction
	id    int32
}

type typeKey struct {
	t   Type
	dir Direction
}

// Registry 按 (阶段, 方向, id) 查找解码函数, 也能从消息类型反查 id.
// NewRegistry 返回之后不再修改, 可以并发读.
type Registry struct {
	byID   map[entryKey]*Entry
	byType map[typeKey]*Entry
}

type registration struct {
	id        int32
	t         Type
	decode    DecodeFunc
	skippable bool
	terminal  bool
}

func NewRegistry() *Registry {
	r := &Registry{
		byID:   make(map[entryKey]*Entry),
		byType: make(map[typeKey]*Entry),
	}

	r.register(Handshaking, Serverbound,
		registration{id: C2SHandshake, t: TypeIntention, decode: ParseIntention, terminal: true},
	)

	r.register(Status, Serverbound,
		registration{id: C2SStatusRequest, t: TypeStatusRequest, decode: ParseStatusRequest},
		registration{id: C2SPingRequest, t: TypePingRequest, decode: ParsePingRequest},
	)
	r.register(Status, Clientbound,
		registration{id: S2CStatusResponse, t: TypeStatusResponse, decode: ParseStatusResponse},
		registration{id: S2CPongResponse, t: TypePongResponse, decode: ParsePongResponse},
	)

	r.register(Login, Serverbound,
		registration{id: C2SLoginStart, t: TypeLoginStart, decode: ParseLoginStart},
		registration{id: C2SLoginAcknowledged, t: TypeLoginAcknowledged, decode: ParseLoginAcknowledged, terminal: true},
	)
	r.register(Login, Clientbound,
		registration{id: S2CLoginDisconnect, t: TypeLoginDisconnect, decode: ParseLoginDisconnect},
		registration{id: S2CLoginSuccess, t: TypeLoginSuccess, decode: ParseLoginSuccess},
		registration{id: S2CSetCompression, t: TypeSetCompression, decode: ParseSetCompression},
	)

	r.register(Play, Serverbound,
		registration{id: C2SAcceptTeleportation, t: TypeAcceptTeleportation, decode: ParseTeleportConfirm},
		registration{id: C2SChatAck, t: TypeChatAck, decode: ParseChatAck},
		registration{id: C2SChatCommand, t: TypeChatCommand, decode: ParseChatCommand},
		registration{id: C2SChatCommandSigned, t: TypeChatCommandSigned, decode: ParseChatCommandSigned},
		registration{id: C2SChatMessage, t: TypeChat, decode: ParseChatMessage},
		registration{id: C2SChatSessionUpdate, t: TypeChatSessionUpdate, decode: ParseChatSessionUpdate},
		registration{id: C2SClientInformation, t: TypeClientInformation, decode: ParseClientInformation, skippable: true},
		registration{id: C2SCustomPayload, t: TypeCustomPayload, decode: ParseCustomPayload, skippable: true},
		registration{id: C2SPlayKeepAlive, t: TypeKeepAliveServerbound, decode: ParseKeepAlive},
		registration{id: C2SPlayerPosition, t: TypeMovePlayerPos, decode: parseMovePlayer(true, false)},
		registration{id: C2SPlayerPositionLook, t: TypeMovePlayerPosRot, decode: parseMovePlayer(true, true)},
		registration{id: C2SPlayerRotation, t: TypeMovePlayerRot, decode: parseMovePlayer(false, true)},
		registration{id: C2SPlayerStatusOnly, t: TypeMovePlayerStatusOnly, decode: parseMovePlayer(false, false)},
		registration{id: C2SMoveVehicle, t: TypeMoveVehicleServerbound, decode: parseMoveVehicle(false)},
		registration{id: C2SPlayerAction, t: TypePlayerAction, decode: ParsePlayerAction},
		registration{id: C2SSwing, t: TypeSwing, decode: ParseSwing, skippable: true},
	)
	r.register(Play, Clientbound,
		registration{id: S2CDisconnect, t: TypeDisconnect, decode: ParseDisconnect},
		registration{id: S2CPlayKeepAlive, t: TypeKeepAliveClientbound, decode: parseClientboundKeepAlive},
		registration{id: S2CMoveVehicle, t: TypeMoveVehicleClientbound, decode: parseMoveVehicle(true)},
		registration{id: S2CPlayerChatMessage, t: TypePlayerChat, decode: ParsePlayerChat},
		registration{id: S2CPlayerPosition, t: TypePlayerPosition, decode: ParsePlayerPosition},
		registration{id: S2CSystemChatMessage, t: TypeSystemChat, decode: ParseSystemChat},
	)
	return r
}

func (r *Registry) register(phase Phase, dir Direction, regs ...registration) {
	for _, reg := range regs {
		e := &Entry{
			Phase:     phase,
			Direction: dir,
			ID:        reg.id,
			Type:      reg.t,
			Skippable: reg.skippable,
			Terminal:  reg.terminal,
			decode:    reg.decode,
		}
		k := entryKey{phase: phase, dir: dir, id: reg.id}
		if _, dup := r.byID[k]; dup {
			panic(fmt.Sprintf("protocol: duplicate id 0x%02x in %s/%s", reg.id, phase, dir))
		}
		tk := typeKey{t: reg.t, dir: dir}
		if _, dup := r.byType[tk]; dup {
			panic(fmt.Sprintf("protocol: duplicate type %s/%s", reg.t, dir))
		}
		r.byID[k] = e
		r.byType[tk] = e
	}
}

// Lookup 返回指定阶段和方向下 id 对应的注册项
func (r *Registry) Lookup(phase Phase, dir Direction, id int32) (*Entry, error) {
	e, ok := r.byID[entryKey{phase: phase, dir: dir, id: id}]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02x in %s/%s", ErrUnknownMessageID, id, phase, dir)
	}
	return e, nil
}

// Decode 把数据包解码成具体消息. 可跳过的消息解码失败时包装 ErrSkippable,
// 其余错误都会断开连接.
func (r *Registry) Decode(phase Phase, dir Direction, packet *Packet) (Message, *Entry, error) {
	e, err := r.Lookup(phase, dir, packet.ID)
	if err != nil {
		return nil, nil, err
	}
	rd := bytes.NewReader(packet.Payload)
	msg, err := e.decode(rd)
	if err == nil && rd.Len() > 0 {
		err = fmt.Errorf("%w: %d trailing bytes", ErrInvalidPacket, rd.Len())
	}
	if err != nil {
		if e.Skippable {
			return nil, e, errors.Join(ErrSkippable, fmt.Errorf("%s: %w", e.Type, err))
		}
		return nil, e, fmt.Errorf("decode %s: %w", e.Type, err)
	}
	return msg, e, nil
}

// Encode 按指定阶段序列化消息
func (r *Registry) Encode(phase Phase, dir Direction, msg Message) (*Packet, error) {
	e, ok := r.byType[typeKey{t: msg.Type(), dir: dir}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnregisteredType, msg.Type(), dir)
	}
	if e.Phase != phase {
		return nil, fmt.Errorf("%w: %s belongs to %s, connection is in %s", ErrWrongPhase, msg.Type(), e.Phase, phase)
	}
	var buf bytes.Buffer
	if err := msg.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	return &Packet{ID: e.ID, Payload: buf.Bytes()}, nil
}

// EntryFor returns the registration of a message type.
func (r *Registry) EntryFor(t Type, dir Direction) (*Entry, bool) {
	e, ok := r.byType[typeKey{t: t, dir: dir}]
	return e, ok
}
