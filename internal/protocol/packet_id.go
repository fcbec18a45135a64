package protocol

// CurrentProtocolVersion 对应 1.21.4
const (
	CurrentProtocolVersion = 769
	CurrentVersionName     = "1.21.4"
)

const (
	// Handshaking (C→S)
	C2SHandshake = 0x00

	// Status (C→S)
	C2SStatusRequest = 0x00
	C2SPingRequest   = 0x01

	// Status (S→C)
	S2CStatusResponse = 0x00
	S2CPongResponse   = 0x01

	// Login (C→S)
	C2SLoginStart        = 0x00
	C2SLoginAcknowledged = 0x03

	// Login (S→C)
	S2CLoginDisconnect = 0x00
	S2CLoginSuccess    = 0x02
	S2CSetCompression  = 0x03

	// Play (C→S)
	C2SAcceptTeleportation = 0x00
	C2SChatAck             = 0x04
	C2SChatCommand         = 0x05
	C2SChatCommandSigned   = 0x06
	C2SChatMessage         = 0x07
	C2SChatSessionUpdate   = 0x08
	C2SClientInformation   = 0x0C
	C2SCustomPayload       = 0x14
	C2SPlayKeepAlive       = 0x1A
	C2SPlayerPosition      = 0x1C
	C2SPlayerPositionLook  = 0x1D
	C2SPlayerRotation      = 0x1E
	C2SPlayerStatusOnly    = 0x1F
	C2SMoveVehicle         = 0x20
	C2SPlayerAction        = 0x27
	C2SSwing               = 0x3A

	// Play (S→C)
	S2CDisconnect        = 0x1C
	S2CPlayKeepAlive     = 0x27
	S2CMoveVehicle       = 0x33
	S2CPlayerChatMessage = 0x3B
	S2CPlayerPosition    = 0x42
	S2CSystemChatMessage = 0x73
)
