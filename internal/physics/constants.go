package physics

const (
	CollisionAxisTolerance = 1e-9

	PlayerWidth     = 0.6
	PlayerDepth     = 0.6
	PlayerHeight    = 1.8
	PlayerHalfWidth = PlayerWidth / 2.0
	PlayerHalfDepth = PlayerDepth / 2.0

	// SupportInflate 和 SupportProbeDepth 定义悬空检测时向外/向下探测的范围
	SupportInflate    = 0.0625
	SupportProbeDepth = 0.55
)
