package config

const (
	DefaultTimeZone = "America/Lima"

	// Service ports; the gateway proxies /analysis/ and /dash/ to these.
	GatewayPort  = 8081
	AnalysisPort = 4243
	DashPort     = 4343

	// Recovery sweep defaults.
	DefaultRecoverySchedule = "*/10 * * * *"
	DefaultRecoveryMaxAgeMn = 30

	// Upload limits.
	MaxUploadBytes = 32 << 20
)
