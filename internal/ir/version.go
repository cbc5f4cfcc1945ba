package ir

const (
	// IRVersion is the version of the host spec and change schema.
	IRVersion = "1"

	// EngineVersion is stamped on journaled changes.
	EngineVersion = "0.1.0"
)
