package ir

// Version constants for the IR schema and compiler.
const (
	// IRVersion is the IR schema version stored alongside cached explores.
	IRVersion = "1"

	// CompilerVersion is the metric query compiler version.
	CompilerVersion = "0.1.0"
)
