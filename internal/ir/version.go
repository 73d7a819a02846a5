package ir

// Version constants for the run-log schema and the synthesizer.
const (
	// RecordVersion is the version of the persisted run-log records.
	RecordVersion = "1"

	// EngineVersion is the sqlsynth engine version.
	EngineVersion = "0.1.0"
)
