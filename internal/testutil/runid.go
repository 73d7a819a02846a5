package testutil

// FixedRunID generates the same run ID every time.
//
// Unlike engine.FixedGenerator which returns IDs in sequence, this generator
// always returns the same ID, so one scenario run twice produces
// byte-identical run logs.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID struct {
	id string
}

// DefaultRunID is used when NewFixedRunID is given an empty ID.
const DefaultRunID = "test-run-default"

// NewFixedRunID creates a fixed run ID generator.
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed run ID.
//
// Implements engine.RunIDGenerator interface.
func (g *FixedRunID) Generate() string {
	return g.id
}
