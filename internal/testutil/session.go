package testutil

// DefaultSession is the session token of scenarios that do not set one.
const DefaultSession = "test-session-default"

// FixedSessionGenerator returns the same session token every time, so the
// same scenario journals byte-identical rows on every run.
//
// Unlike engine.FixedGenerator, which hands out a list of tokens once each,
// this generator never runs out.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for
// concurrent use.
type FixedSessionGenerator struct {
	token string
}

// NewFixedSessionGenerator creates a generator for token. The token is
// usually taken from the scenario YAML:
//
//	session: "scenario-session-1"
//
// An empty token yields DefaultSession.
func NewFixedSessionGenerator(token string) *FixedSessionGenerator {
	if token == "" {
		token = DefaultSession
	}
	return &FixedSessionGenerator{token: token}
}

// Generate returns the fixed token.
// Implements engine.SessionGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.token
}
