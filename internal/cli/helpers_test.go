package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gatewire/internal/harness"
	"github.com/roach88/gatewire/internal/store"
)

const emittedScenario = `name: cli_emitted
description: "A reaction with every dependency cached is emitted"
session: cli-emitted
setup:
  users:
    - { id: 400, name: ada }
  channels:
    - { id: 200, kind: text, guild_id: 100, name: general }
steps:
  - notify:
      kind: MESSAGE_REACTION_ADD
      guild_id: 100
      channel_id: 200
      message_id: 300
      user_id: 400
      emoji: { name: "🔥" }
    expect:
      status: emitted
      events: [GUILD_MESSAGE_REACTION_ADD, MESSAGE_REACTION_ADD]
`

const deferredScenario = `name: cli_deferred
description: "A reaction from an unknown user stays pending"
session: cli-deferred
setup:
  channels:
    - { id: 200, kind: text, guild_id: 100, name: general }
steps:
  - notify:
      kind: MESSAGE_REACTION_ADD
      guild_id: 100
      channel_id: 200
      message_id: 300
      user_id: 400
      emoji: { name: "🔥" }
    expect: { status: deferred, key: "user:400" }
  - notify:
      kind: MESSAGE_REACTION_ADD
      guild_id: 100
      channel_id: 200
      message_id: 301
      user_id: 401
      emoji: { name: "🔥" }
    expect: { status: deferred, key: "user:401" }
assertions:
  - type: pending
    keys: ["user:400", "user:401"]
`

// failingScenario expects an outcome the router never produces.
const failingScenario = `name: cli_failing
description: "Expects an emit that cannot happen"
setup:
  channels:
    - { id: 200, kind: text, guild_id: 100 }
steps:
  - notify:
      kind: MESSAGE_REACTION_ADD
      guild_id: 100
      channel_id: 200
      message_id: 300
      user_id: 400
      emoji: { name: "🔥" }
    expect: { status: emitted }
`

// schemaInvalidScenario has a step with no operation.
const schemaInvalidScenario = `name: cli_invalid
description: "Steps must not be empty"
steps: []
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// seedJournal runs scenarios into a fresh journal file and returns its path.
func seedJournal(t *testing.T, scenarios ...string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	for i, content := range scenarios {
		scenario, err := harness.ParseScenario("seed.yaml", []byte(content))
		require.NoError(t, err, "scenario %d", i)
		result, err := harness.Run(context.Background(), scenario, harness.WithStore(st))
		require.NoError(t, err)
		require.True(t, result.Pass, "scenario %d: %v", i, result.Errors)
	}
	return dbPath
}
