package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gatewire/internal/ir"
)

const minimalScenario = `
name: minimal
description: "one notification"
steps:
  - notify:
      kind: MESSAGE_REACTION_ADD
      channel_id: 201
      message_id: 300
      user_id: 400
      emoji: { name: "🔥" }
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_Minimal(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", sc.Name)
	require.Len(t, sc.Steps, 1)
	assert.Equal(t, OpNotify, sc.Steps[0].Op())

	n := sc.Steps[0].Notify
	assert.Equal(t, ir.KindReactionAdd, n.Kind)
	assert.Equal(t, ir.Snowflake(201), n.ChannelID)
	assert.Equal(t, "🔥", n.Emoji.Name)
	assert.Zero(t, n.Seq, "seq is stamped at run time")
}

func TestLoadScenario_Full(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/chained_dependencies.yaml")
	require.NoError(t, err)

	require.Len(t, sc.Setup.Emotes, 1)
	assert.Equal(t, "blob", sc.Setup.Emotes[0].Name)

	ops := make([]string, len(sc.Steps))
	for i, step := range sc.Steps {
		ops[i] = step.Op()
	}
	assert.Equal(t, []string{OpNotify, OpAddGhostUser, OpAddChannel}, ops)

	require.Len(t, sc.Assertions, 3)
	assert.Equal(t, map[string]int{"deferred": 2, "emitted": 1}, sc.Assertions[2].Statuses)
}

func TestLoadScenario_AllFixturesLoad(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		_, err := LoadScenario(f)
		assert.NoError(t, err, f)
	}
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing name",
			yaml: `
description: "x"
steps:
  - lock: 100
`,
		},
		{
			name: "no steps",
			yaml: `
name: x
description: "x"
steps: []
`,
		},
		{
			name: "unknown top-level field",
			yaml: `
name: x
description: "x"
step:
  - lock: 100
`,
		},
		{
			name: "unknown channel kind",
			yaml: `
name: x
description: "x"
setup:
  channels:
    - { id: 200, kind: forum, guild_id: 100 }
steps:
  - lock: 100
`,
		},
		{
			name: "bad expect status",
			yaml: `
name: x
description: "x"
steps:
  - notify: { kind: MESSAGE_REACTION_ADD }
    expect: { status: ok }
`,
		},
		{
			name: "bad key",
			yaml: `
name: x
description: "x"
steps:
  - notify: { kind: MESSAGE_REACTION_ADD }
    expect: { status: deferred, key: "member:4" }
`,
		},
		{
			name: "negative count",
			yaml: `
name: x
description: "x"
steps:
  - lock: 100
assertions:
  - { type: pending, count: -1 }
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario("inline.yaml", []byte(tt.yaml))
			require.Error(t, err)

			var schemaErr *SchemaError
			assert.ErrorAs(t, err, &schemaErr)
		})
	}
}

func TestParseScenario_SemanticErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "two operations",
			yaml: `
name: x
description: "x"
steps:
  - lock: 100
    unlock: 100
`,
			wantErr: "more than one operation: lock, unlock",
		},
		{
			name: "empty step",
			yaml: `
name: x
description: "x"
steps:
  - {}
`,
			wantErr: "steps[0]: no operation",
		},
		{
			name: "expect on add step",
			yaml: `
name: x
description: "x"
steps:
  - add_user: { id: 4 }
    expect: { status: emitted }
`,
			wantErr: "expect is only allowed on notify steps",
		},
		{
			name: "events assertion without checks",
			yaml: `
name: x
description: "x"
steps:
  - lock: 100
assertions:
  - type: events
`,
			wantErr: "types or count is required for events",
		},
		{
			name: "outcomes assertion without checks",
			yaml: `
name: x
description: "x"
steps:
  - lock: 100
assertions:
  - type: outcomes
`,
			wantErr: "statuses or count is required for outcomes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario("inline.yaml", []byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey("channel:200")
	require.NoError(t, err)
	assert.Equal(t, ir.Key(ir.EntityChannel, 200), key)

	for _, bad := range []string{"channel", "member:1", "user:abc", "user:-1"} {
		_, err := ParseKey(bad)
		assert.Error(t, err, bad)
	}
}
