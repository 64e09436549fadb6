package harness

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gatewire/internal/ir"
)

// Scenario defines one resolution scenario: the cache state the shard
// starts from, the steps fed through it and what must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is the fixed session token journaled with every outcome.
	// If empty, testutil.DefaultSession is used.
	Session string `yaml:"session,omitempty"`

	// Setup seeds the caches and lock table before the first step. Setup
	// never triggers replays since nothing is pending yet.
	Setup Setup `yaml:"setup,omitempty"`

	// Steps run in order on the shard's writer.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state of the run.
	// Supported types: events, pending, outcomes
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Setup is the initial cache and lock state of a scenario.
type Setup struct {
	SelfUser             ir.Snowflake   `yaml:"self_user,omitempty"`
	Users                []UserSpec     `yaml:"users,omitempty"`
	GhostUsers           []UserSpec     `yaml:"ghost_users,omitempty"`
	Channels             []ChannelSpec  `yaml:"channels,omitempty"`
	PrivateChannels      []ChannelSpec  `yaml:"private_channels,omitempty"`
	GhostPrivateChannels []ChannelSpec  `yaml:"ghost_private_channels,omitempty"`
	Emotes               []EmoteSpec    `yaml:"emotes,omitempty"`
	LockedGuilds         []ir.Snowflake `yaml:"locked_guilds,omitempty"`
}

// UserSpec describes a cached user.
type UserSpec struct {
	ID   ir.Snowflake `yaml:"id"`
	Name string       `yaml:"name,omitempty"`
	Bot  bool         `yaml:"bot,omitempty"`
}

func (u UserSpec) user(fake bool) ir.User {
	return ir.User{ID: u.ID, Name: u.Name, Bot: u.Bot, Fake: fake}
}

// ChannelSpec describes a cached channel.
type ChannelSpec struct {
	ID      ir.Snowflake `yaml:"id"`
	Kind    string       `yaml:"kind"`
	GuildID ir.Snowflake `yaml:"guild_id,omitempty"`
	Name    string       `yaml:"name,omitempty"`
}

func (c ChannelSpec) channel(fake bool) (ir.Channel, error) {
	kind, err := ir.ParseChannelKind(c.Kind)
	if err != nil {
		return ir.Channel{}, err
	}
	return ir.Channel{ID: c.ID, Kind: kind, GuildID: c.GuildID, Name: c.Name, Fake: fake}, nil
}

// EmoteSpec describes a cached custom emote.
type EmoteSpec struct {
	ID       ir.Snowflake `yaml:"id"`
	GuildID  ir.Snowflake `yaml:"guild_id,omitempty"`
	Name     string       `yaml:"name"`
	Animated bool         `yaml:"animated,omitempty"`
}

func (e EmoteSpec) emote() ir.Emote {
	return ir.Emote{ID: e.ID, GuildID: e.GuildID, Name: e.Name, Animated: e.Animated}
}

// Step is one scenario step. Exactly one operation field is set.
type Step struct {
	Notify                 *ir.RawNotification `yaml:"notify,omitempty"`
	AddUser                *UserSpec           `yaml:"add_user,omitempty"`
	AddGhostUser           *UserSpec           `yaml:"add_ghost_user,omitempty"`
	AddChannel             *ChannelSpec        `yaml:"add_channel,omitempty"`
	AddPrivateChannel      *ChannelSpec        `yaml:"add_private_channel,omitempty"`
	AddGhostPrivateChannel *ChannelSpec        `yaml:"add_ghost_private_channel,omitempty"`
	AddEmote               *EmoteSpec          `yaml:"add_emote,omitempty"`
	Lock                   ir.Snowflake        `yaml:"lock,omitempty"`
	Unlock                 ir.Snowflake        `yaml:"unlock,omitempty"`

	// Expect checks the outcome of a notify step.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Step operation names, as they appear in YAML and in traces.
const (
	OpNotify                 = "notify"
	OpAddUser                = "add_user"
	OpAddGhostUser           = "add_ghost_user"
	OpAddChannel             = "add_channel"
	OpAddPrivateChannel      = "add_private_channel"
	OpAddGhostPrivateChannel = "add_ghost_private_channel"
	OpAddEmote               = "add_emote"
	OpLock                   = "lock"
	OpUnlock                 = "unlock"
)

// Ops returns the operations set on the step.
func (s Step) Ops() []string {
	var ops []string
	if s.Notify != nil {
		ops = append(ops, OpNotify)
	}
	if s.AddUser != nil {
		ops = append(ops, OpAddUser)
	}
	if s.AddGhostUser != nil {
		ops = append(ops, OpAddGhostUser)
	}
	if s.AddChannel != nil {
		ops = append(ops, OpAddChannel)
	}
	if s.AddPrivateChannel != nil {
		ops = append(ops, OpAddPrivateChannel)
	}
	if s.AddGhostPrivateChannel != nil {
		ops = append(ops, OpAddGhostPrivateChannel)
	}
	if s.AddEmote != nil {
		ops = append(ops, OpAddEmote)
	}
	if !s.Lock.IsZero() {
		ops = append(ops, OpLock)
	}
	if !s.Unlock.IsZero() {
		ops = append(ops, OpUnlock)
	}
	return ops
}

// Op returns the step's single operation, or "" if the step is invalid.
func (s Step) Op() string {
	ops := s.Ops()
	if len(ops) != 1 {
		return ""
	}
	return ops[0]
}

// Expect specifies the expected outcome of a notify step.
type Expect struct {
	// Status is blocked, dropped, deferred or emitted.
	Status string `yaml:"status"`

	// Reason is the drop reason (dropped only).
	Reason string `yaml:"reason,omitempty"`

	// Key is the deferral key as "kind:id" (deferred only).
	Key string `yaml:"key,omitempty"`

	// Events are the event types emitted, in order (emitted only).
	Events []string `yaml:"events,omitempty"`
}

// Assertion validates the state at the end of the run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "events": every event delivered during the run
	// - "pending": deferrals still waiting at the end
	// - "outcomes": journaled outcomes by status
	Type string `yaml:"type"`

	// Types is the exact ordered list of delivered event types (events).
	Types []string `yaml:"types,omitempty"`

	// Count is the expected number of events, pending deferrals or
	// journaled outcomes. Nil means "not checked".
	Count *int `yaml:"count,omitempty"`

	// Keys are the deferral keys still pending, sorted (pending).
	Keys []string `yaml:"keys,omitempty"`

	// Statuses maps an outcome status to its expected count (outcomes).
	// Statuses not listed are not checked.
	Statuses map[string]int `yaml:"statuses,omitempty"`
}

// Assertion type constants.
const (
	AssertEvents   = "events"
	AssertPending  = "pending"
	AssertOutcomes = "outcomes"
)

// LoadScenario reads, schema-checks and parses a scenario YAML file.
// Returns an error if the file doesn't exist, does not match the schema,
// contains unknown fields or fails semantic validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(path, data)
}

// ParseScenario parses scenario YAML. name is used in error messages.
func ParseScenario(name string, data []byte) (*Scenario, error) {
	if err := ValidateSchema(name, data); err != nil {
		return nil, err
	}

	// Strict decoding catches typos the schema let through in free-form maps.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks what the schema cannot express.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		ops := step.Ops()
		switch len(ops) {
		case 0:
			return fmt.Errorf("steps[%d]: no operation", i)
		case 1:
		default:
			return fmt.Errorf("steps[%d]: more than one operation: %s", i, strings.Join(ops, ", "))
		}
		if step.Expect == nil {
			continue
		}
		if ops[0] != OpNotify {
			return fmt.Errorf("steps[%d]: expect is only allowed on notify steps", i)
		}
		if step.Expect.Key != "" {
			if _, err := ParseKey(step.Expect.Key); err != nil {
				return fmt.Errorf("steps[%d].expect: %w", i, err)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertEvents:
		if a.Types == nil && a.Count == nil {
			return fmt.Errorf("assertions[%d]: types or count is required for events", index)
		}
	case AssertPending:
		if a.Keys == nil && a.Count == nil {
			return fmt.Errorf("assertions[%d]: keys or count is required for pending", index)
		}
		for _, k := range a.Keys {
			if _, err := ParseKey(k); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertOutcomes:
		if len(a.Statuses) == 0 && a.Count == nil {
			return fmt.Errorf("assertions[%d]: statuses or count is required for outcomes", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// ParseKey parses a deferral key written as "kind:id".
func ParseKey(s string) (ir.DeferralKey, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return ir.DeferralKey{}, fmt.Errorf("invalid key %q: want kind:id", s)
	}
	k, err := ir.ParseEntityKind(kind)
	if err != nil {
		return ir.DeferralKey{}, fmt.Errorf("invalid key %q: %w", s, err)
	}
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return ir.DeferralKey{}, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return ir.Key(k, ir.Snowflake(v)), nil
}
