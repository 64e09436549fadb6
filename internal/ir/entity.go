package ir

import "fmt"

// ChannelKind is the audience type of a message channel.
type ChannelKind string

const (
	ChannelText     ChannelKind = "text"
	ChannelPrivate  ChannelKind = "private"
	ChannelGroup    ChannelKind = "group"
	ChannelVoice    ChannelKind = "voice"
	ChannelCategory ChannelKind = "category"
)

// ParseChannelKind validates a channel kind name.
func ParseChannelKind(s string) (ChannelKind, error) {
	switch k := ChannelKind(s); k {
	case ChannelText, ChannelPrivate, ChannelGroup, ChannelVoice, ChannelCategory:
		return k, nil
	default:
		return "", fmt.Errorf("unknown channel kind %q", s)
	}
}

// User is a cached account.
//
// Fake marks a ghost entry: a user known only indirectly (e.g. as the
// partner of a private channel) rather than through membership sync.
type User struct {
	ID   Snowflake `json:"id"`
	Name string    `json:"name"`
	Bot  bool      `json:"bot,omitempty"`
	Fake bool      `json:"fake,omitempty"`
}

// Channel is a cached message channel. GuildID is zero for private channels.
type Channel struct {
	ID      Snowflake   `json:"id"`
	Kind    ChannelKind `json:"kind"`
	GuildID Snowflake   `json:"guild_id,omitempty"`
	Name    string      `json:"name,omitempty"`
	Fake    bool        `json:"fake,omitempty"`
}

// Emote is a cached custom emote.
type Emote struct {
	ID       Snowflake `json:"id"`
	GuildID  Snowflake `json:"guild_id,omitempty"`
	Name     string    `json:"name"`
	Animated bool      `json:"animated,omitempty"`
	Fake     bool      `json:"fake,omitempty"`
}
