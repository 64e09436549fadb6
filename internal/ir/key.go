package ir

import "fmt"

// EntityKind names a family of cached entities a notification may depend on.
type EntityKind string

const (
	EntityUser    EntityKind = "user"
	EntityChannel EntityKind = "channel"
	EntityEmote   EntityKind = "emote"
	EntityGuild   EntityKind = "guild"
)

// ParseEntityKind validates a kind name.
func ParseEntityKind(s string) (EntityKind, error) {
	switch k := EntityKind(s); k {
	case EntityUser, EntityChannel, EntityEmote, EntityGuild:
		return k, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
}

// DeferralKey identifies the missing dependency a notification waits on.
type DeferralKey struct {
	Kind EntityKind `json:"kind"`
	ID   Snowflake  `json:"id"`
}

// Key builds a DeferralKey.
func Key(kind EntityKind, id Snowflake) DeferralKey {
	return DeferralKey{Kind: kind, ID: id}
}

// IsZero reports whether the key is unset.
func (k DeferralKey) IsZero() bool {
	return k.Kind == "" && k.ID == 0
}

// String returns "kind:id".
func (k DeferralKey) String() string {
	return string(k.Kind) + ":" + k.ID.String()
}
