package ir

// Action is what a reaction notification does to the message.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Audience is the channel family an event is addressed to.
type Audience string

const (
	AudienceGuild   Audience = "guild"
	AudiencePrivate Audience = "private"
	AudienceAny     Audience = "any"
)

// EventType tags a domain event.
type EventType string

const (
	EventGuildReactionAdd      EventType = "GUILD_MESSAGE_REACTION_ADD"
	EventGuildReactionRemove   EventType = "GUILD_MESSAGE_REACTION_REMOVE"
	EventPrivateReactionAdd    EventType = "PRIVATE_MESSAGE_REACTION_ADD"
	EventPrivateReactionRemove EventType = "PRIVATE_MESSAGE_REACTION_REMOVE"
	EventReactionAdd           EventType = "MESSAGE_REACTION_ADD"
	EventReactionRemove        EventType = "MESSAGE_REACTION_REMOVE"
)

// Event is the single tagged domain-event record delivered to listeners.
//
// Seq is the sequence of the notification the event was built from, also
// when the event comes out of a replay.
type Event struct {
	Type     EventType `json:"type"`
	Action   Action    `json:"action"`
	Audience Audience  `json:"audience"`
	Seq      int64     `json:"seq"`
	User     User      `json:"user"`
	Reaction *Reaction `json:"reaction"`
}

type audienceKey struct {
	channel ChannelKind
	action  Action
}

type audienceEvent struct {
	typ      EventType
	audience Audience
}

// audienceEvents maps (channel kind, action) to the audience-specific event.
// A channel kind missing here cannot legally carry reactions.
var audienceEvents = map[audienceKey]audienceEvent{
	{ChannelText, ActionAdd}:       {EventGuildReactionAdd, AudienceGuild},
	{ChannelText, ActionRemove}:    {EventGuildReactionRemove, AudienceGuild},
	{ChannelPrivate, ActionAdd}:    {EventPrivateReactionAdd, AudiencePrivate},
	{ChannelPrivate, ActionRemove}: {EventPrivateReactionRemove, AudiencePrivate},
}

// genericEvents maps an action to the channel-kind independent event.
var genericEvents = map[Action]EventType{
	ActionAdd:    EventReactionAdd,
	ActionRemove: EventReactionRemove,
}

// BuildEvents returns the events for one resolved reaction: the
// audience-specific event followed by the generic one. ok is false when the
// reaction's channel kind cannot receive this action, in which case nothing
// may be emitted at all.
func BuildEvents(action Action, seq int64, user User, reaction *Reaction) (events []Event, ok bool) {
	specific, ok := audienceEvents[audienceKey{reaction.Channel.Kind, action}]
	if !ok {
		return nil, false
	}
	generic, ok := genericEvents[action]
	if !ok {
		return nil, false
	}
	return []Event{
		{Type: specific.typ, Action: action, Audience: specific.audience, Seq: seq, User: user, Reaction: reaction},
		{Type: generic, Action: action, Audience: AudienceAny, Seq: seq, User: user, Reaction: reaction},
	}, true
}
