package model

import (
	"encoding/json"
	"fmt"
)

// EventType is the inner event type of an Events API callback
type EventType string

const (
	EventMessage       EventType = "message"
	EventAppMention    EventType = "app_mention"
	EventPinAdded      EventType = "pin_added"
	EventReactionAdded EventType = "reaction_added"
	EventTeamJoin      EventType = "team_join"
)

// IsMessageLike reports whether the event carries user-authored text
func (t EventType) IsMessageLike() bool {
	return t == EventMessage || t == EventAppMention
}

// IsSupported reports whether the bot subscribes to the event type
func (t EventType) IsSupported() bool {
	switch t {
	case EventMessage, EventAppMention, EventPinAdded, EventReactionAdded, EventTeamJoin:
		return true
	}
	return false
}

// EventPayload represents the outer body Slack posts to the events endpoint
type EventPayload struct {
	Token       string   `json:"token"`
	Challenge   string   `json:"challenge"`
	TeamID      string   `json:"team_id"`
	APIAppID    string   `json:"api_app_id"`
	BotID       string   `json:"bot_id"`
	Event       *Event   `json:"event"`
	Type        string   `json:"type"`
	EventID     string   `json:"event_id"`
	EventTime   int      `json:"event_time"`
	AuthedUsers []string `json:"authed_users"`
}

// Event represents the inner event of a callback
type Event struct {
	Type        EventType        `json:"type"`
	User        UserRef          `json:"user"`
	BotID       string           `json:"bot_id"`
	Text        string           `json:"text"`
	Channel     string           `json:"channel"`
	TS          string           `json:"ts"`
	Attachments []map[string]any `json:"attachments"`
}

// UserRef is a user id. team_join sends a full user object, every other
// event sends the bare id.
type UserRef string

func (u *UserRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*u = ""
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*u = UserRef(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("user is neither an id nor an object: %w", err)
	}
	*u = UserRef(obj.ID)
	return nil
}

// Envelope is the part of an inbound event the bot routes on. It is built once
// per request and never mutated. User and BotID keep both author fields of
// the event; Sender is the one replies and sessions key on.
type Envelope struct {
	TeamID      string
	Type        EventType
	Sender      string
	User        string
	BotID       string
	Text        string
	Attachments []map[string]any
}

// Envelope flattens the payload, preferring the bot id over the user id as
// sender so the bot's own posts can be recognised.
func (p *EventPayload) Envelope() Envelope {
	if p.Event == nil {
		return Envelope{TeamID: p.TeamID}
	}
	sender := string(p.Event.User)
	if p.Event.BotID != "" {
		sender = p.Event.BotID
	}
	return Envelope{
		TeamID:      p.TeamID,
		Type:        p.Event.Type,
		Sender:      sender,
		User:        string(p.Event.User),
		BotID:       p.Event.BotID,
		Text:        p.Event.Text,
		Attachments: p.Event.Attachments,
	}
}

// IsShare reports whether the first attachment is a shared message
func (e Envelope) IsShare() bool {
	if len(e.Attachments) == 0 {
		return false
	}
	switch v := e.Attachments[0]["is_share"].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != "" && v != "false" && v != "0"
	}
	return false
}

// BotIdentity holds the ids Slack uses for the bot's own messages
type BotIdentity struct {
	UserID string
	BotID  string
}

// Is reports whether sender is the bot itself
func (b BotIdentity) Is(sender string) bool {
	if sender == "" {
		return false
	}
	return sender == b.UserID || sender == b.BotID
}

// Authored reports whether the bot wrote env, matching any of its author ids
// against either of the bot's ids
func (b BotIdentity) Authored(env Envelope) bool {
	return b.Is(env.Sender) || b.Is(env.User) || b.Is(env.BotID)
}
