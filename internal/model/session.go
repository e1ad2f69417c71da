package model

// MessageKind records which handler last wrote a session's message
type MessageKind string

const (
	KindHelp     MessageKind = "helpmsg"
	KindEcho     MessageKind = "echo_message"
	KindGit      MessageKind = "git_handler"
	KindDocker   MessageKind = "docker_handler"
	KindCircleCI MessageKind = "circleci_handler"
)

// SlotName names an onboarding attachment slot
type SlotName string

const (
	SlotPin   SlotName = "pin"
	SlotShare SlotName = "share"
)

// Slots lists the onboarding slots in display order
var Slots = []SlotName{SlotPin, SlotShare}

// Attachment is the rendered text/color pair of a slot
type Attachment struct {
	Text  string `yaml:"text"`
	Color string `yaml:"color"`
}

// completed holds the fixed "done" rendering for each slot
var completed = map[SlotName]Attachment{
	SlotPin: {
		Text:  ":white_check_mark: ~*Pin this message*~ :round_pushpin:",
		Color: "#439FE0",
	},
	SlotShare: {
		Text:  ":white_check_mark: ~*Share this Message*~ :mailbox_with_mail:",
		Color: "#439FE0",
	},
}

// AttachmentSlot is either incomplete, rendering the onboarding prompt, or
// complete, rendering the fixed completion text.
type AttachmentSlot struct {
	Name     SlotName
	Complete bool
	Prompt   Attachment
	Done     Attachment
}

// Current returns what the slot renders as right now
func (s *AttachmentSlot) Current() Attachment {
	if s.Complete {
		return s.Done
	}
	return s.Prompt
}

// SessionRecord is the conversation state of one (team, user) pair
type SessionRecord struct {
	TeamID    string
	UserID    string
	Channel   string // direct message channel
	Timestamp string // ts of the last message posted to Channel
	Text      string
	Kind      MessageKind
	Slots     []*AttachmentSlot
}

// NewSessionRecord returns a record with every slot incomplete and empty
func NewSessionRecord(teamID, userID, channel string) *SessionRecord {
	r := &SessionRecord{TeamID: teamID, UserID: userID, Channel: channel}
	for _, name := range Slots {
		r.Slots = append(r.Slots, &AttachmentSlot{Name: name})
	}
	return r
}

// Slot returns the named slot, or nil if the record has none
func (r *SessionRecord) Slot(name SlotName) *AttachmentSlot {
	for _, s := range r.Slots {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// ResetOnboarding sets every slot back to incomplete with the given prompts
func (r *SessionRecord) ResetOnboarding(prompts map[SlotName]Attachment) {
	for _, s := range r.Slots {
		s.Complete = false
		s.Prompt = prompts[s.Name]
		s.Done = Attachment{}
	}
}

// MarkComplete flips the named slot to its completed rendering in place.
// It returns false for an unknown slot.
func (r *SessionRecord) MarkComplete(name SlotName) bool {
	s := r.Slot(name)
	if s == nil {
		return false
	}
	s.Complete = true
	s.Done = completed[name]
	return true
}

// Attachments returns the non-empty renderings of all slots in order
func (r *SessionRecord) Attachments() []Attachment {
	var out []Attachment
	for _, s := range r.Slots {
		a := s.Current()
		if a.Text == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}
