package domain

// Command is the wire-level control message vocabulary carried as "cmd" in
// peer messages. Values are fixed by the protocol; never reorder.
type Command int

const (
	CmdMuteChat Command = iota + 1
	CmdMuteAudio
	CmdMuteVideo
	CmdMuteBoard
	CmdUnmuteAudio
	CmdUnmuteVideo
	CmdUnmuteChat
	CmdUnmuteBoard
	CmdApplyCoVideo
	CmdAcceptCoVideo
	CmdRejectCoVideo
	CmdCancelCoVideo
)

var commandNames = map[Command]string{
	CmdMuteChat:      "muteChat",
	CmdMuteAudio:     "muteAudio",
	CmdMuteVideo:     "muteVideo",
	CmdMuteBoard:     "muteBoard",
	CmdUnmuteAudio:   "unmuteAudio",
	CmdUnmuteVideo:   "unmuteVideo",
	CmdUnmuteChat:    "unmuteChat",
	CmdUnmuteBoard:   "unmuteBoard",
	CmdApplyCoVideo:  "applyCoVideo",
	CmdAcceptCoVideo: "acceptCoVideo",
	CmdRejectCoVideo: "rejectCoVideo",
	CmdCancelCoVideo: "cancelCoVideo",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return "unknown"
}

// Known reports whether the command belongs to the protocol vocabulary.
// Unrecognized commands are ignored by the reconciler, not rejected.
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

// ChatPayload is the channel-message body as sent on the wire.
type ChatPayload struct {
	Account string `json:"account"`
	Content string `json:"content"`
	Link    string `json:"link,omitempty"`
}

// ChatMessage is the display record appended to the session history.
type ChatMessage struct {
	Account   string
	Text      string
	Link      string
	Timestamp int64 // unix milliseconds
	SenderID  UID
}

// NewChatMessage maps a wire payload from sender to its display record.
func NewChatMessage(sender UID, p ChatPayload, ts int64) ChatMessage {
	return ChatMessage{
		Account:   p.Account,
		Text:      p.Content,
		Link:      p.Link,
		Timestamp: ts,
		SenderID:  sender,
	}
}
