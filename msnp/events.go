package msnp

// Event is the closed set of notifications a notification or switchboard
// session delivers to a Client's event channel. Concrete types implement
// Event only to close the set; callers recover the concrete type with a
// type switch.
type Event interface {
	isEvent()
}

type baseEvent struct{}

func (baseEvent) isEvent() {}

// EventRedirectedTo is sent when the notification server redirects the
// client to another server/port (XFR).
type EventRedirectedTo struct {
	baseEvent
	Server string
	Port   string
}

// EventAuthenticated is sent once the USR/Passport handshake completes.
type EventAuthenticated struct{ baseEvent }

// EventGTC reports the current "general contact" (add-me) privacy setting.
type EventGTC struct {
	baseEvent
	Value string
}

// EventBLP reports the current block-list privacy setting.
type EventBLP struct {
	baseEvent
	Value string
}

// EventDisplayName reports the account's own display name (PRP).
type EventDisplayName struct {
	baseEvent
	DisplayName string
}

// EventGroup reports one contact group (LSG).
type EventGroup struct {
	baseEvent
	Name string
	GUID string
}

// EventContact reports one roster entry not in the forward list.
type EventContact struct {
	baseEvent
	Contact
}

// EventContactInForwardList reports one forward-list roster entry.
type EventContactInForwardList struct {
	baseEvent
	ContactInForwardList
}

// EventInitialPresenceUpdate reports a contact's presence as delivered
// during initial sync (ILN).
type EventInitialPresenceUpdate struct {
	baseEvent
	Email       string
	DisplayName string
	Presence    Presence
}

// EventPresenceUpdate reports a contact's presence change (NLN).
type EventPresenceUpdate struct {
	baseEvent
	Email       string
	DisplayName string
	Presence    Presence
}

// EventPersonalMessageUpdate reports a contact's personal message/media
// update (UBX).
type EventPersonalMessageUpdate struct {
	baseEvent
	Email           string
	PersonalMessage PersonalMessage
}

// EventContactOffline reports a contact going offline (FLN).
type EventContactOffline struct {
	baseEvent
	Email string
}

// EventAddedBy reports that a contact added this account to their forward
// list.
type EventAddedBy struct {
	baseEvent
	Email       string
	DisplayName string
}

// EventRemovedBy reports that a contact removed this account from their
// forward list.
type EventRemovedBy struct {
	baseEvent
	Email string
}

// EventSessionAnswered is sent when this client has answered (ANS) a
// switchboard invitation (RNG) from the notification server and the
// session is ready for use. Sessions opened with Client.CreateSession are
// returned directly and produce no such event.
type EventSessionAnswered struct {
	baseEvent
	Session SwitchboardHandle
}

// SwitchboardHandle is the minimal surface EventSessionAnswered exposes
// without the msnp package depending on the root package's concrete
// *Switchboard type.
type SwitchboardHandle interface {
	SessionID() string
}

// EventTextMessage reports an incoming plain text message.
type EventTextMessage struct {
	baseEvent
	SessionID string
	Email     string
	Message   string
}

// EventNudge reports an incoming nudge.
type EventNudge struct {
	baseEvent
	SessionID string
	Email     string
}

// EventTypingNotification reports an incoming typing-user notification.
type EventTypingNotification struct {
	baseEvent
	SessionID string
	Email     string
}

// EventParticipantInSwitchboard reports a contact joining a switchboard
// session this client is in.
type EventParticipantInSwitchboard struct {
	baseEvent
	SessionID string
	Email     string
}

// EventParticipantLeftSwitchboard reports a contact leaving a switchboard
// session this client is in.
type EventParticipantLeftSwitchboard struct {
	baseEvent
	SessionID string
	Email     string
}

// EventDisplayPicture reports a completed display-picture transfer.
type EventDisplayPicture struct {
	baseEvent
	SessionID string
	Email     string
	Data      []byte
}

// EventLoggedInAnotherDevice is sent when the server disconnects this
// session because the account logged in elsewhere (OUT OTH).
type EventLoggedInAnotherDevice struct{ baseEvent }

// EventDisconnected is sent when the connection to the notification server
// is lost for any other reason.
type EventDisconnected struct{ baseEvent }
