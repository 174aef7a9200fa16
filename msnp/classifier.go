package msnp

import (
	"strconv"
	"strings"
)

// ClassifyNotification turns an unsolicited notification-server command
// into an Event. It returns ok=false for commands that are either
// transaction replies (handled by the transaction correlator before the
// classifier ever sees them) or carry no event of their own.
//
// The field offsets and prefix-stripping below follow the reference
// client's event matcher line for line: the server interleaves a
// transaction id into some verbs (PRP, BLP, GTC) only when the command was
// solicited by this client, so the same verb can arrive with or without a
// leading numeric argument.
func ClassifyNotification(cmd Command) (Event, bool) {
	args := cmd.Args
	switch cmd.Verb {
	case "GTC":
		return EventGTC{Value: lastOf(args, 1, 0)}, true

	case "BLP":
		return EventBLP{Value: lastOf(args, 1, 0)}, true

	case "PRP":
		if len(args) < 2 {
			return nil, false
		}
		name := args[1]
		if len(args) > 2 {
			name = args[2]
		}
		return EventDisplayName{DisplayName: UnescapeString(name)}, true

	case "LSG":
		if len(args) < 2 {
			return nil, false
		}
		return EventGroup{Name: UnescapeString(args[0]), GUID: args[1]}, true

	case "LST":
		return classifyLST(args)

	case "NLN", "ILN":
		return classifyPresence(cmd.Verb, args)

	case "UBX":
		if len(args) < 1 {
			return nil, false
		}
		return EventPersonalMessageUpdate{
			Email:           args[0],
			PersonalMessage: ParsePersonalMessage(cmd.Payload),
		}, true

	case "FLN":
		if len(args) < 1 {
			return nil, false
		}
		return EventContactOffline{Email: args[0]}, true

	case "ADC":
		if len(args) >= 3 && args[0] == "0" && args[1] == "RL" {
			return EventAddedBy{
				Email:       strings.TrimPrefix(args[2], "N="),
				DisplayName: UnescapeString(strings.TrimPrefix(valueOr(args, 3), "F=")),
			}, true
		}
		return nil, false

	case "REM":
		if len(args) >= 3 && args[0] == "0" && args[1] == "RL" {
			return EventRemovedBy{Email: strings.TrimPrefix(args[2], "N=")}, true
		}
		return nil, false

	case "OUT":
		if len(args) > 0 && args[0] == "OTH" {
			return EventLoggedInAnotherDevice{}, true
		}
		return EventDisconnected{}, true
	}

	return nil, false
}

func valueOr(args []string, i int) string {
	if i < 0 || i >= len(args) {
		return ""
	}
	return args[i]
}

// lastOf returns args[withTrID] if it exists, else args[withoutTrID]. This
// mirrors the reference's "if args.len() > N { args[N] } else { args[N-1] }"
// idiom for verbs whose transaction id is only present when the client
// itself issued the command (args here excludes the verb, so indices are
// one less than the reference's).
func lastOf(args []string, withTrID, withoutTrID int) string {
	if len(args) > withTrID {
		return args[withTrID]
	}
	if len(args) > withoutTrID {
		return args[withoutTrID]
	}
	return ""
}

func classifyLST(args []string) (Event, bool) {
	idx := 2
	if len(args) > 3 {
		idx = 3
	}
	if len(args) <= idx {
		return nil, false
	}
	n, err := strconv.ParseUint(args[idx], 10, 32)
	if err != nil {
		return nil, false
	}
	lists := Lists(uint32(n))

	if uint32(n)&uint32(ForwardList) == uint32(ForwardList) {
		var groups []string
		if len(args) > idx+1 {
			groups = strings.Split(args[idx+1], ",")
		}
		return EventContactInForwardList{ContactInForwardList: ContactInForwardList{
			Email:       strings.TrimPrefix(valueOr(args, 0), "N="),
			DisplayName: UnescapeString(strings.TrimPrefix(valueOr(args, 1), "F=")),
			GUID:        strings.TrimPrefix(valueOr(args, 2), "C="),
			Groups:      groups,
			Lists:       lists,
		}}, true
	}

	return EventContact{Contact: Contact{
		Email:       strings.TrimPrefix(valueOr(args, 0), "N="),
		DisplayName: UnescapeString(strings.TrimPrefix(valueOr(args, 1), "F=")),
		Lists:       lists,
	}}, true
}

func classifyPresence(verb string, args []string) (Event, bool) {
	base := 0
	if verb == "ILN" {
		base = 1
	}
	if len(args) <= base+3 {
		return nil, false
	}

	var msnObj *string
	msnIdx := base + 4
	if len(args) > msnIdx {
		decoded := UnescapeString(args[msnIdx])
		msnObj = &decoded
	}

	var clientID uint64
	if len(args) > base+3 {
		clientID, _ = strconv.ParseUint(args[base+3], 10, 64)
	}

	presence := Presence{
		Status:    args[base],
		ClientID:  clientID,
		MsnObject: msnObj,
	}
	email := args[base+1]
	displayName := UnescapeString(args[base+2])

	if verb == "ILN" {
		return EventInitialPresenceUpdate{Email: email, DisplayName: displayName, Presence: presence}, true
	}
	return EventPresenceUpdate{Email: email, DisplayName: displayName, Presence: presence}, true
}
