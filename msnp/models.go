package msnp

import (
	"bytes"
	"encoding/xml"
)

// List is one of the five roster lists a contact can belong to.
type List int

const (
	ForwardList List = 1 << iota
	AllowList
	BlockList
	ReverseList
	PendingList
)

// Lists decodes the numeric list bitmask MSNP sends in LST/ADC/REM lines
// into the set of Lists it represents.
func Lists(mask uint32) []List {
	var out []List
	for _, l := range []List{ForwardList, AllowList, BlockList, ReverseList, PendingList} {
		if mask&uint32(l) != 0 {
			out = append(out, l)
		}
	}
	return out
}

func (l List) String() string {
	switch l {
	case ForwardList:
		return "ForwardList"
	case AllowList:
		return "AllowList"
	case BlockList:
		return "BlockList"
	case ReverseList:
		return "ReverseList"
	case PendingList:
		return "PendingList"
	default:
		return "UnknownList"
	}
}

// Contact is a roster entry as reported by LST, with no forward-list
// membership (so no group assignment either).
type Contact struct {
	Email       string
	DisplayName string
	Lists       []List
}

// ContactInForwardList is a roster entry that belongs to the forward list,
// and therefore carries the fields only forward-list members have: a
// contact list GUID and zero or more group memberships.
type ContactInForwardList struct {
	Email       string
	DisplayName string
	GUID        string
	Groups      []string
	Lists       []List
}

// Group is one contact group, as reported by LSG or created via ADG.
type Group struct {
	Name string
	GUID string
}

// Presence is a contact's status, as reported in NLN/ILN/initial presence.
type Presence struct {
	Status      string
	ClientID    uint64
	MsnObject   *string
}

// PersonalMessage is the decoded payload of a UBX line, a small XML document
// carrying the user's personal message and currently playing media.
type PersonalMessage struct {
	XMLName      xml.Name `xml:"Data"`
	PSM          string   `xml:"PSM"`
	CurrentMedia string   `xml:"CurrentMedia"`
}

// ParsePersonalMessage decodes a UBX payload. Malformed or absent XML
// (contacts frequently send an empty UBX body) yields a zero-value
// PersonalMessage rather than an error, mirroring how lenient the protocol's
// other consumers already have to be.
func ParsePersonalMessage(payload []byte) PersonalMessage {
	var pm PersonalMessage
	if len(bytes.TrimSpace(payload)) == 0 {
		return pm
	}
	if err := xml.Unmarshal(payload, &pm); err != nil {
		return PersonalMessage{}
	}
	return pm
}
