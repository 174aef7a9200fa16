package msnp

import "sync"

// Verbs whose wire form is "VERB <args...> <len>\r\n" followed by exactly
// len bytes of payload with no separator. The set is open: servers have
// grown new payload-bearing verbs over the protocol's life (UBX, ADL/RML,
// the P2P "MSG" indirection used for display pictures), so callers that
// extend the protocol register their own verbs instead of patching a fixed
// switch statement here.
var (
	payloadVerbsMu sync.RWMutex
	payloadVerbs   = map[string]bool{
		"MSG": true,
		"UBX": true,
		"ADL": true,
		"RML": true,
		"UUX": true,
		"GCF": true,
	}
)

// RegisterPayloadVerb marks verb as carrying a length-prefixed payload, so
// the framing reader knows to read its body before handing the command to
// the classifier.
func RegisterPayloadVerb(verb string) {
	payloadVerbsMu.Lock()
	defer payloadVerbsMu.Unlock()
	payloadVerbs[verb] = true
}

// HasPayload reports whether verb is registered as payload-bearing.
func HasPayload(verb string) bool {
	payloadVerbsMu.RLock()
	defer payloadVerbsMu.RUnlock()
	return payloadVerbs[verb]
}
