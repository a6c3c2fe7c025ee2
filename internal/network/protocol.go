package network

// Message is one inbound frame: the routing type pulled from the JSON body and
// the untouched bytes, so handlers can forward it verbatim.
type Message struct {
	Type string
	Data []byte
}

// MaxMessageSize bounds a single inbound frame. Gameplay frames are well under 1 KiB.
const MaxMessageSize = 64 * 1024
