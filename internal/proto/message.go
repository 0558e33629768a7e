package proto

import "time"

// Frame is the single wire shape exchanged over the socket. Every field is
// optional on the wire; which fields are set determines what the frame means.
// The server decides meaning from the handshake flags, the client from the
// system-message flags. Field names are fixed by the protocol and must not
// change.
type Frame struct {
	// Handshake (client -> server).
	ClientInit    bool `json:"clientInit,omitempty"`
	HaveCookieCid bool `json:"haveCookieCid,omitempty"`

	// Identity.
	Cid  int64 `json:"cid,omitempty"`
	Scid int64 `json:"scid,omitempty"`

	// Chat payload.
	Mid      int64     `json:"mid,omitempty"`
	Text     string    `json:"text,omitempty"`
	User     string    `json:"user,omitempty"`
	Color    string    `json:"color,omitempty"`
	Type     int       `json:"type,omitempty"`
	ThisIsMe bool      `json:"thisIsMe,omitempty"`
	RxDate   time.Time `json:"rxDate,omitzero"`

	// Server acknowledgement.
	SrvAck    bool  `json:"srvAck,omitempty"`
	SrvAckMid int64 `json:"srvAckMid,omitempty"`

	// System messages (server -> client).
	SystemMessage bool  `json:"systemMessage,omitempty"`
	CidResponse   bool  `json:"cidResponse,omitempty"`
	CidOption     int64 `json:"cidOption,omitempty"`
	InitMessage   bool  `json:"initMessage,omitempty"`
	UserJoined    bool  `json:"userJoined,omitempty"`
	UserLeft      bool  `json:"userLeft,omitempty"`

	// Full history replay bundled with cidResponse and initMessage frames.
	MessageHistory []Frame `json:"messageHistory,omitempty"`
}

// IsHandshake reports whether the frame is one of the two handshake shapes
// rather than a chat message.
func (f Frame) IsHandshake() bool {
	return f.ClientInit || f.HaveCookieCid
}

// CarriesHistory reports whether the frame bundles a history replay the
// receiver must apply before anything else.
func (f Frame) CarriesHistory() bool {
	return f.CidResponse || f.InitMessage
}

// TypeChat is the chat message type tag sent by clients. The UI the protocol
// was built for only ever sends 1.
const TypeChat = 1

// Palette maps the five color tags to their rendered hex values. Clients pick
// one at random per message; the server picks one per issued identity.
var Palette = map[int]string{
	1: "#FF0000",
	2: "#008000",
	3: "#0000FF",
	4: "#800080",
	5: "#FFFF00",
}
