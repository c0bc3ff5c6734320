// Package chat implements the in-memory chat registry behavior (spec.md
// §4.7). Grounded on original_source/chat_behavior.rs: a username-keyed map
// of (owning node, logged-in) pairs, generalized from the
// original's login/logout/register/message verbs.
package chat

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/dronenet/server/internal/core"
	"github.com/dronenet/server/pkg/behavior"
	"github.com/dronenet/server/pkg/wire"
)

// Request kinds accepted by this behavior.
const (
	KindRegisterClient = "register_client"
	KindGetClientList  = "get_client_list"
	KindSendMessage    = "send_message"
)

// Response kinds produced by this behavior.
const (
	KindClientList             = "client_list"
	KindMessage                = "message"
	KindErrorNotFound          = "error_not_found"
	KindErrorNotLoggedIn       = "error_not_logged_in"
	KindErrorAlreadyRegistered = "error_already_registered"
)

type registerClientPayload struct {
	Username string `json:"username"`
}

type sendMessagePayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type clientListPayload struct {
	Clients []string `json:"clients"`
}

type messagePayload struct {
	From string `json:"from"`
	Text string `json:"text"`
}

type errorPayload struct {
	Subject string `json:"subject"`
}

type client struct {
	node   wire.NodeID
	logged bool
}

// Behavior is the chat application adapter. It holds no filesystem state,
// so SetPath always fails with core.ErrWrongServerType.
type Behavior struct {
	mu      sync.Mutex
	clients map[string]*client
}

// New constructs an empty chat registry. It satisfies behavior.Factory.
func New() behavior.Behavior {
	return &Behavior{clients: make(map[string]*client)}
}

// SetPath is unsupported for the chat behavior.
func (b *Behavior) SetPath(string) error {
	return core.ErrWrongServerType
}

func (b *Behavior) clientNames() []string {
	names := make([]string, 0, len(b.clients))
	for name := range b.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle dispatches one chat request and returns a serialized response
// addressed to the appropriate recipient.
func (b *Behavior) Handle(payload []byte, initiator wire.NodeID) ([]byte, wire.NodeID) {
	var req behavior.Envelope
	if err := json.Unmarshal(payload, &req); err != nil {
		return errorResponse("malformed request"), initiator
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch req.Kind {
	case KindRegisterClient:
		return b.register(req, initiator)
	case KindGetClientList:
		return clientListResponse(b.clientNames()), initiator
	case KindSendMessage:
		return b.sendMessage(req, initiator)
	default:
		return errorResponse("unrecognized chat request kind"), initiator
	}
}

func (b *Behavior) register(req behavior.Envelope, initiator wire.NodeID) ([]byte, wire.NodeID) {
	var p registerClientPayload
	if err := decodePayload(req.Payload, &p); err != nil {
		return errorResponse("malformed register_client payload"), initiator
	}

	if _, exists := b.clients[p.Username]; exists {
		return encode(behavior.Envelope{Kind: KindErrorAlreadyRegistered, Payload: errorPayload{Subject: p.Username}}), initiator
	}

	b.clients[p.Username] = &client{node: initiator, logged: true}
	return clientListResponse(b.clientNames()), initiator
}

func (b *Behavior) sendMessage(req behavior.Envelope, initiator wire.NodeID) ([]byte, wire.NodeID) {
	var p sendMessagePayload
	if err := decodePayload(req.Payload, &p); err != nil {
		return errorResponse("malformed send_message payload"), initiator
	}

	recipient, ok := b.clients[p.To]
	if !ok || !recipient.logged {
		return encode(behavior.Envelope{Kind: KindErrorNotFound, Payload: errorPayload{Subject: p.To}}), initiator
	}

	sender := b.senderName(initiator)
	resp := encode(behavior.Envelope{Kind: KindMessage, Payload: messagePayload{From: sender, Text: p.Text}})
	return resp, recipient.node
}

// senderName resolves the registered username for a node, falling back to
// an empty string if the node never registered. sendMessage does not
// require the sender to be registered, so an empty From is possible.
func (b *Behavior) senderName(node wire.NodeID) string {
	for name, c := range b.clients {
		if c.node == node {
			return name
		}
	}
	return ""
}

func clientListResponse(names []string) []byte {
	return encode(behavior.Envelope{Kind: KindClientList, Payload: clientListPayload{Clients: names}})
}

func errorResponse(message string) []byte {
	return encode(behavior.Envelope{Kind: behavior.InternalServerErrorKind, Payload: behavior.ErrorResponse{Message: message}})
}

func encode(env behavior.Envelope) []byte {
	b, err := json.Marshal(env)
	if err != nil {
		return encodeFallbackError()
	}
	return b
}

func encodeFallbackError() []byte {
	// json.Marshal on our own fixed payload shapes cannot realistically
	// fail; this exists only so Handle never returns a nil slice.
	return []byte(`{"kind":"internal_server_error","payload":{"message":"serialization failure"}}`)
}

func decodePayload(payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
