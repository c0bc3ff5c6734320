package behavior

// Envelope is the tagged request/response wrapper every behavior
// serializes its wire traffic with. The engine never inspects Kind or
// Payload; only the behavior that produced or consumes a given Envelope
// interprets them. JSON is used rather than a binary codec because, unlike
// the fragment/frame wire format, this payload never crosses the 128-byte
// FrameSize boundary in a single piece anyway (it's reassembled first) and
// readability during integration debugging outweighs a few extra bytes.
type Envelope struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`
}

// InternalServerErrorKind is the response Kind used whenever a behavior's
// Handle implementation hits an error it cannot recover from (spec.md
// §4.7's "never fails silently" contract).
const InternalServerErrorKind = "internal_server_error"

// ErrorResponse is the Payload shape for InternalServerErrorKind.
type ErrorResponse struct {
	Message string `json:"message"`
}
