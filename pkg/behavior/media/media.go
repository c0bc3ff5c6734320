// Package media implements the filesystem-backed media-content behavior
// (spec.md §4.7). Grounded on original_source/media_behavior.rs, which
// only implements SetPath; the GetFile handling is supplemented from
// text_behavior.rs's fuller ContentBehavior contract, narrowed per the
// original's comment that media does not support directory listing.
package media

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dronenet/server/internal/core"
	"github.com/dronenet/server/pkg/behavior"
	"github.com/dronenet/server/pkg/wire"
)

// KindGetFile is the only request kind this behavior accepts; unlike
// pkg/behavior/text, there is no KindListFiles.
const KindGetFile = "get_file"

// Response kinds produced by this behavior.
const (
	KindFileContent     = "file_content"
	KindContentNotFound = "content_not_found"
)

type getFilePayload struct {
	Name string `json:"name"`
}

type fileContentPayload struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

type notFoundPayload struct {
	Name string `json:"name"`
}

// Behavior serves binary media files from a configured directory root.
type Behavior struct {
	root string
}

// New constructs a media-content behavior with no root configured yet. It
// satisfies behavior.Factory.
func New() behavior.Behavior {
	return &Behavior{}
}

// SetPath validates that path exists and is a readable directory, then
// adopts it as the content root.
func (b *Behavior) SetPath(path string) error {
	if _, err := os.ReadDir(path); err != nil {
		return err
	}
	b.root = path
	return nil
}

// Handle dispatches one media request. ListFiles-equivalent requests are
// rejected with core.ErrWrongServerType surfaced as an internal error
// response, matching the original's narrower surface.
func (b *Behavior) Handle(payload []byte, initiator wire.NodeID) ([]byte, wire.NodeID) {
	var req behavior.Envelope
	if err := json.Unmarshal(payload, &req); err != nil {
		return errorResponse("malformed request"), initiator
	}

	switch req.Kind {
	case KindGetFile:
		return b.get(req, initiator)
	default:
		return errorResponse(core.ErrWrongServerType.Error()), initiator
	}
}

func (b *Behavior) get(req behavior.Envelope, initiator wire.NodeID) ([]byte, wire.NodeID) {
	var p getFilePayload
	if err := decodePayload(req.Payload, &p); err != nil {
		return errorResponse("malformed get_file payload"), initiator
	}

	full, ok := b.resolve(p.Name)
	if !ok {
		return encode(behavior.Envelope{Kind: KindContentNotFound, Payload: notFoundPayload{Name: p.Name}}), initiator
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return encode(behavior.Envelope{Kind: KindContentNotFound, Payload: notFoundPayload{Name: p.Name}}), initiator
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return errorResponse("filesystem error"), initiator
	}
	return encode(behavior.Envelope{Kind: KindFileContent, Payload: fileContentPayload{Name: p.Name, Data: data}}), initiator
}

func (b *Behavior) resolve(name string) (string, bool) {
	full := filepath.Join(b.root, name)
	rel, err := filepath.Rel(b.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func errorResponse(message string) []byte {
	return encode(behavior.Envelope{Kind: behavior.InternalServerErrorKind, Payload: behavior.ErrorResponse{Message: message}})
}

func encode(env behavior.Envelope) []byte {
	b, err := json.Marshal(env)
	if err != nil {
		return []byte(`{"kind":"internal_server_error","payload":{"message":"serialization failure"}}`)
	}
	return b
}

func decodePayload(payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
