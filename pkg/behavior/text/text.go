// Package text implements the filesystem-backed text-content behavior
// (spec.md §4.7), grounded on original_source/text_behavior.rs: directory
// listing plus single-file retrieval rooted at a configured path.
package text

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dronenet/server/pkg/behavior"
	"github.com/dronenet/server/pkg/wire"
)

// Request kinds accepted by this behavior.
const (
	KindListFiles = "list_files"
	KindGetFile   = "get_file"
)

// Response kinds produced by this behavior.
const (
	KindFileList        = "file_list"
	KindFileContent     = "file_content"
	KindContentNotFound = "content_not_found"
)

type getFilePayload struct {
	Name string `json:"name"`
}

type fileListPayload struct {
	Files []string `json:"files"`
}

type fileContentPayload struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

type notFoundPayload struct {
	Name string `json:"name"`
}

// Behavior serves files from a configured directory root.
type Behavior struct {
	root string
}

// New constructs a text-content behavior with no root configured yet;
// SetPath (from the daemon's behavior.content_path or a SetContentPath
// command) must configure one before requests can be served. It satisfies
// behavior.Factory.
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

// Handle dispatches one content request.
func (b *Behavior) Handle(payload []byte, initiator wire.NodeID) ([]byte, wire.NodeID) {
	var req behavior.Envelope
	if err := json.Unmarshal(payload, &req); err != nil {
		return errorResponse("malformed request"), initiator
	}

	switch req.Kind {
	case KindListFiles:
		return b.list(initiator)
	case KindGetFile:
		return b.get(req, initiator)
	default:
		return errorResponse("unrecognized content request kind"), initiator
	}
}

func (b *Behavior) list(initiator wire.NodeID) ([]byte, wire.NodeID) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return errorResponse("filesystem error"), initiator
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return encode(behavior.Envelope{Kind: KindFileList, Payload: fileListPayload{Files: names}}), initiator
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

// resolve joins name onto the content root and rejects any path that
// escapes it, per spec.md §4.7's "path traversal outside the configured
// root is rejected".
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
