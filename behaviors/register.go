// Package behaviors registers all built-in application behaviors. It is
// the direct analogue of the teacher's plugins/init.go, blank-importing
// nothing: each concrete behavior package is imported and wired explicitly
// here rather than via package-level init() side effects in the behaviors
// themselves, so the registered set is discoverable by reading one file.
package behaviors

import (
	"github.com/dronenet/server/pkg/behavior"
	"github.com/dronenet/server/pkg/behavior/chat"
	"github.com/dronenet/server/pkg/behavior/media"
	"github.com/dronenet/server/pkg/behavior/text"
)

func init() {
	behavior.Register("chat", chat.New)
	behavior.Register("text", text.New)
	behavior.Register("media", media.New)
}
