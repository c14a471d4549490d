package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogEmitter writes one line per event to a writer, as text or JSON lines.
//
// Text output:
//
//	[node_end] run=chat-1 step=3 node=Context meta={"next":"ProductManager"}
//
// JSON output:
//
//	{"run_id":"chat-1","step":3,"node_id":"Context","msg":"node_end","meta":{"next":"ProductManager"}}
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter. A nil writer selects os.Stderr.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stderr
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit implements Emitter.
func (l *LogEmitter) Emit(event Event) {
	var line string
	if l.jsonMode {
		data, err := json.Marshal(event)
		if err != nil {
			line = fmt.Sprintf(`{"error":%q}`, "failed to marshal event: "+err.Error())
		} else {
			line = string(data)
		}
	} else {
		line = fmt.Sprintf("[%s] run=%s step=%d node=%s", event.Msg, event.RunID, event.Step, event.NodeID)
		if len(event.Meta) > 0 {
			if meta, err := json.Marshal(event.Meta); err == nil {
				line += " meta=" + string(meta)
			} else {
				line += fmt.Sprintf(" meta=%v", event.Meta)
			}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.writer, line)
}
