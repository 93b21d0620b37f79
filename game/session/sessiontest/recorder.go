// Package sessiontest provides a recording Sender for tests of packages that
// deliver envelopes through a session.Registry.
package sessiontest

import (
	"encoding/json"
	"errors"
)

var ErrSendFailed = errors.New("send failed")

// Recorder captures every envelope delivered to one connection
type Recorder struct {
	// Fail makes every Send return ErrSendFailed without recording
	Fail bool

	frames [][]byte
}

// Send implements session.Sender
func (r *Recorder) Send(data []byte) error {
	if r.Fail {
		return ErrSendFailed
	}
	r.frames = append(r.frames, append([]byte(nil), data...))
	return nil
}

// Frames returns the raw envelopes received so far
func (r *Recorder) Frames() [][]byte {
	return r.frames
}

// Messages decodes every received envelope into a generic map
func (r *Recorder) Messages() []map[string]any {
	out := make([]map[string]any, 0, len(r.frames))
	for _, f := range r.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// Types returns the type field of every received envelope, in order
func (r *Recorder) Types() []string {
	msgs := r.Messages()
	types := make([]string, 0, len(msgs))
	for _, m := range msgs {
		t, _ := m["type"].(string)
		types = append(types, t)
	}
	return types
}

// OfType returns the received envelopes with the given type
func (r *Recorder) OfType(typ string) []map[string]any {
	var out []map[string]any
	for _, m := range r.Messages() {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent envelope, or nil when nothing was received
func (r *Recorder) Last() map[string]any {
	msgs := r.Messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// Reset forgets every recorded envelope
func (r *Recorder) Reset() {
	r.frames = nil
}
