package api

import "fmt"

// Record is a schemaless resource as returned by the API.
type Record map[string]any

// ID returns the record's "id" (or "_id") field as a string.
func (r Record) ID() string {
	for _, key := range []string{"id", "_id"} {
		if v, ok := r[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}

// String returns field name as a string, or "".
func (r Record) String(name string) string {
	if v, ok := r[name]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// CommandData is the payload of a command/execute envelope.
type CommandData struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// ImageData is the payload of an image/stream envelope.
type ImageData struct {
	ImageData string         `json:"image_data"`
	Metadata  map[string]any `json:"metadata"`
}

// TransmitData is the payload of a listener/response envelope.
type TransmitData struct {
	Magick  string `json:"magick"`
	Payload string `json:"payload"`
}

// Envelope type tags and actions used by the handler and listener channels.
const (
	TypeCommand  = "command"
	TypeImage    = "image"
	TypeHandler  = "handler"
	TypeListener = "listener"

	ActionExecute  = "execute"
	ActionStream   = "stream"
	ActionResponse = "response"
)

// Channel paths.
const (
	HandlerPath  = "/handler"
	ListenerPath = "/listener"
)
