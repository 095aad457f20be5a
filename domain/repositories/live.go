package repositories

import (
	"context"
	"encoding/json"

	"github.com/jansahayak/agent/domain/entities"
)

// EncodedAudioChunk is the wire unit of audio: raw bytes plus a MIME-style
// tag carrying encoding and sample rate. Immutable once constructed.
type EncodedAudioChunk struct {
	Data     []byte
	MIMEType string
}

// ToolCall is one function call issued by the model within a turn.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// ToolResult answers exactly one ToolCall.
type ToolResult struct {
	ID      string
	Name    string
	Payload json.RawMessage
}

// ServerMessage is one inbound event from the live session, already lifted
// out of the provider's wire schema. At most a few fields are set per
// message; the zero value is a no-op.
type ServerMessage struct {
	// Audio is a chunk of model speech to schedule for playback.
	Audio *EncodedAudioChunk
	// InputTranscript / OutputTranscript are incremental transcript deltas
	// for the user and the model respectively.
	InputTranscript  string
	OutputTranscript string
	// TurnComplete marks the end of one conversational turn.
	TurnComplete bool
	// Interrupted signals the user spoke over the model; pending playback
	// must be discarded.
	Interrupted bool
	// ToolCalls is a batch of function calls to dispatch, in issue order.
	ToolCalls []ToolCall
}

// SessionCallbacks is the inbound half of a live connection. All callbacks
// are invoked from the transport's receive goroutine; the driver serializes
// them onto its own event loop.
type SessionCallbacks struct {
	OnOpen    func()
	OnMessage func(ServerMessage)
	OnError   func(error)
	OnClose   func()
}

// ConnectConfig describes one live session to open.
type ConnectConfig struct {
	SystemInstruction string
	Language          entities.Language
	Tools             []ToolDeclaration
}

// ToolDeclaration advertises one callable tool to the model.
type ToolDeclaration struct {
	Name        string
	Description string
	// Parameters maps argument name to a {type, description, required}
	// descriptor; the transport converts it to the provider's schema form.
	Parameters []ToolParameter
}

// ToolParameter describes one argument of a tool declaration.
type ToolParameter struct {
	Name        string
	Type        string // "string" or "number"
	Description string
	Required    bool
}

// LiveConn is an open bidirectional session.
type LiveConn interface {
	// SendAudio forwards one captured chunk; fire and forget.
	SendAudio(chunk EncodedAudioChunk) error
	// SendToolResult answers one tool call.
	SendToolResult(result ToolResult) error
	// Close tears the connection down; safe to call more than once.
	Close() error
}

// LiveTransport dials the remote multimodal session endpoint.
type LiveTransport interface {
	Connect(ctx context.Context, cfg ConnectConfig, cb SessionCallbacks) (LiveConn, error)
}
