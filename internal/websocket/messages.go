package websocket

import (
	"encoding/json"
	"fmt"
)

// Command is one inbound user intent from a UI client.
type Command struct {
	Type         string `json:"type"`
	Region       string `json:"region,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Command types accepted from clients.
const (
	CommandStart       = "start"
	CommandStop        = "stop"
	CommandSetRegion   = "set_region"
	CommandSetLanguage = "set_language"
)

// Envelope wraps one outbound broadcast.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EnvelopeState is the one outbound envelope type: a full driver snapshot.
const EnvelopeState = "state"

func parseCommand(raw []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, fmt.Errorf("parse command: %w", err)
	}
	if cmd.Type == "" {
		return Command{}, fmt.Errorf("command missing type field")
	}
	return cmd, nil
}

func stateEnvelope(snapshot any) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return json.Marshal(Envelope{Type: EnvelopeState, Data: data})
}
