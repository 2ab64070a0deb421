package protocol

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// Uplink wire protocol: one JSON object per WebSocket text frame.
// Both directions share the same envelope, routing is done on Type.

const Version = 1

type MessageType string

const (
	TypeAuth       MessageType = "AUTH"        // uplink -> server, carries the key
	TypeAuthOK     MessageType = "AUTH_OK"     // server -> uplink, session id + ticket
	TypeAuthFailed MessageType = "AUTH_FAILED" // server -> uplink, then the socket closes
	TypeCall       MessageType = "CALL"        // either direction
	TypeResponse   MessageType = "RESPONSE"    // answer to a CALL with the same ID
	TypeRegister   MessageType = "REGISTER"    // uplink exposes a function to the server
	TypeRegistered MessageType = "REGISTERED"  // server ack for REGISTER
	TypeBye        MessageType = "BYE"         // uplink is leaving
	TypeTicket     MessageType = "TICKET"      // server -> uplink, replaces the session ticket before it expires
)

// remote error types carried in Error.Type
const (
	ErrTypeAuthentication   = "AuthenticationError"
	ErrTypeNoServerFunction = "NoServerFunctionError"
	ErrTypeExecution        = "ExecutionError"
	ErrTypeRateLimit        = "RateLimitError"
	ErrTypeInvalidRequest   = "InvalidRequest"
	ErrTypeInvalidResult    = "InvalidResult" // raised locally when a response has the wrong shape
)

// diagnostic callables every bridge is expected to serve
const (
	ProcTestUplinkConnection   = "test_uplink_connection"
	ProcTestUplinkConnectionV2 = "test_uplink_connection_v2"
	ProcSmokeTestModule        = "uplink_smoketest_20260217_module"
)

// Message is the envelope for every frame on the uplink socket
type Message struct {
	Type      MessageType    `json:"type"`
	ID        string         `json:"id,omitempty"`      // call id, echoed by the RESPONSE
	Key       string         `json:"key,omitempty"`     // AUTH only
	Version   int            `json:"v,omitempty"`       // AUTH only
	SessionID string         `json:"session,omitempty"` // AUTH_OK
	Ticket    string         `json:"ticket,omitempty"`  // AUTH_OK, then on every CALL from the uplink
	Command   string         `json:"command,omitempty"` // CALL / REGISTER function name
	Args      []any          `json:"args,omitempty"`
	Kwargs    map[string]any `json:"kwargs,omitempty"`
	Response  any            `json:"response,omitempty"`
	Error     *Error         `json:"error,omitempty"`
}

// Error is the remote side's description of a failure
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *Error) String() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func NewAuth(key string) *Message {
	return &Message{Type: TypeAuth, Key: key, Version: Version}
}

func NewCall(id, ticket, command string, args []any, kwargs map[string]any) *Message {
	return &Message{
		Type:    TypeCall,
		ID:      id,
		Ticket:  ticket,
		Command: command,
		Args:    args,
		Kwargs:  kwargs,
	}
}

func NewResponse(id string, response any) *Message {
	return &Message{Type: TypeResponse, ID: id, Response: response}
}

func NewErrorResponse(id, errType, message string) *Message {
	return &Message{
		Type:  TypeResponse,
		ID:    id,
		Error: &Error{Type: errType, Message: message},
	}
}

// ToJSON: marshal Message struct to JSON
func (m *Message) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Error("uplink_message_marshal_failed", "type", m.Type, "error", err)
		return nil, err
	}
	return data, nil
}

// MessageFromJSON: unmarshal JSON data to Message struct
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid uplink message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("invalid uplink message: missing type")
	}
	return &msg, nil
}
