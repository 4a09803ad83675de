package events

import (
	"encoding/json"
	"fmt"
)

// Event names carried on the duplex channel.
const (
	JoinUserRoom         = "join_user_room"
	CreateProjectRequest = "create_project_request"
	AgentStatus          = "agent_status"
	ProjectStatus        = "project_status"
	AuthenticateAgent    = "authenticate_agent"
	ExecuteCommand       = "execute_command"
	AgentResponse        = "agent_response"
)

// Status labels used by the hub and the agent. The set is open: receivers
// must treat unknown labels as opaque.
const (
	StatusPending      = "pending"
	StatusSuccess      = "success"
	StatusError        = "error"
	StatusConnected    = "connected"
	StatusConnecting   = "connecting"
	StatusDisconnected = "disconnected"
)

// CommandCreateProject is the only command the agent understands.
const CommandCreateProject = "create_project"

// Envelope is one frame on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals a named event and its payload into a frame. A nil payload
// produces an envelope without data.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses a frame.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode frame: missing event name")
	}
	return env, nil
}

// StatusPayload is the body of agent_status, project_status and agent_response.
type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateProjectPayload is the body of create_project_request.
type CreateProjectPayload struct {
	ProjectName string `json:"projectName"`
	BasePath    string `json:"basePath"`
	ProjectType string `json:"projectType"`
}

// AuthenticateAgentPayload is sent by the agent right after connecting.
type AuthenticateAgentPayload struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// CommandPayload is the body of execute_command.
type CommandPayload struct {
	Command string         `json:"command"`
	Payload ProjectPayload `json:"payload"`
}

// ProjectPayload carries the create_project arguments to the agent.
type ProjectPayload struct {
	ProjectName string `json:"project_name"`
	ProjectType string `json:"project_type"`
	BasePath    string `json:"base_path"`
}
