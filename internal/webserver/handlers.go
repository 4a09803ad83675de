package webserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zsprackett/agent-console/internal/events"
)

func (s *Server) dispatchOperator(c *client, env events.Envelope) {
	switch env.Event {
	case events.JoinUserRoom:
		s.rooms.join(c.user, c)
		c.emit(events.AgentStatus, s.agentStatusFor(c.user))
	case events.CreateProjectRequest:
		s.handleCreateProject(c, env.Data)
	default:
		s.logger.Warn("webserver: unexpected operator event", "event", env.Event, "client", c.id)
	}
}

func (s *Server) handleCreateProject(c *client, data json.RawMessage) {
	var req events.CreateProjectPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			s.logger.Warn("webserver: bad create_project_request", "client", c.id, "err", err)
		}
	}
	if strings.TrimSpace(req.ProjectName) == "" || strings.TrimSpace(req.BasePath) == "" || strings.TrimSpace(req.ProjectType) == "" {
		c.emit(events.ProjectStatus, events.StatusPayload{
			Status:  events.StatusError,
			Message: "Missing project name, base path, or project type.",
		})
		return
	}

	agent := s.agentFor(c.user)
	if agent == nil {
		s.rooms.broadcast(c.user, events.ProjectStatus, events.StatusPayload{
			Status:  events.StatusError,
			Message: "Local agent is not connected or authenticated.",
		})
		return
	}

	cmd := events.CommandPayload{
		Command: events.CommandCreateProject,
		Payload: events.ProjectPayload{
			ProjectName: req.ProjectName,
			ProjectType: req.ProjectType,
			BasePath:    req.BasePath,
		},
	}
	if !agent.emit(events.ExecuteCommand, cmd) {
		s.logger.Warn("webserver: agent queue full", "user", c.user, "agent", agent.id)
		s.rooms.broadcast(c.user, events.ProjectStatus, events.StatusPayload{
			Status:  events.StatusError,
			Message: "Local agent is not connected or authenticated.",
		})
		return
	}
	s.logger.Info("webserver: command sent", "user", c.user, "project", req.ProjectName, "type", req.ProjectType)
	s.rooms.broadcast(c.user, events.ProjectStatus, events.StatusPayload{
		Status:  events.StatusPending,
		Message: fmt.Sprintf("Command sent to agent for project %s.", req.ProjectName),
	})
}

func (s *Server) dispatchAgent(c *client, env events.Envelope) {
	switch env.Event {
	case events.AuthenticateAgent:
		s.handleAuthenticateAgent(c, env.Data)
	case events.AgentResponse:
		if c.user == "" {
			s.logger.Warn("webserver: response from unauthenticated agent", "client", c.id)
			return
		}
		var st events.StatusPayload
		if err := json.Unmarshal(env.Data, &st); err != nil {
			s.logger.Warn("webserver: bad agent_response", "client", c.id, "err", err)
			return
		}
		s.logger.Info("webserver: agent response", "user", c.user, "status", st.Status)
		s.rooms.broadcast(c.user, events.ProjectStatus, st)
		if s.notifier != nil {
			// Webhook posts can take seconds; keep them off the agent's read loop.
			go s.notifier.Notify(c.user, st)
		}
	default:
		s.logger.Warn("webserver: unexpected agent event", "event", env.Event, "client", c.id)
	}
}

func (s *Server) handleAuthenticateAgent(c *client, data json.RawMessage) {
	var req events.AuthenticateAgentPayload
	if len(data) > 0 {
		json.Unmarshal(data, &req)
	}

	stored := ""
	if req.UserID != "" {
		stored, _ = s.store.GetAgentTokenByUsername(req.UserID)
	}
	if !tokensEqual(stored, req.Token) {
		s.logger.Warn("webserver: agent authentication failed", "user", req.UserID, "client", c.id)
		c.emit(events.AgentStatus, events.StatusPayload{
			Status:  events.StatusError,
			Message: "Agent authentication failed.",
		})
		return
	}

	if c.user != "" && c.user != req.UserID {
		s.unregisterAgent(c.user, c)
	}
	c.user = req.UserID
	if prev := s.registerAgent(c.user, c); prev != nil {
		s.logger.Info("webserver: replacing agent", "user", c.user, "previous", prev.id)
		prev.close()
	}
	s.logger.Info("webserver: agent authenticated", "user", c.user, "client", c.id)

	ready := events.StatusPayload{Status: events.StatusConnected, Message: "Agent authenticated and ready."}
	c.emit(events.AgentStatus, ready)
	s.rooms.broadcast(c.user, events.AgentStatus, ready)
}
