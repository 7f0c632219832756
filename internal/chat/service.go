// Package chat maps the two conversation styles of SynapseHub onto stream
// sessions.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richsynapse/synapsehub-client/internal/config"
	"github.com/richsynapse/synapsehub-client/internal/stream"
)

// Parameter names understood by the chat endpoints.
const (
	ParamChatID         = "chatId"
	ParamKnowledgeIndex = "knowledgeIndex"
)

// Opener is satisfied by *stream.Client.
type Opener interface {
	Open(ctx context.Context, req stream.Request, onEvent stream.EventHandler, onError stream.ErrorHandler) (*stream.Session, error)
}

// InterviewRequest is one turn of a knowledge-backed conversation.
type InterviewRequest struct {
	Message string
	// ChatID groups turns into one conversation. Empty starts a new one.
	ChatID string
	// KnowledgeIndex selects a knowledge base; empty omits the parameter.
	KnowledgeIndex string
}

// Service opens chat and agent streams through the endpoint catalog.
type Service struct {
	streams   Opener
	endpoints config.Endpoints
	newID     func() string
	logger    *zap.Logger
}

// NewService builds a Service. A nil catalog uses the built-in endpoints.
func NewService(streams Opener, endpoints config.Endpoints, logger *zap.Logger) *Service {
	if endpoints == nil {
		endpoints = config.DefaultEndpoints()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		streams:   streams,
		endpoints: endpoints,
		newID:     uuid.NewString,
		logger:    logger.Named("chat"),
	}
}

// NewChatID returns a fresh conversation id.
func (s *Service) NewChatID() string { return s.newID() }

// StreamInterview opens the chat-stream endpoint. The chat id actually used
// is available from the returned session's request.
func (s *Service) StreamInterview(ctx context.Context, req InterviewRequest, onEvent stream.EventHandler, onError stream.ErrorHandler) (*stream.Session, error) {
	chatID := strings.TrimSpace(req.ChatID)
	if chatID == "" {
		chatID = s.newID()
	}
	params := map[string]string{
		stream.MessageParam: req.Message,
		ParamChatID:         chatID,
	}
	if req.KnowledgeIndex != "" {
		params[ParamKnowledgeIndex] = req.KnowledgeIndex
	}
	return s.open(ctx, config.EndpointChatStream, params, onEvent, onError)
}

// StreamAgent opens the autonomous-agent-stream endpoint.
func (s *Service) StreamAgent(ctx context.Context, message string, onEvent stream.EventHandler, onError stream.ErrorHandler) (*stream.Session, error) {
	return s.open(ctx, config.EndpointAgentStream, map[string]string{stream.MessageParam: message}, onEvent, onError)
}

func (s *Service) open(ctx context.Context, name string, params map[string]string, onEvent stream.EventHandler, onError stream.ErrorHandler) (*stream.Session, error) {
	ep, err := s.endpoints.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := ep.Check(params); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	req, err := stream.NewRequest(ep.Path, params)
	if err != nil {
		return nil, err
	}
	sess, err := s.streams.Open(ctx, req, onEvent, onError)
	if err != nil {
		return nil, err
	}
	fields := []zap.Field{zap.String("endpoint", name), zap.Uint64("session", sess.ID())}
	if id, ok := req.Param(ParamChatID); ok {
		fields = append(fields, zap.String("chat_id", id))
	}
	s.logger.Debug("stream opened", fields...)
	return sess, nil
}
