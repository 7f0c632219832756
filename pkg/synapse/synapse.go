// Package synapse is the public face of the SynapseHub streaming client.
package synapse

import (
	"go.uber.org/zap"

	"github.com/richsynapse/synapsehub-client/internal/chat"
	"github.com/richsynapse/synapsehub-client/internal/stream"
)

type StreamConfig = stream.Config
type StreamClient = stream.Client
type Session = stream.Session
type Request = stream.Request
type Event = stream.Event
type EventHandler = stream.EventHandler
type ErrorHandler = stream.ErrorHandler
type SessionError = stream.SessionError
type CredentialSource = stream.CredentialSource
type Transport = stream.Transport
type Conn = stream.Conn

type ChatService = chat.Service
type InterviewRequest = chat.InterviewRequest
type Transcript = chat.Transcript

const (
	EncodingQuery = stream.EncodingQuery
	EncodingForm  = stream.EncodingForm

	ValidatePreflight = stream.ValidatePreflight
	ValidateOnOpen    = stream.ValidateOnOpen
	ValidateOff       = stream.ValidateOff
)

var (
	ErrBlankMessage    = stream.ErrBlankMessage
	ErrStreamTruncated = stream.ErrStreamTruncated
	ErrInterrupted     = chat.ErrInterrupted
)

func NewStreamClient(cfg StreamConfig) (*StreamClient, error) {
	return stream.NewClient(cfg)
}

func NewRequest(path string, params map[string]string) (Request, error) {
	return stream.NewRequest(path, params)
}

// NewChatService wires a chat service over a stream client. A nil catalog
// uses the built-in endpoints.
func NewChatService(streams *StreamClient, endpoints Endpoints, logger *zap.Logger) *ChatService {
	return chat.NewService(streams, endpoints, logger)
}

// IsValidation reports whether err is a rejected message rather than a
// transport failure.
func IsValidation(err error) bool { return stream.IsValidation(err) }
