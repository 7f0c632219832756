package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Logical endpoint names.
const (
	EndpointChatStream  = "chat-stream"
	EndpointAgentStream = "autonomous-agent-stream"
)

// Endpoint describes one streaming route of the backend.
type Endpoint struct {
	Path     string   `yaml:"path"`
	Required []string `yaml:"required,omitempty"`
	Optional []string `yaml:"optional,omitempty"`
}

// Endpoints maps logical names to routes.
type Endpoints map[string]Endpoint

type endpointsFile struct {
	Endpoints Endpoints `yaml:"endpoints"`
}

// DefaultEndpoints returns the built-in catalog.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		EndpointChatStream: {
			Path:     "/doChat/stream",
			Required: []string{"message", "chatId"},
			Optional: []string{"knowledgeIndex"},
		},
		EndpointAgentStream: {
			Path:     "/doChat/manus/stream",
			Required: []string{"message"},
		},
	}
}

// LoadEndpoints returns the built-in catalog overlaid with the YAML file at
// path. An empty path yields the defaults. Example file:
//
//	endpoints:
//	  chat-stream:
//	    path: /v2/doChat/stream
//	    required: [message, chatId]
//	    optional: [knowledgeIndex]
func LoadEndpoints(path string) (Endpoints, error) {
	eps := DefaultEndpoints()
	if strings.TrimSpace(path) == "" {
		return eps, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read endpoints file: %w", err)
	}
	var file endpointsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse endpoints file: %w", err)
	}
	for name, ep := range file.Endpoints {
		if strings.TrimSpace(ep.Path) == "" {
			return nil, fmt.Errorf("endpoint %q: path required", name)
		}
		eps[name] = ep
	}
	return eps, nil
}

// Lookup returns the endpoint registered under name.
func (e Endpoints) Lookup(name string) (Endpoint, error) {
	ep, ok := e[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("unknown endpoint %q", name)
	}
	return ep, nil
}

// Names lists the registered endpoints in sorted order.
func (e Endpoints) Names() []string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check rejects parameter sets that miss a required key or carry a key the
// endpoint does not know. Values are not inspected; blank messages are the
// stream client's concern.
func (ep Endpoint) Check(params map[string]string) error {
	allowed := make(map[string]bool, len(ep.Required)+len(ep.Optional))
	for _, k := range ep.Required {
		allowed[k] = true
		if _, ok := params[k]; !ok {
			return fmt.Errorf("%s: missing parameter %q", ep.Path, k)
		}
	}
	for _, k := range ep.Optional {
		allowed[k] = true
	}
	for k := range params {
		if !allowed[k] {
			return fmt.Errorf("%s: unexpected parameter %q", ep.Path, k)
		}
	}
	return nil
}
