package synapse

import (
	internalcfg "github.com/richsynapse/synapsehub-client/internal/config"
)

// Config re-exports the client's configuration structure so downstream
// integrations can reuse the same parsed values without importing internal
// packages.
type Config = internalcfg.ClientConfig

// Endpoints is the logical endpoint catalog.
type Endpoints = internalcfg.Endpoints

// LoadConfig delegates to the internal loader while keeping the consumer API
// inside the public pkg/synapse namespace.
func LoadConfig(root string) (Config, error) {
	return internalcfg.LoadClientConfig(root)
}

// LoadEndpoints returns the built-in catalog overlaid with the YAML file at path.
func LoadEndpoints(path string) (Endpoints, error) {
	return internalcfg.LoadEndpoints(path)
}
