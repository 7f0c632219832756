package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/richsynapse/synapsehub-client/internal/stream"
)

const (
	settingsFile     = "config/setting.ini"
	defaultEnv       = "dev"
	envConfigPattern = "config/%s/client.ini"

	// DevBaseURL is where the backend listens during development.
	DevBaseURL = "http://localhost:8101/api"
	// ProductionPath is the API prefix behind the production origin.
	ProductionPath = "/api"
)

// Settings contains global toggles such as the active environment.
type Settings struct {
	Environment string
	Defaults    map[string]string
}

// ClientConfig describes runtime options for the CLI and the stream client.
type ClientConfig struct {
	Environment string
	Production  bool
	APIOrigin   string
	BaseURL     string

	WithCredentials bool
	ParamEncoding   stream.Encoding
	Validation      stream.ValidationMode
	RequestTimeout  time.Duration

	LogFile  string
	LogLevel string

	CredentialStore  string // sqlite|postgres|memory
	CredentialPath   string
	CredentialDSN    string
	CredentialCookie string

	EndpointsFile string
}

// StreamConfig projects the options the stream client consumes.
func (c ClientConfig) StreamConfig() stream.Config {
	return stream.Config{
		BaseAddress:     c.BaseURL,
		WithCredentials: c.WithCredentials,
		Encoding:        c.ParamEncoding,
		Validation:      c.Validation,
	}
}

// LoadClientConfig reads the current environment and loads the appropriate client config file.
func LoadClientConfig(root string) (ClientConfig, error) {
	if root == "" {
		root = "."
	}
	s, err := loadSettings(root)
	if err != nil {
		return ClientConfig{}, err
	}

	envValues, err := parseINI(filepath.Join(root, fmt.Sprintf(envConfigPattern, s.Environment)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			envValues = map[string]string{}
		} else {
			return ClientConfig{}, err
		}
	}

	merged := make(map[string]string)
	for k, v := range s.Defaults {
		merged[k] = v
	}
	for k, v := range envValues {
		merged[k] = v
	}

	cfg := ClientConfig{
		Environment:      s.Environment,
		Production:       parseOptionalBool(firstNonEmpty(os.Getenv("SYNAPSE_PRODUCTION"), merged["production"]), IsProductionEnv(s.Environment)),
		APIOrigin:        strings.TrimSuffix(firstNonEmpty(os.Getenv("SYNAPSE_API_ORIGIN"), merged["api_origin"], "http://localhost"), "/"),
		WithCredentials:  parseOptionalBool(firstNonEmpty(os.Getenv("SYNAPSE_WITH_CREDENTIALS"), merged["with_credentials"]), true),
		LogFile:          firstNonEmpty(os.Getenv("SYNAPSE_LOG_FILE"), merged["log_file"]),
		LogLevel:         strings.ToLower(firstNonEmpty(os.Getenv("SYNAPSE_LOG_LEVEL"), merged["log_level"], "info")),
		CredentialStore:  strings.ToLower(strings.TrimSpace(firstNonEmpty(os.Getenv("SYNAPSE_CREDENTIAL_STORE"), merged["credential_store"], "sqlite"))),
		CredentialPath:   firstNonEmpty(os.Getenv("SYNAPSE_CREDENTIAL_PATH"), merged["credential_path"], DefaultCredentialPath()),
		CredentialDSN:    firstNonEmpty(os.Getenv("SYNAPSE_CREDENTIAL_DSN"), merged["credential_dsn"]),
		CredentialCookie: firstNonEmpty(os.Getenv("SYNAPSE_CREDENTIAL_COOKIE"), merged["credential_cookie"], "satoken"),
		EndpointsFile:    firstNonEmpty(os.Getenv("SYNAPSE_ENDPOINTS_FILE"), merged["endpoints_file"]),
	}
	cfg.BaseURL = strings.TrimSuffix(firstNonEmpty(os.Getenv("SYNAPSE_BASE_URL"), merged["base_url"], DefaultBaseURL(cfg.Production, cfg.APIOrigin)), "/")

	if cfg.ParamEncoding, err = stream.ParseEncoding(firstNonEmpty(os.Getenv("SYNAPSE_PARAM_ENCODING"), merged["param_encoding"])); err != nil {
		return ClientConfig{}, err
	}
	if cfg.Validation, err = stream.ParseValidationMode(firstNonEmpty(os.Getenv("SYNAPSE_VALIDATION"), merged["validation"])); err != nil {
		return ClientConfig{}, err
	}
	timeout := firstNonEmpty(os.Getenv("SYNAPSE_REQUEST_TIMEOUT"), merged["request_timeout"], "60s")
	if cfg.RequestTimeout, err = time.ParseDuration(strings.TrimSpace(timeout)); err != nil {
		return ClientConfig{}, fmt.Errorf("invalid request_timeout %q: %w", timeout, err)
	}
	switch cfg.CredentialStore {
	case "sqlite", "memory":
	case "postgres":
		if strings.TrimSpace(cfg.CredentialDSN) == "" {
			return ClientConfig{}, errors.New("credential_store=postgres requires credential_dsn")
		}
	default:
		return ClientConfig{}, fmt.Errorf("unknown credential_store %q", cfg.CredentialStore)
	}
	return cfg, nil
}

func loadSettings(root string) (Settings, error) {
	values, err := parseINI(filepath.Join(root, settingsFile))
	if errors.Is(err, os.ErrNotExist) {
		return Settings{Environment: firstNonEmpty(os.Getenv("SYNAPSE_ENV"), defaultEnv), Defaults: map[string]string{}}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	env := firstNonEmpty(os.Getenv("SYNAPSE_ENV"), values["environment"], defaultEnv)
	defaults := make(map[string]string)
	for k, v := range values {
		if k == "environment" {
			continue
		}
		defaults[k] = v
	}
	return Settings{Environment: env, Defaults: defaults}, nil
}

func parseINI(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		values[strings.ToLower(key)] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseOptionalBool(v string, fallback bool) bool {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return parseBool(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// IsProductionEnv reports whether an environment name means production.
func IsProductionEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "prod", "production", "live":
		return true
	default:
		return false
	}
}

// DefaultBaseURL picks the API base address. Production serves the API under
// a relative /api path, so it is anchored on the configured origin.
func DefaultBaseURL(production bool, origin string) string {
	if production {
		return strings.TrimSuffix(origin, "/") + ProductionPath
	}
	return DevBaseURL
}

// DefaultCredentialPath returns the fallback session database under the user's home directory.
func DefaultCredentialPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "session.db"
	}
	return filepath.Join(home, ".synapsehub", "session.db")
}
