package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/richsynapse/synapsehub-client/internal/config"
	"github.com/richsynapse/synapsehub-client/internal/stream"
)

// InitOptions configures the bootstrap process for generating config files.
type InitOptions struct {
	Root            string
	Environment     string
	APIOrigin       string
	BaseURL         string
	ParamEncoding   string
	CredentialStore string
	CredentialPath  string
	Force           bool
}

// Init scaffolds configuration files for the client.
func Init(opts InitOptions) error {
	if err := Validate(opts); err != nil {
		return err
	}
	applyDefaults(&opts)
	if err := ensureDir(filepath.Join(opts.Root, "config", opts.Environment)); err != nil {
		return err
	}

	settingPath := filepath.Join(opts.Root, "config", "setting.ini")
	if err := writeFile(settingPath, settingTemplate(opts), opts.Force); err != nil {
		return err
	}

	clientPath := filepath.Join(opts.Root, "config", opts.Environment, "client.ini")
	if err := writeFile(clientPath, clientTemplate(opts), opts.Force); err != nil {
		return err
	}

	return nil
}

func applyDefaults(opts *InitOptions) {
	if strings.TrimSpace(opts.Root) == "" {
		opts.Root = "."
	}
	if strings.TrimSpace(opts.Environment) == "" {
		opts.Environment = "dev"
	}
	if strings.TrimSpace(opts.APIOrigin) == "" {
		opts.APIOrigin = "http://localhost"
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = config.DefaultBaseURL(config.IsProductionEnv(opts.Environment), opts.APIOrigin)
	}
	if strings.TrimSpace(opts.ParamEncoding) == "" {
		opts.ParamEncoding = string(stream.EncodingQuery)
	}
	if strings.TrimSpace(opts.CredentialStore) == "" {
		opts.CredentialStore = "sqlite"
	}
	if strings.TrimSpace(opts.CredentialPath) == "" {
		opts.CredentialPath = config.DefaultCredentialPath()
	}
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

func writeFile(path, contents string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}

func settingTemplate(opts InitOptions) string {
	return fmt.Sprintf(`# SynapseHub client settings
environment=%s
log_level=info
`, opts.Environment)
}

func clientTemplate(opts InitOptions) string {
	return fmt.Sprintf(`# Environment specific overrides for %s
api_origin=%s
base_url=%s
with_credentials=true
# query (GET with URL parameters) or form (POST body)
param_encoding=%s
validation=preflight
request_timeout=60s
# Dash '-' disables file output.
log_file=-
credential_store=%s
credential_path=%s
`, opts.Environment, opts.APIOrigin, opts.BaseURL, opts.ParamEncoding, opts.CredentialStore, opts.CredentialPath)
}

// Validate checks option values without touching the filesystem.
func Validate(opts InitOptions) error {
	if opts.ParamEncoding != "" {
		if _, err := stream.ParseEncoding(opts.ParamEncoding); err != nil {
			return err
		}
	}
	switch strings.ToLower(opts.CredentialStore) {
	case "", "sqlite", "memory":
	case "postgres":
		return fmt.Errorf("credential_store=postgres needs a DSN; set credential_dsn by hand")
	default:
		return fmt.Errorf("unknown credential_store %q", opts.CredentialStore)
	}
	if strings.ContainsAny(opts.Environment, `/\`) {
		return fmt.Errorf("environment %q must not contain path separators", opts.Environment)
	}
	return nil
}
