// ABOUTME: Resolves credentials from a TOML secrets file, falling back to a .env file
// ABOUTME: The secrets file wins only when it defines WEAVIATE_URL; sources are never merged

package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// secretsDocument mirrors the top-level keys of a Streamlit-style secrets.toml.
type secretsDocument struct {
	URL         string `toml:"WEAVIATE_URL"`
	APIKey      string `toml:"WEAVIATE_API_KEY"`
	ProviderKey string `toml:"OPENAI_API_KEY"`
}

// SecretsFile is the hosted-secrets store backed by a TOML file.
type SecretsFile struct {
	Path string
}

// Load reads the secrets file. The boolean is true only when the file exists
// and defines WEAVIATE_URL; a missing file is not an error.
func (s SecretsFile) Load() (Credentials, bool, error) {
	if s.Path == "" {
		return Credentials{}, false, nil
	}

	var doc secretsDocument
	md, err := toml.DecodeFile(s.Path, &doc)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, false, nil
		}
		return Credentials{}, false, fmt.Errorf("parsing secrets file %s: %w", s.Path, err)
	}

	if !md.IsDefined(KeyURL) {
		return Credentials{}, false, nil
	}

	return Credentials{
		URL:         doc.URL,
		APIKey:      doc.APIKey,
		ProviderKey: doc.ProviderKey,
		Source:      SourceSecrets,
	}, true, nil
}

// EnvFile reads a dotenv file and the process environment. The file is
// re-read on every Load and never written into the process environment;
// a non-empty environment variable takes precedence over the file.
type EnvFile struct {
	Path string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load reads the env file (a missing file is treated as empty) and returns
// the three keys, environment first.
func (e EnvFile) Load() (Credentials, error) {
	var (
		file    map[string]string
		loadErr error
	)
	if e.Path != "" {
		values, err := godotenv.Read(e.Path)
		switch {
		case err == nil:
			file = values
		case !errors.Is(err, fs.ErrNotExist):
			loadErr = fmt.Errorf("reading env file %s: %w", e.Path, err)
		}
	}

	getenv := e.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return file[key]
	}

	return Credentials{
		URL:         lookup(KeyURL),
		APIKey:      lookup(KeyAPIKey),
		ProviderKey: lookup(KeyProviderKey),
		Source:      SourceEnv,
	}, loadErr
}

// Resolver picks exactly one credential source per call.
type Resolver struct {
	secrets SecretsFile
	env     EnvFile
	logger  *slog.Logger
}

// NewResolver creates a Resolver for the given secrets and env file paths.
func NewResolver(secretsPath, envPath string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		secrets: SecretsFile{Path: secretsPath},
		env:     EnvFile{Path: envPath},
		logger:  logger.With("component", "credentials"),
	}
}

// Resolve returns credentials from the secrets file when it defines WEAVIATE_URL,
// otherwise from the env file and process environment. It does not validate;
// call Credentials.Validate before connecting.
func (r *Resolver) Resolve() (Credentials, error) {
	creds, ok, err := r.secrets.Load()
	if err != nil {
		return Credentials{}, err
	}
	if ok {
		r.logger.Debug("credentials resolved", "source", creds.Source, "path", r.secrets.Path)
		return creds, nil
	}

	creds, err = r.env.Load()
	if err != nil {
		// A malformed env file is treated like an absent one.
		r.logger.Warn("ignoring env file", "error", err)
	}
	r.logger.Debug("credentials resolved", "source", creds.Source, "path", r.env.Path)
	return creds, nil
}
