// ABOUTME: Credential triple for the Weaviate cluster and the provider key
// ABOUTME: Validation gate that rejects any missing value before a connection is opened

package credentials

import (
	"errors"
	"fmt"
	"strings"
)

// Key names looked up in both the secrets file and the environment.
const (
	KeyURL         = "WEAVIATE_URL"
	KeyAPIKey      = "WEAVIATE_API_KEY"
	KeyProviderKey = "OPENAI_API_KEY"
)

// MissingMessage is the user-facing text shown when the validation gate fails.
const MissingMessage = "Missing API keys or endpoints. Please configure them in Streamlit Secrets or a .env file."

// ErrMissingCredentials matches any *MissingError via errors.Is.
var ErrMissingCredentials = errors.New("missing API keys or endpoints")

// Source identifies which store supplied a Credentials value.
type Source string

const (
	SourceSecrets Source = "secrets"
	SourceEnv     Source = "env"
)

// Credentials holds the three opaque values needed to reach the query agent.
type Credentials struct {
	URL         string
	APIKey      string
	ProviderKey string
	Source      Source
}

// Missing returns the key names whose values are empty, in a fixed order.
func (c Credentials) Missing() []string {
	var missing []string
	if c.URL == "" {
		missing = append(missing, KeyURL)
	}
	if c.APIKey == "" {
		missing = append(missing, KeyAPIKey)
	}
	if c.ProviderKey == "" {
		missing = append(missing, KeyProviderKey)
	}
	return missing
}

// Validate succeeds only if all three values are non-empty.
func (c Credentials) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return &MissingError{Keys: missing, Source: c.Source}
	}
	return nil
}

// String masks the secret values so Credentials can be logged safely.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{source=%s url=%s api_key=%s provider_key=%s}",
		c.Source, c.URL, Mask(c.APIKey), Mask(c.ProviderKey))
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

// MissingError reports which credential values were empty.
type MissingError struct {
	Keys   []string
	Source Source
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing credentials from %s: %s", e.Source, strings.Join(e.Keys, ", "))
}

// Is makes errors.Is(err, ErrMissingCredentials) true for any MissingError.
func (e *MissingError) Is(target error) bool {
	return target == ErrMissingCredentials
}
