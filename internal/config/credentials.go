package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names for vendor API credentials.
const (
	// EnvToken supplies a ready-made API token directly.
	EnvToken = "ENDOR_TOKEN"

	// EnvAPIKey and EnvAPISecret supply an API key pair that the client
	// exchanges for a token at run start (and again on a 401).
	EnvAPIKey    = "ENDOR_API_CREDENTIALS_KEY"
	EnvAPISecret = "ENDOR_API_CREDENTIALS_SECRET"

	// EnvNamespace is the default root namespace when --namespace is not
	// given.
	EnvNamespace = "ENDOR_NAMESPACE"
)

// Credentials holds vendor API authentication material. Exactly one of
// the two forms is used: a direct token, or a key/secret pair to exchange.
// The values are consumed opaquely and must never appear in logs
// (internal/log masks them if they do).
type Credentials struct {
	// Token is a ready-made bearer token. When set, no exchange happens
	// and a 401 is terminal (the token cannot be refreshed).
	Token string

	// Key and Secret are exchanged for a token via the auth endpoint.
	Key    string
	Secret string
}

// HasToken reports whether a direct token was supplied.
func (c Credentials) HasToken() bool {
	return c.Token != ""
}

// HasKeyPair reports whether a complete key/secret pair was supplied.
func (c Credentials) HasKeyPair() bool {
	return c.Key != "" && c.Secret != ""
}

// LoadCredentials reads credentials from the environment, after a
// best-effort load of a .env file from the working directory.
//
// Design decision: godotenv.Load() errors are deliberately ignored. A
// missing .env file is the normal case in CI, where the variables are set
// directly. Only the absence of usable credentials is an error.
func LoadCredentials() (Credentials, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional

	creds := Credentials{
		Token:  os.Getenv(EnvToken),
		Key:    os.Getenv(EnvAPIKey),
		Secret: os.Getenv(EnvAPISecret),
	}

	if !creds.HasToken() && !creds.HasKeyPair() {
		return Credentials{}, ErrNoCredentials
	}

	return creds, nil
}

// NamespaceFromEnv returns the root namespace from the environment, or ""
// when unset. Called by the CLI as the fallback for --namespace.
func NamespaceFromEnv() string {
	return os.Getenv(EnvNamespace)
}
