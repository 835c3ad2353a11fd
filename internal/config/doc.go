// Package config provides configuration management for scanexport.
//
// Configuration comes from three places, in order of precedence:
//   - CLI flags, assembled into an explicit Config struct in cmd/scanexport
//   - an optional YAML file (.scanexport) with per-namespace overrides
//   - environment variables for credentials only (ENDOR_TOKEN or
//     ENDOR_API_CREDENTIALS_KEY / ENDOR_API_CREDENTIALS_SECRET), loaded
//     after a best-effort godotenv.Load()
//
// The Config struct is passed through the application via dependency
// injection; there is no ambient global state.
package config
