// Package log provides secure logging functionality with automatic masking
// of credential material, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic masking of credential values (API keys, secrets, tokens)
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Security Features
//
// The SecureHandler automatically masks sensitive information in log output:
//   - HTTP headers (Authorization, X-Api-Key)
//   - Vendor API credentials (key, secret, exchanged bearer tokens)
//   - Secret values detected by pattern matching (JWTs, basic auth,
//     long alphanumeric key shapes)
//
// Even in verbose mode, credential values are masked to prevent accidental
// exposure of tenant secrets in logs that may be shared or stored.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("token exchanged",
//	    "token", token,  // Will be masked to "***REDACTED***"
//	    "url", "https://api.example.com/v1/auth/api-key",
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
