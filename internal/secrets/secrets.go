// Package secrets implements the TINYETL_SECRET_<id> environment variable
// convention: a way to inject a password into a connection string without
// ever writing it into a CLI flag or config file.
package secrets

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// Resolve looks up the secret named id in the environment, under the
// TINYETL_SECRET_<id> convention.
func Resolve(logger *slog.Logger, id string) (string, error) {
	envVar := "TINYETL_SECRET_" + id
	value, ok := os.LookupEnv(envVar)
	if !ok {
		return "", fmt.Errorf("secret not found: environment variable %s is not set", envVar)
	}
	logger.Info("resolved secret", "id", id)
	return value, nil
}

// CheckAndWarnAboutPasswordInURL logs a warning if connectionString
// carries a plaintext password, which a --source-secret-id /
// --dest-secret-id indirection would avoid.
func CheckAndWarnAboutPasswordInURL(logger *slog.Logger, connectionString, name string) {
	if u, err := url.Parse(connectionString); err == nil {
		if password, ok := u.User.Password(); ok && password != "" {
			warnPasswordInURL(logger, name)
			return
		}
		return
	}
	if strings.Contains(connectionString, "password=") ||
		strings.Contains(connectionString, "pwd=") ||
		(strings.Contains(connectionString, ":") && strings.Contains(connectionString, "@")) {
		warnPasswordInURL(logger, name)
	}
}

func warnPasswordInURL(logger *slog.Logger, name string) {
	logger.Warn("using a password in a CLI parameter is insecure; consider --source-secret-id / --dest-secret-id", "connection", name)
}

// ProcessConnectionString injects the resolved secretID's value as
// connectionString's password, when secretID is non-empty. An empty
// secretID returns connectionString unchanged. connectionString must
// parse as a URL when a secretID is given; non-URL connection strings
// (bare file paths, "sqlite://path#table") have no standard place to put
// a password and must be handled per-connector instead.
func ProcessConnectionString(logger *slog.Logger, connectionString, secretID, connectionType string) (string, error) {
	CheckAndWarnAboutPasswordInURL(logger, connectionString, connectionType)

	if secretID == "" {
		return connectionString, nil
	}

	secretValue, err := Resolve(logger, secretID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s secret: %w", connectionType, err)
	}

	u, err := url.Parse(connectionString)
	if err != nil {
		return "", fmt.Errorf("cannot inject secret into non-URL connection string for %s: URL format required when using secret IDs", connectionType)
	}

	if password, ok := u.User.Password(); ok && password != "" {
		logger.Warn("overriding password in URL with secret from environment variable", "connection", connectionType)
	}

	username := u.User.Username()
	u.User = url.UserPassword(username, secretValue)
	return u.String(), nil
}
