package config

import (
	"fmt"
	"os"
	"strings"
)

// Secret environment variables. Each may instead name a file through the
// matching *_FILE variable.
const (
	EnvTwitchClientSecret = "TITAN_TWITCH_CLIENT_SECRET"
	EnvAdminUser          = "TITAN_ADMIN_USER"
	EnvAdminPass          = "TITAN_ADMIN_PASS"
	EnvOperatorUser       = "TITAN_OPERATOR_USER"
	EnvOperatorPass       = "TITAN_OPERATOR_PASS"
	EnvStreamKey          = "TITAN_STREAM_KEY"
)

// Secrets holds every credential the studio reads at startup.
type Secrets struct {
	TwitchClientSecret string
	AdminUser          string
	AdminPass          string
	OperatorUser       string
	OperatorPass       string
	StreamKey          string
}

// ResolveSecret reads a secret value using the *_FILE convention.
// If envName+"_FILE" is set, the secret is read from that file path and
// takes precedence over envName. Returns "" if neither is set.
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if filePath := os.Getenv(fileEnv); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, filePath, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}

// LoadSecrets resolves all studio secrets. The first unreadable file fails
// the whole load; the error never contains secret content.
func LoadSecrets() (Secrets, error) {
	var s Secrets
	for _, f := range []struct {
		env string
		dst *string
	}{
		{EnvTwitchClientSecret, &s.TwitchClientSecret},
		{EnvAdminUser, &s.AdminUser},
		{EnvAdminPass, &s.AdminPass},
		{EnvOperatorUser, &s.OperatorUser},
		{EnvOperatorPass, &s.OperatorPass},
		{EnvStreamKey, &s.StreamKey},
	} {
		v, err := ResolveSecret(f.env)
		if err != nil {
			return Secrets{}, err
		}
		*f.dst = v
	}
	return s, nil
}
