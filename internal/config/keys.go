package config

import (
	"net/url"
	"os"
	"strings"
)

// RedisURLEnv overrides store.redis_url through viper's env binding.
const RedisURLEnv = "MOODPULSE_STORE_REDIS_URL"

// CredentialSource tells where a credential was read from.
type CredentialSource string

const (
	SourceEnv    CredentialSource = "env"
	SourceConfig CredentialSource = "config"
	SourceUnset  CredentialSource = "none"
)

// Credential describes one secret without revealing it.
type Credential struct {
	Name     string           `json:"name"`
	EnvVar   string           `json:"env_var"`
	Required bool             `json:"required"`
	Source   CredentialSource `json:"source"`
	IsSet    bool             `json:"is_set"`
	Masked   string           `json:"masked,omitempty"`
	Problem  string           `json:"problem,omitempty"`
}

// Credentials reports the Gemini key and the optional Redis mirror URL.
func Credentials(cfg *Config) []Credential {
	gemini := describe("Gemini API Key", cfg.LLM.APIKey, APIKeyEnv, true)
	switch {
	case !gemini.IsSet:
		gemini.Problem = "required by run and serve"
	case !looksLikeGoogleKey(cfg.LLM.APIKey):
		gemini.Problem = "does not look like a Google API key"
	}
	if gemini.IsSet {
		gemini.Masked = maskSecret(cfg.LLM.APIKey)
	}

	redis := describe("Redis URL", cfg.Store.RedisURL, RedisURLEnv, false)
	if redis.IsSet {
		redis.Masked, redis.Problem = redactURL(cfg.Store.RedisURL)
	}
	return []Credential{gemini, redis}
}

func describe(name, value, envVar string, required bool) Credential {
	c := Credential{Name: name, EnvVar: envVar, Required: required, Source: SourceUnset}
	if strings.TrimSpace(value) == "" {
		return c
	}
	c.IsSet = true
	c.Source = SourceConfig
	if os.Getenv(envVar) != "" {
		c.Source = SourceEnv
	}
	return c
}

// looksLikeGoogleKey checks the shape of Google API keys: "AIza" followed by
// 35 URL-safe characters.
func looksLikeGoogleKey(key string) bool {
	if len(key) != 39 || !strings.HasPrefix(key, "AIza") {
		return false
	}
	for _, r := range key[4:] {
		if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// maskSecret keeps the first and last four characters of long secrets.
func maskSecret(s string) string {
	if len(s) <= 12 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// redactURL hides the password of a redis URL. Unparsable values are fully
// masked and reported.
func redactURL(raw string) (masked, problem string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "****", "not a valid URL"
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return u.Redacted(), "scheme must be redis or rediss"
	}
	return u.Redacted(), ""
}
