package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"

	"ragbench/internal/domain"
)

// Credentials are provider keys and connection parameters, read once at
// startup and passed to provider constructors.
type Credentials struct {
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	JinaAPIKey       string `env:"JINA_API_KEY"`
	VoyageAPIKey     string `env:"VOYAGE_API_KEY"`
	ContextualAPIKey string `env:"CONTEXTUAL_API_KEY"`

	ElasticsearchURL      string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchUsername string `env:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword string `env:"ELASTICSEARCH_PASSWORD"`
}

// LoadCredentials reads the optional dotenv file at dotenvPath and overlays
// the process environment on top of it.
func LoadCredentials(dotenvPath string) (*Credentials, error) {
	environment, err := readDotenv(dotenvPath)
	if err != nil {
		return nil, err
	}
	for k, v := range env.ToMap(os.Environ()) {
		environment[k] = v
	}
	return ParseCredentials(environment)
}

// ParseCredentials decodes credentials from an explicit environment.
func ParseCredentials(environment map[string]string) (*Credentials, error) {
	var creds Credentials
	if err := env.ParseWithOptions(&creds, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return &creds, nil
}

func readDotenv(path string) (map[string]string, error) {
	values := make(map[string]string)
	if path == "" {
		return values, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return values, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		values[strings.ToUpper(key)] = v.GetString(key)
	}
	return values, nil
}

// Require returns a *domain.ConfigError naming variable when value is empty.
func Require(variable, value string) error {
	if value == "" {
		return domain.NewConfigError(variable, "", "environment variable is not set")
	}
	return nil
}
