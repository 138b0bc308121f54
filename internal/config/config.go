package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server"`
	Interaction InteractionConfig `yaml:"interaction" json:"interaction"`
	Assistant   AssistantConfig   `yaml:"assistant" json:"assistant"`
}

type ServerConfig struct {
	Host           string   `yaml:"host" json:"host"`
	Port           int      `yaml:"port" json:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins,omitempty"`
	// AuthToken comes from the environment only, never from the config file,
	// and is excluded from the /config snapshot.
	AuthToken string `yaml:"-" json:"-"`
}

type InteractionConfig struct {
	ListenTimeout time.Duration `yaml:"listen_timeout" json:"listen_timeout"`
	PhraseLimit   time.Duration `yaml:"phrase_limit" json:"phrase_limit"`
	// Duration bounds a whole interaction; zero means unbounded.
	Duration    time.Duration `yaml:"duration" json:"duration"`
	GracePeriod time.Duration `yaml:"grace_period" json:"grace_period"`
}

type AssistantConfig struct {
	Response  string        `yaml:"response" json:"response,omitempty"`
	StepDelay time.Duration `yaml:"step_delay" json:"step_delay"`
}

// authTokenEnv is the environment variable carrying the optional API token.
const authTokenEnv = "GATEWAY_AUTH_TOKEN"

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      8000,
			AuthToken: os.Getenv(authTokenEnv),
		},
		Interaction: InteractionConfig{
			ListenTimeout: 10 * time.Second,
			PhraseLimit:   10 * time.Second,
			Duration:      0,
			GracePeriod:   5 * time.Second,
		},
		Assistant: AssistantConfig{
			StepDelay: 250 * time.Millisecond,
		},
	}
}

// Load reads the config file at path over the defaults. The auth token is
// taken from the environment afterwards so it never round-trips through yaml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
