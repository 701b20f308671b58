package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"cryptomon/internal/models"
)

const (
	configFileKey = "config_file"
	cacheTTLKey   = "cache_ttl"
	logLevelKey   = "log_level"
	tokenKey      = "telegram_token"
	serviceKey    = "service_addr"
)

// Config is the parsed in-memory form of the YAML document plus environment
// overrides. Immutable after load.
type Config struct {
	Service struct {
		Addr string `yaml:"addr"`
	} `yaml:"service"`

	// Default TTL in seconds applied to tasks without one of their own.
	CacheTTL int    `yaml:"cache_ttl"`
	LogLevel string `yaml:"log_level"`

	Tracing struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"tracing"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Exchanges []models.ExchangeBinding `yaml:"exchanges"`
	Tasks     []TaskConfig             `yaml:"tasks"`
}

// TaskConfig is the YAML shape of one task. Interval and TTL are seconds in
// the document; Model converts them to durations.
type TaskConfig struct {
	Name     string         `yaml:"name"`
	Exchange string         `yaml:"exchange"`
	Function string         `yaml:"function"`
	Args     []any          `yaml:"args"`
	Kwargs   map[string]any `yaml:"kwargs"`

	// Params is the legacy spelling: a scalar or list folds into args, a map
	// into kwargs.
	Params any `yaml:"params"`

	Dependencies []string `yaml:"dependencies"`
	Interval     int      `yaml:"interval"`
	TTL          int      `yaml:"ttl"`

	Return    string `yaml:"return"`
	Condition string `yaml:"condition"`
	Log       string `yaml:"log"`
	Action    string `yaml:"action"`
}

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetDefault(configFileKey, "config.yaml")
	v.SetDefault(cacheTTLKey, 60)
	v.SetDefault(logLevelKey, "info")
	v.SetDefault(serviceKey, ":16888")
	v.AutomaticEnv()
	return v
}

func NewConfig() (*Config, error) {
	env := newEnv()

	path := env.GetString(configFileKey)
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open config file %s", path)
	}

	defer func() {
		_ = file.Close()
	}()

	config := Config{}
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, errors.Wrapf(err, "decode config file %s", path)
	}
	config.applyDefaults(env)

	for i := range config.Tasks {
		if err := config.Tasks[i].foldParams(); err != nil {
			return nil, errors.Wrapf(err, "task %s", config.Tasks[i].Name)
		}
	}

	return &config, nil
}

func (c *Config) applyDefaults(env *viper.Viper) {
	if c.CacheTTL <= 0 {
		c.CacheTTL = env.GetInt(cacheTTLKey)
	}
	if c.LogLevel == "" {
		c.LogLevel = env.GetString(logLevelKey)
	}
	if c.Service.Addr == "" {
		c.Service.Addr = env.GetString(serviceKey)
	}
	if token := env.GetString(tokenKey); token != "" {
		c.Telegram.Token = token
	}
}

// foldParams moves the legacy params field into args/kwargs.
func (t *TaskConfig) foldParams() error {
	switch p := t.Params.(type) {
	case nil:
	case []any:
		t.Args = append(t.Args, p...)
	case map[any]any:
		if t.Kwargs == nil {
			t.Kwargs = make(map[string]any, len(p))
		}
		for k, v := range p {
			key, ok := k.(string)
			if !ok {
				return errors.Errorf("params key %v is not a string", k)
			}
			t.Kwargs[key] = v
		}
	case string, int, float64, bool:
		t.Args = append(t.Args, p)
	default:
		return errors.Errorf("unsupported params type %T", p)
	}
	t.Params = nil
	return nil
}

// Model converts the YAML shape to the engine's task model.
func (t *TaskConfig) Model() *models.Task {
	return &models.Task{
		Name:         t.Name,
		Exchange:     t.Exchange,
		Function:     t.Function,
		Args:         t.Args,
		Kwargs:       t.Kwargs,
		Dependencies: t.Dependencies,
		Interval:     time.Duration(t.Interval) * time.Second,
		Return:       t.Return,
		Condition:    t.Condition,
		Log:          t.Log,
		Action:       t.Action,
		TTL:          time.Duration(t.TTL) * time.Second,
	}
}

// TaskModels returns every task as the engine's model type, in declaration
// order.
func (c *Config) TaskModels() []*models.Task {
	out := make([]*models.Task, 0, len(c.Tasks))
	for i := range c.Tasks {
		out = append(out, c.Tasks[i].Model())
	}
	return out
}

// Binding looks up an exchange binding by name.
func (c *Config) Binding(name string) (*models.ExchangeBinding, bool) {
	for i := range c.Exchanges {
		if c.Exchanges[i].Name == name {
			return &c.Exchanges[i], true
		}
	}
	return nil, false
}

// DefaultTTL is the cache TTL applied to tasks without their own.
func (c *Config) DefaultTTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}
