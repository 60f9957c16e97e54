package config

import (
	"errors"
	"strings"
	"time"
)

type Config interface {
	EnvConfig
	BackendConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

// BackendConfig describes the remote data store: one base URL serving the
// REST resource endpoint and the Auth endpoint.
type BackendConfig interface {
	GetBaseURL() string
	GetRestURL() string
	GetAuthURL() string
	GetAPIKey() string
	GetServiceKey() string
	GetRequestTimeout() time.Duration
}

type SessionConfig interface {
	GetProvisioningWait() time.Duration
}

const (
	defaultAppName          = "Garage Desk"
	defaultEnv              = "DEV"
	defaultLogLevel         = "info"
	defaultRequestTimeout   = 30 * time.Second
	defaultProvisioningWait = 500 * time.Millisecond

	restPath = "/rest/v1"
	authPath = "/auth/v1"
)

// Values is the raw configuration. It doubles as the YAML file schema.
type Values struct {
	AppName          string        `yaml:"app_name"`
	Env              string        `yaml:"env"`
	LogLevel         string        `yaml:"log_level"`
	BaseURL          string        `yaml:"base_url"`
	APIKey           string        `yaml:"api_key"`
	ServiceKey       string        `yaml:"service_key"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	ProvisioningWait time.Duration `yaml:"provisioning_wait"`
}

// mainConfig is immutable once built; getters never consult the environment.
type mainConfig struct {
	values Values
}

var _ Config = mainConfig{}

// New applies defaults to v and returns the resulting Config.
func New(v Values) Config {
	if v.AppName == "" {
		v.AppName = defaultAppName
	}
	if v.Env == "" {
		v.Env = defaultEnv
	}
	if v.LogLevel == "" {
		v.LogLevel = defaultLogLevel
	}
	if v.RequestTimeout <= 0 {
		v.RequestTimeout = defaultRequestTimeout
	}
	if v.ProvisioningWait <= 0 {
		v.ProvisioningWait = defaultProvisioningWait
	}
	v.BaseURL = strings.TrimSuffix(v.BaseURL, "/")
	return mainConfig{values: v}
}

// Validate checks the settings every backend call depends on.
func Validate(c Config) error {
	if c.GetBaseURL() == "" {
		return errors.New("backend base URL is required")
	}
	if c.GetAPIKey() == "" {
		return errors.New("backend API key is required")
	}
	return nil
}

func (c mainConfig) GetAppName() string  { return c.values.AppName }
func (c mainConfig) GetEnv() string      { return c.values.Env }
func (c mainConfig) GetLogLevel() string { return c.values.LogLevel }

func (c mainConfig) GetBaseURL() string { return c.values.BaseURL }
func (c mainConfig) GetRestURL() string { return c.values.BaseURL + restPath }
func (c mainConfig) GetAuthURL() string { return c.values.BaseURL + authPath }
func (c mainConfig) GetAPIKey() string  { return c.values.APIKey }

// GetServiceKey returns the privileged key, falling back to the public key.
func (c mainConfig) GetServiceKey() string {
	if c.values.ServiceKey == "" {
		return c.values.APIKey
	}
	return c.values.ServiceKey
}

func (c mainConfig) GetRequestTimeout() time.Duration { return c.values.RequestTimeout }

func (c mainConfig) GetProvisioningWait() time.Duration { return c.values.ProvisioningWait }
