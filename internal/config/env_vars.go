package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configFileEnvVar       = "GARAGEDESK_CONFIG"
	appNameEnvVar          = "APP_NAME"
	envEnvVar              = "ENV"
	logLevelEnvVar         = "LOG_LEVEL"
	baseURLEnvVar          = "BACKEND_URL"
	apiKeyEnvVar           = "BACKEND_API_KEY"
	serviceKeyEnvVar       = "BACKEND_SERVICE_KEY"
	requestTimeoutEnvVar   = "REQUEST_TIMEOUT"
	provisioningWaitEnvVar = "PROVISIONING_WAIT"
)

// Load builds the process configuration once, in increasing precedence:
// defaults, the YAML file named by GARAGEDESK_CONFIG, then environment
// variables. The given .env files are loaded into the environment first;
// missing files are skipped and never override variables already set.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("[config.Load] %s: %w", f, err)
		}
	}

	var v Values
	if path := os.Getenv(configFileEnvVar); path != "" {
		fileValues, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		v = *fileValues
	}

	if err := applyEnv(&v); err != nil {
		return nil, err
	}

	c := New(v)
	if err := Validate(c); err != nil {
		return nil, fmt.Errorf("[config.Load] %w", err)
	}
	return c, nil
}

// LoadFromFile reads a YAML configuration file.
func LoadFromFile(path string) (*Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config.LoadFromFile] %w", err)
	}
	var v Values
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("[config.LoadFromFile] parse %s: %w", path, err)
	}
	return &v, nil
}

func applyEnv(v *Values) error {
	setString(&v.AppName, appNameEnvVar)
	setString(&v.Env, envEnvVar)
	setString(&v.LogLevel, logLevelEnvVar)
	setString(&v.BaseURL, baseURLEnvVar)
	setString(&v.APIKey, apiKeyEnvVar)
	setString(&v.ServiceKey, serviceKeyEnvVar)
	if err := setDuration(&v.RequestTimeout, requestTimeoutEnvVar); err != nil {
		return err
	}
	return setDuration(&v.ProvisioningWait, provisioningWaitEnvVar)
}

func setString(dst *string, envVar string) {
	if value := os.Getenv(envVar); value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, envVar string) error {
	value := os.Getenv(envVar)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("[config] %s: %w", envVar, err)
	}
	*dst = d
	return nil
}
