package config

import (
	"fmt"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
	"os"
)

const (
	ConfigPathFlag    = "config"
	DefaultConfigPath = "config.yaml"
	LogLevelFlag      = "level"
)

const (
	KeyringTypeAWSKMS = "aws_kms"
	KeyringTypeGCPKMS = "gcp_kms"
	KeyringTypeRawAES = "raw_aes"
)

type (
	ConfigProvider interface {
		GetConfig() *Config
	}

	Config struct {
		Metrics    MetricsConfig    `yaml:"metrics"`
		Encryption EncryptionConfig `yaml:"encryption"`
		Keyrings   KeyringsConfig   `yaml:"keyrings"`
	}

	MetricsConfig struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	}

	EncryptionConfig struct {
		Caching CachingConfig `yaml:"caching"`
	}

	CachingConfig struct {
		MaxCache int    `yaml:"max_cache,omitempty"`
		MaxAge   string `yaml:"max_age,omitempty"`
		MaxUsage int    `yaml:"max_usage,omitempty"`
	}

	KeyringsConfig struct {
		Generator *KeyringConfig  `yaml:"generator,omitempty"`
		Children  []KeyringConfig `yaml:"children,omitempty"`
	}

	KeyringConfig struct {
		Type   string        `yaml:"type"`
		AWSKMS *AWSKMSConfig `yaml:"aws_kms,omitempty"`
		GCPKMS *GCPKMSConfig `yaml:"gcp_kms,omitempty"`
		RawAES *RawAESConfig `yaml:"raw_aes,omitempty"`
	}

	AWSKMSConfig struct {
		KeyID   string `yaml:"key_id"`
		KeySpec string `yaml:"key_spec,omitempty"`
		Region  string `yaml:"region,omitempty"`
	}

	GCPKMSConfig struct {
		KeyName string `yaml:"key_name"`
	}

	RawAESConfig struct {
		KeyName string `yaml:"key_name"`
		// Key is the base64-encoded 256-bit wrapping key
		Key string `yaml:"key,omitempty"`
		// EnvVar names an environment variable holding the base64 key
		EnvVar string `yaml:"env,omitempty"`
	}

	cliConfigProvider struct {
		ctx           *cli.Context
		configManager *ConfigManager
	}
)

func newConfigProvider(ctx *cli.Context) (ConfigProvider, error) {
	configManager, err := NewConfigManager(ctx.String(ConfigPathFlag))
	if err != nil {
		return nil, err
	}

	return &cliConfigProvider{
		ctx:           ctx,
		configManager: configManager,
	}, nil
}

func (c *cliConfigProvider) GetConfig() *Config {
	return c.configManager.GetConfig()
}

func LoadConfig(configFilePath string) (*Config, error) {
	configFile, err := os.ReadFile(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(configFile, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the keyring topology before any keyring is built
func (c *Config) Validate() error {
	if c.Keyrings.Generator == nil && len(c.Keyrings.Children) == 0 {
		return fmt.Errorf("keyrings: at least one of generator or children is required")
	}

	if c.Keyrings.Generator != nil {
		if err := c.Keyrings.Generator.validate(); err != nil {
			return fmt.Errorf("keyrings.generator: %w", err)
		}
	}

	for i, child := range c.Keyrings.Children {
		if err := child.validate(); err != nil {
			return fmt.Errorf("keyrings.children[%d]: %w", i, err)
		}
	}

	return nil
}

func (k *KeyringConfig) validate() error {
	switch k.Type {
	case KeyringTypeAWSKMS:
		if k.AWSKMS == nil || k.AWSKMS.KeyID == "" {
			return fmt.Errorf("aws_kms keyring requires a key_id")
		}
	case KeyringTypeGCPKMS:
		if k.GCPKMS == nil || k.GCPKMS.KeyName == "" {
			return fmt.Errorf("gcp_kms keyring requires a key_name")
		}
	case KeyringTypeRawAES:
		if k.RawAES == nil || k.RawAES.KeyName == "" {
			return fmt.Errorf("raw_aes keyring requires a key_name")
		}
		if k.RawAES.Key == "" && k.RawAES.EnvVar == "" {
			return fmt.Errorf("raw_aes keyring requires a key or env")
		}
	default:
		return fmt.Errorf("unsupported keyring type: %s", k.Type)
	}

	return nil
}
