package config

import (
	"sync"
	"time"
)

// ConfigManager holds the loaded configuration and supports reloading it in
// place while readers keep using GetConfig
type ConfigManager struct {
	configPath   string
	config       *Config
	lastLoadTime time.Time
	mu           sync.RWMutex
}

func NewConfigManager(configPath string) (*ConfigManager, error) {
	cm := &ConfigManager{
		configPath: configPath,
	}

	if err := cm.loadConfig(); err != nil {
		return nil, err
	}

	return cm, nil
}

func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// Reload re-reads the config file; on failure the previous config is kept
func (cm *ConfigManager) Reload() error {
	return cm.loadConfig()
}

func (cm *ConfigManager) Close() error {
	return nil
}

func (cm *ConfigManager) loadConfig() error {
	cfg, err := LoadConfig(cm.configPath)
	if err != nil {
		return err
	}

	cm.mu.Lock()
	cm.config = cfg
	cm.lastLoadTime = time.Now()
	cm.mu.Unlock()

	return nil
}
