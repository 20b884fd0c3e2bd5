package config

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManagerConfig = `
metrics:
  port: 9090
keyrings:
  children:
    - type: raw_aes
      raw_aes:
        key_name: "local-key"
        key: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
`

func TestNewConfigManager(t *testing.T) {
	tests := []struct {
		name       string
		configData string
		wantErr    bool
	}{
		{
			name:       "valid config file",
			configData: validManagerConfig,
			wantErr:    false,
		},
		{
			name: "invalid yaml",
			configData: `
keyrings:
  children: [
`,
			wantErr: true,
		},
		{
			name: "valid yaml failing validation",
			configData: `
keyrings: {}
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeTempConfig(t, tt.configData)

			cm, err := NewConfigManager(configPath)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, cm)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cm)
			assert.NotNil(t, cm.GetConfig())
			assert.NoError(t, cm.Close())
		})
	}
}

func TestConfigManager_Reload(t *testing.T) {
	configPath := writeTempConfig(t, validManagerConfig)

	cm, err := NewConfigManager(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cm.GetConfig().Metrics.Port)

	updated := `
metrics:
  port: 9191
keyrings:
  children:
    - type: raw_aes
      raw_aes:
        key_name: "local-key"
        key: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
`
	require.NoError(t, os.WriteFile(configPath, []byte(updated), 0600))
	require.NoError(t, cm.Reload())

	assert.Equal(t, 9191, cm.GetConfig().Metrics.Port)
}

func TestConfigManager_ReloadKeepsPreviousConfigOnFailure(t *testing.T) {
	configPath := writeTempConfig(t, validManagerConfig)

	cm, err := NewConfigManager(configPath)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(configPath, []byte("keyrings: {"), 0600))
	require.Error(t, cm.Reload())

	// The previous config remains served
	assert.Equal(t, 9090, cm.GetConfig().Metrics.Port)
}

func TestConfigManager_ConcurrentReads(t *testing.T) {
	configPath := writeTempConfig(t, validManagerConfig)

	cm, err := NewConfigManager(configPath)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cfg := cm.GetConfig()
				assert.NotNil(t, cfg)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 10; j++ {
			_ = cm.Reload()
		}
	}()

	wg.Wait()
}
