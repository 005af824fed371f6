// Configuration tests for rxcore
package rxcore

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Run("默认值", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Equal(t, runtime.NumCPU(), cfg.ComputationWorkers)
		assert.Equal(t, 0, cfg.IOMaxGoroutines)
		assert.Equal(t, "warn", cfg.Log.Level)
		assert.Equal(t, LogFormatJSON, cfg.Log.Format)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("校验失败", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.IOMaxGoroutines = -1
		assert.Error(t, cfg.Validate())

		cfg = DefaultConfig()
		cfg.Log.Format = "xml"
		assert.Error(t, cfg.Validate())
	})

	t.Run("从YAML文件加载", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rxcore.yaml")
		content := "computation_workers: 3\nio_max_goroutines: 64\nlog:\n  level: debug\n  format: console\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := LoadConfig(WithConfigFile(path))
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.ComputationWorkers)
		assert.Equal(t, 64, cfg.IOMaxGoroutines)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, LogFormatConsole, cfg.Log.Format)
	})

	t.Run("环境变量优先于文件", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rxcore.yaml")
		require.NoError(t, os.WriteFile(path, []byte("computation_workers: 3\n"), 0o600))
		t.Setenv("RXCORE_COMPUTATION_WORKERS", "5")
		t.Setenv("RXCORE_LOG_LEVEL", "error")

		cfg, err := LoadConfig(WithConfigFile(path))
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.ComputationWorkers)
		assert.Equal(t, "error", cfg.Log.Level)
	})

	t.Run("从env文件加载", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("RXTEST_IO_MAX_GOROUTINES=8\n"), 0o600))
		t.Cleanup(func() { os.Unsetenv("RXTEST_IO_MAX_GOROUTINES") })

		cfg, err := LoadConfig(WithEnvFile(path), WithEnvPrefix("RXTEST"))
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.IOMaxGoroutines)
	})

	t.Run("非法值返回错误", func(t *testing.T) {
		t.Setenv("RXCORE_LOG_FORMAT", "xml")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("配置文件不存在", func(t *testing.T) {
		_, err := LoadConfig(WithConfigFile(filepath.Join(t.TempDir(), "missing.yaml")))
		assert.Error(t, err)
	})
}
