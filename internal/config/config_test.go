package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigMergesDefaults 验证YAML中未出现的字段保留默认值
func TestLoadConfigMergesDefaults(t *testing.T) {
	yamlContent := `
parser:
  order: ["superjob", "hh"]
  selectors_file: "/etc/resume/selectors.yaml"
processing:
  document_timeout: "30s"
rabbitmq:
  url: "amqp://guest:guest@mq:5672/"
  prefetch_count: 5
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644), "无法写入临时配置文件")

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, []string{"superjob", "hh"}, config.Parser.Order)
	assert.Equal(t, "/etc/resume/selectors.yaml", config.Parser.SelectorsFile)
	assert.Equal(t, `\\'[0-9a-fA-F]([^0-9a-fA-F]|$)`, config.Parser.RTFArtifactPattern, "未配置时应保留默认正则")
	assert.Equal(t, "30s", config.Processing.DocumentTimeout)
	assert.Equal(t, 5, config.RabbitMQ.PrefetchCount)
	assert.Equal(t, "q.raw_resume_uploaded", config.RabbitMQ.RawResumeQueue)
	assert.Equal(t, ":8080", config.Server.Address)
	assert.Equal(t, "http://localhost:9998", config.Tika.ServerURL)
	assert.Equal(t, 600, config.Tika.MaxQPM)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  api_keys: [\"from-file\"]\n"), 0644))

	t.Setenv("RESUME_INGEST_API_KEYS", " k1, ,k2 ")
	t.Setenv("TIKA_SERVER_URL", "http://tika:9998")
	t.Setenv("MYSQL_PASSWORD", "s3cret")

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, config.Server.APIKeys)
	assert.Equal(t, "http://tika:9998", config.Tika.ServerURL)
	assert.Equal(t, "s3cret", config.MySQL.Password)
}

func TestLoadConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := LoadConfig(filepath.Join(tmpDir, "missing.yaml"))
	assert.Error(t, err)

	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("parser: [unclosed\n"), 0644))
	_, err = LoadConfig(configPath)
	assert.Error(t, err)
}

func TestCreateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, CreateSampleConfig(path))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, createDefaultConfig().Parser.Order, config.Parser.Order)

	assert.Error(t, CreateSampleConfig(path), "已存在的文件不应被覆盖")
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, GetDuration("30s", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("soon", time.Minute))
}

func TestMySQLDSN(t *testing.T) {
	cfg := MySQLConfig{Host: "db", Port: 3306, Username: "u", Password: "p", Database: "resume_ingest", ConnectTimeoutSeconds: 5}
	assert.Equal(t, "u:p@tcp(db:3306)/resume_ingest?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s", cfg.DSN())
}
