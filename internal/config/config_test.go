package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/roadmap-service/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8020", cfg.ServerAddr)
	assert.Equal(t, "roadmap_db", cfg.MongoDB.Database)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Engine.AvailabilityTimeout)
	assert.Equal(t, []string{"admin", "manager"}, cfg.Engine.ElevatedRoles)
	assert.Equal(t, domain.DefaultPriorityBands(), cfg.Engine.PriorityBands)
	assert.Empty(t, cfg.Engine.AttendanceServiceURL)
	assert.True(t, cfg.Engine.SeedTemplates)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_ADDR", ":9000")
	t.Setenv("MONGODB_URI", "mongodb://mongo:27017")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("TRACING_ENABLED", "false")
	t.Setenv("ATTENDANCE_SERVICE_URL", "http://attendance:8080")
	t.Setenv("AVAILABILITY_TIMEOUT", "750ms")
	t.Setenv("ELEVATED_ROLES", "lead")
	t.Setenv("PRIORITY_BANDS", "1,3,5")
	t.Setenv("MAX_TASKS_PER_RUN", "900")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ServerAddr)
	assert.Equal(t, "mongodb://mongo:27017", cfg.MongoDB.URI)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "http://attendance:8080", cfg.Engine.AttendanceServiceURL)
	assert.Equal(t, 750*time.Millisecond, cfg.Engine.AvailabilityTimeout)
	assert.Equal(t, []string{"lead"}, cfg.Engine.ElevatedRoles)
	assert.Equal(t, domain.PriorityBands{CriticalMax: 1, HighMax: 3, MediumMax: 5}, cfg.Engine.PriorityBands)
	assert.Equal(t, 900, cfg.Engine.MaxTasksPerRun)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roadmap.yaml"), []byte(`
server:
  addr: ":7000"
kafka:
  brokers: [a:9092, b:9092]
template:
  catalog: /etc/catalog.yaml
`), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ServerAddr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "/etc/catalog.yaml", cfg.Engine.TemplateCatalog)

	t.Setenv("SERVER_ADDR", ":7100")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7100", cfg.ServerAddr, "environment overrides the file")
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("PRIORITY_BANDS", "4,2,0")
	_, err := Load("")
	assert.ErrorContains(t, err, "PRIORITY_BANDS")

	t.Setenv("PRIORITY_BANDS", "0,2,4")
	t.Setenv("AVAILABILITY_TIMEOUT", "0s")
	_, err = Load("")
	assert.ErrorContains(t, err, "AVAILABILITY_TIMEOUT")

	t.Setenv("AVAILABILITY_TIMEOUT", "2s")
	t.Setenv("MAX_TASKS_PER_RUN", "0")
	_, err = Load("")
	assert.ErrorContains(t, err, "MAX_TASKS_PER_RUN")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
