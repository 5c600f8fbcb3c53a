package config

import (
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, gocql.Quorum, cfg.ScyllaConsistency)
	assert.Equal(t, 8, cfg.DeleteConcurrency)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.UseKafka())
}

func TestLoadScyllaAndKafka(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Scylla")
	t.Setenv("SCYLLA_HOSTS", " node1, node2 ,")
	t.Setenv("SCYLLA_CONSISTENCY", "local_quorum")
	t.Setenv("SCYLLA_TIMEOUT", "2s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DELETE_CONCURRENCY", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendScylla, cfg.StoreBackend)
	assert.Equal(t, []string{"node1", "node2"}, cfg.ScyllaHosts)
	assert.Equal(t, gocql.LocalQuorum, cfg.ScyllaConsistency)
	assert.Equal(t, 2*time.Second, cfg.ScyllaTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3, cfg.DeleteConcurrency)
	assert.True(t, cfg.UseKafka())
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown backend":    {"STORE_BACKEND": "sqlite"},
		"mongo without uri":  {"STORE_BACKEND": "mongo", "MONGO_URI": ""},
		"bad consistency":    {"SCYLLA_CONSISTENCY": "most"},
		"bad shutdown":       {"SHUTDOWN_TIMEOUT": "soon"},
		"empty scylla hosts": {"STORE_BACKEND": "scylla", "SCYLLA_HOSTS": ","},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
