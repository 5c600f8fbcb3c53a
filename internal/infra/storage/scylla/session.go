package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/gocql/gocql"

	"direct-messaging/internal/infra/config"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// NewSession ensures schema exists and returns a connected Scylla session.
func NewSession(cfg config.Config, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(cfg.ScyllaKeyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", cfg.ScyllaKeyspace)
	}

	baseCluster := gocql.NewCluster(cfg.ScyllaHosts...)
	baseCluster.Timeout = cfg.ScyllaTimeout
	baseCluster.Consistency = cfg.ScyllaConsistency
	setAuth(baseCluster, cfg)

	baseSession, err := baseCluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()

	if err := ensureKeyspace(context.Background(), baseSession, cfg); err != nil {
		return nil, err
	}

	cluster := gocql.NewCluster(cfg.ScyllaHosts...)
	cluster.Timeout = cfg.ScyllaTimeout
	cluster.Keyspace = cfg.ScyllaKeyspace
	cluster.Consistency = cfg.ScyllaConsistency
	setAuth(cluster, cfg)

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.ScyllaKeyspace, err)
	}
	if err := ensureTables(context.Background(), session, cfg.ScyllaKeyspace); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.ScyllaHosts, "keyspace", cfg.ScyllaKeyspace)
	}
	return session, nil
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, cfg config.Config) error {
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.ScyllaKeyspace, cfg.ReplicationFactor,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

// messageColumns is shared by every message table so rows scan the same way.
const messageColumns = `
	message_id text,
	text text,
	created_at timestamp,
	conversation_key text,
	participants list<text>,
	sender_id text,
	recipient_id text,
	sender_display_name text,
	sender_photo_url text,
	status text`

func schema(keyspace string) map[string]string {
	return map[string]string{
		"messages_by_id": fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.messages_by_id (%s,
	PRIMARY KEY (message_id)
);`, keyspace, messageColumns),
		"messages_by_conversation": fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.messages_by_conversation (%s,
	PRIMARY KEY ((conversation_key), created_at, message_id)
) WITH CLUSTERING ORDER BY (created_at ASC, message_id ASC);`, keyspace, messageColumns),
		// one row per participant so the conversation list reads a single partition
		"messages_by_participant": fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.messages_by_participant (
	participant_id text,%s,
	PRIMARY KEY ((participant_id), created_at, message_id)
) WITH CLUSTERING ORDER BY (created_at DESC, message_id DESC);`, keyspace, messageColumns),
	}
}

func ensureTables(ctx context.Context, session *gocql.Session, keyspace string) error {
	for _, name := range []string{"messages_by_id", "messages_by_conversation", "messages_by_participant"} {
		if err := session.Query(schema(keyspace)[name]).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("create %s table: %w", name, err)
		}
	}
	return nil
}

func setAuth(cluster *gocql.ClusterConfig, cfg config.Config) {
	if cfg.ScyllaUsername == "" {
		return
	}
	cluster.Authenticator = gocql.PasswordAuthenticator{
		Username: cfg.ScyllaUsername,
		Password: cfg.ScyllaPassword,
	}
	// avoid long stalls on auth/connect
	cluster.ConnectTimeout = cfg.ScyllaTimeout
	cluster.Timeout = cfg.ScyllaTimeout
}
