package db

import (
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
)

const defaultTimeout = 5 * time.Second

// ClusterConfig selects the cluster, keyspace and request defaults for a
// session. Zero values fall back to QUORUM and a five second timeout.
type ClusterConfig struct {
	Hosts       []string
	Keyspace    string
	Consistency string
	Timeout     time.Duration
}

func (c ClusterConfig) consistency() (gocql.Consistency, error) {
	if c.Consistency == "" {
		return gocql.Quorum, nil
	}
	cl, err := gocql.ParseConsistencyWrapper(c.Consistency)
	if err != nil {
		return 0, errors.Wrapf(err, "scylla consistency %q", c.Consistency)
	}
	return cl, nil
}

type Session struct {
	*gocql.Session
}

// NewSession connects to cfg.Keyspace.
func NewSession(cfg ClusterConfig) (*Session, error) {
	cl, err := cfg.consistency()
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = cl
	cluster.Timeout = timeout
	cluster.ConnectTimeout = timeout

	// LWT reads and writes need serial consistency within one datacenter.
	cluster.SerialConsistency = gocql.LocalSerial
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        1 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to scylla keyspace %q", cfg.Keyspace)
	}
	return &Session{Session: session}, nil
}
