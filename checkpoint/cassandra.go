package checkpoint

import (
	"context"

	"github.com/gocql/gocql"
	lru "github.com/hashicorp/golang-lru"

	"github.com/pacmancrawl/pacman"
)

// cacheSize bounds the in-memory LRU that absorbs repeat Seen checks for a
// URL within the same pipeline run, the same role the teacher's
// domainCache played for hasDomain.
const cacheSize = 100000

// CassandraStore persists the (domain, url) "already fetched" fact in
// Cassandra, generalizing the teacher's domain-claim/link-graph tables
// (cassandra/datastore.go's ClaimNewHost/UnclaimHost/domainCache) down to
// the single fact a resumable crawl needs to remember across restarts.
type CassandraStore struct {
	session *gocql.Session
	cache   *lru.Cache
}

// NewCassandraStore opens a session against hosts in keyspace. The caller
// is responsible for having created the keyspace and its fetched_urls
// table out of band (schema migrations are not this package's concern, the
// same division the teacher's cassandra package draws).
func NewCassandraStore(hosts []string, keyspace string) (*CassandraStore, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, pacman.Wrap(pacman.KindConfig, err, "connecting to cassandra checkpoint store")
	}

	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, pacman.Wrap(pacman.KindInternal, err, "building checkpoint lru cache")
	}

	return &CassandraStore{session: session, cache: cache}, nil
}

// Seen reports whether (domain, url) has already been fetched, checking the
// in-memory cache before falling back to a Cassandra read.
func (s *CassandraStore) Seen(ctx context.Context, domain, url string) (bool, error) {
	key := domain + "\x00" + url
	if v, ok := s.cache.Get(key); ok {
		return v.(bool), nil
	}

	var count int
	q := s.session.Query(
		`SELECT COUNT(*) FROM fetched_urls WHERE domain = ? AND url = ?`,
		domain, url,
	).WithContext(ctx)
	if err := q.Scan(&count); err != nil {
		return false, pacman.Wrap(pacman.KindTransient, err, "checking checkpoint for "+url)
	}

	seen := count > 0
	s.cache.Add(key, seen)
	return seen, nil
}

// MarkSeen records (domain, url) as fetched, both in Cassandra and the
// local cache.
func (s *CassandraStore) MarkSeen(ctx context.Context, domain, url string) error {
	key := domain + "\x00" + url
	q := s.session.Query(
		`INSERT INTO fetched_urls (domain, url) VALUES (?, ?)`,
		domain, url,
	).WithContext(ctx)
	if err := q.Exec(); err != nil {
		return pacman.Wrap(pacman.KindTransient, err, "recording checkpoint for "+url)
	}
	s.cache.Add(key, true)
	return nil
}

// Close shuts down the Cassandra session.
func (s *CassandraStore) Close() error {
	s.session.Close()
	return nil
}

var _ Store = (*CassandraStore)(nil)
