package sink

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/rs/zerolog"

	"github.com/pacmancrawl/pacman"
)

// indexChunkSize sizes the Queue placed in front of the Index sink
// (queueFactor × indexChunkSize documents). The bulk indexer itself does
// not flush by document count: it flushes at 5 MiB of buffered data or
// every 5 seconds, whichever comes first.
const indexChunkSize = 500

// indexMaxFailures is the number of consecutive bulk failures (a failed
// flush or a failed item) that trip the Index sink's fallback to File
// mode; any successfully indexed item resets the count. Failed items are
// not retried and are not re-written to the fallback.
const indexMaxFailures = 5

// Index is the Elasticsearch/OpenSearch bulk sink: documents are buffered
// by esutil.BulkIndexer and flushed by size or interval. By default
// each bulk item's DocumentID is left unset, so Elasticsearch assigns one;
// when deterministicIDs is set, the ID is instead sha256 of the normalized
// URL, so re-indexing the same page after a retry or a resumed crawl
// overwrites rather than duplicates.
type Index struct {
	indexer esutil.BulkIndexer
	logger  zerolog.Logger

	deterministicIDs bool

	failures int32

	fallback Sink // File sink to switch writes to once failures trip the threshold
	mu       sync.Mutex
	tripped  bool
}

// NewIndex builds an Index sink against the Elasticsearch/OpenSearch
// cluster at host:port, writing into indexName, with fallback receiving
// writes once indexMaxFailures consecutive flush failures occur.
// deterministicIDs enables sha256(url) document IDs for idempotent
// reindexing; left false, Elasticsearch assigns each document its own ID.
func NewIndex(host string, port int, indexName string, deterministicIDs bool, fallback Sink, logger zerolog.Logger) (*Index, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{fmt.Sprintf("http://%s:%d", host, port)},
	})
	if err != nil {
		return nil, pacman.Wrap(pacman.KindConfig, err, "building elasticsearch client")
	}

	s := &Index{logger: logger, fallback: fallback, deterministicIDs: deterministicIDs}

	indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         indexName,
		Client:        client,
		NumWorkers:    2,
		FlushBytes:    5 * 1024 * 1024,
		FlushInterval: 5 * time.Second,
		OnError: func(ctx context.Context, err error) {
			s.logger.Error().Err(err).Msg("bulk indexer flush failed")
			s.recordFailure()
		},
	})
	if err != nil {
		return nil, pacman.Wrap(pacman.KindConfig, err, "building bulk indexer")
	}
	s.indexer = indexer
	return s, nil
}

// Write enqueues page for the next bulk flush, unless the sink has already
// tripped to File-mode fallback, in which case it delegates to fallback
// directly.
func (s *Index) Write(ctx context.Context, page *pacman.Page) error {
	if s.isTripped() {
		return s.fallback.Write(ctx, page)
	}

	data, err := json.Marshal(page)
	if err != nil {
		return pacman.Wrap(pacman.KindInternal, err, "marshaling page "+page.URL)
	}

	item := esutil.BulkIndexerItem{
		Action: "index",
		Body:   bytes.NewReader(data),
		OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			s.logger.Warn().Str("url", page.URL).Err(err).Int("status", res.Status).Msg("bulk index item failed")
			s.recordFailure()
		},
		OnSuccess: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem) {
			atomic.StoreInt32(&s.failures, 0)
		},
	}
	if s.deterministicIDs {
		item.DocumentID = documentID(page.URL)
	}
	if err := s.indexer.Add(ctx, item); err != nil {
		return pacman.Wrap(pacman.KindTransient, pacman.ErrSinkUnavailable, err.Error())
	}
	return nil
}

// Close flushes any pending bulk items.
func (s *Index) Close() error {
	if err := s.indexer.Close(context.Background()); err != nil {
		return pacman.Wrap(pacman.KindTransient, pacman.ErrSinkUnavailable, err.Error())
	}
	return nil
}

func (s *Index) recordFailure() {
	if atomic.AddInt32(&s.failures, 1) < indexMaxFailures {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tripped {
		s.logger.Error().Msg("index sink exceeded failure threshold, falling back to file sink")
		s.tripped = true
	}
}

func (s *Index) isTripped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tripped
}

// documentID derives a deterministic Elasticsearch document ID from a
// page's normalized URL, so repeated indexing of the same page (a retry, a
// resumed crawl) is idempotent rather than duplicative.
func documentID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
