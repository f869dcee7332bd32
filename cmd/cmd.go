// Package cmd wires the Partitioner, Worker Scheduler, Domain Pipeline,
// Extractor, and Sink into the single-binary CLI entry point: one process,
// one seed file, one worker identity.
//
// The default binary is just:
//
//	func main() {
//		cmd.Execute()
//	}
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pacmancrawl/pacman"
	"github.com/pacmancrawl/pacman/checkpoint"
	"github.com/pacmancrawl/pacman/extractor"
	"github.com/pacmancrawl/pacman/partition"
	"github.com/pacmancrawl/pacman/pipeline"
	"github.com/pacmancrawl/pacman/scheduler"
	"github.com/pacmancrawl/pacman/sink"
	"github.com/pacmancrawl/pacman/status"
)

// CommanderStreams holds the i/o functions the test harness can spoof:
// there's no good way to intercept os.Exit other than indirecting through
// a struct field like this one.
type CommanderStreams struct {
	Printf func(format string, args ...interface{})
	Errorf func(format string, args ...interface{})
	Exit   func(status int)
}

// Streams installs cstream as the global CommanderStreams, returning the
// previous value so a test can restore it.
func Streams(cstream CommanderStreams) CommanderStreams {
	old := streams
	streams = cstream
	return old
}

// Execute runs the command specified by the process's command line.
func Execute() {
	if err := rootCommand.Execute(); err != nil {
		streams.Errorf("%v\n", err)
		streams.Exit(1)
	}
}

var rootCommand = &cobra.Command{
	Use:   "pacman <seed-file>",
	Short: "archive-backed web crawler and entity-extraction worker",
	Args:  cobra.ExactArgs(1),
	Run:   runCrawl,
}

var streams = defaultStreams()

func defaultStreams() CommanderStreams {
	return CommanderStreams{
		Printf: func(format string, args ...interface{}) { fmt.Printf(format, args...) },
		Errorf: func(format string, args ...interface{}) { fmt.Fprintf(os.Stderr, format, args...) },
		Exit:   os.Exit,
	}
}

func init() {
	registerFlags(rootCommand.Flags())
}

// registerFlags defines the CLI surface's flag set, shared between
// rootCommand and any test that wants its own isolated FlagSet.
func registerFlags(f *pflag.FlagSet) {
	f.String("config", "", "path to a YAML config file to load")
	f.Int("max-pages", 50, "per-domain page budget")
	f.Int("max-depth", 2, "per-domain link-follow depth")
	f.Int("concurrent", 20, "concurrent domain pipelines per worker")
	f.Bool("no-index", false, "force File-mode sink")
	f.String("es-index", "submarine-scrapes", "target index name in Index mode")
	f.String("es-host", "localhost", "search-cluster host")
	f.Int("es-port", 9200, "search-cluster port")
	f.Bool("allow-subdomains", false, "follow links to sibling subdomains of the seed's registrable domain")
	f.Bool("respect-robots", true, "honor robots.txt")
	f.Int("worker-id", 0, "numeric identifier used in output file naming")
}

func runCrawl(cmd *cobra.Command, args []string) {
	seedPath := args[0]

	cfg, err := buildConfig(cmd.Flags())
	if err != nil {
		streams.Errorf("configuration error: %v\n", err)
		streams.Exit(exitCodeFor(err))
		return
	}

	runID := uuid.New().String()
	logger := zerolog.New(os.Stderr).With().
		Timestamp().Str("run_id", runID).Str("worker_id", cfg.WorkerID).Logger()

	fs := afero.NewOsFs()
	chunkDir := cfg.OutDir + "/chunks"
	chunks, err := partition.Split(fs, seedPath, chunkDir, 1)
	if err != nil {
		streams.Errorf("reading seed file: %v\n", err)
		streams.Exit(exitCodeFor(err))
		return
	}

	seeds, err := loadChunk(fs, chunks[0])
	if err != nil {
		streams.Errorf("reading seed chunk: %v\n", err)
		streams.Exit(exitCodeFor(err))
		return
	}

	runner, closers, err := buildRunner(cfg, logger)
	if err != nil {
		streams.Errorf("startup error: %v\n", err)
		streams.Exit(exitCodeFor(err))
		return
	}
	var statusSrv *status.Server
	if cfg.Status.Enabled {
		statusSrv = status.NewServer(cfg.WorkerID)
		go serveStatus(statusSrv, cfg.Status.Port, logger)
		statusSrv.MarkHealthy()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info().Msg("received shutdown signal, draining in-flight pipelines")
		cancel()
	}()

	i := 0
	next := func() (pacman.Seed, bool) {
		if i >= len(seeds) {
			return pacman.Seed{}, false
		}
		s := seeds[i]
		i++
		return s, true
	}

	runErr := scheduler.Run(ctx, next, runner, scheduler.Options{
		K:                      cfg.Concurrent,
		InternalErrorThreshold: 10,
		WindowSize:             5 * time.Minute,
		Logger:                 logger,
	})
	// streams.Exit is os.Exit in production, which skips deferred calls,
	// so the sinks are closed (and flushed) explicitly before exiting.
	closeAll(closers, logger)
	if runErr != nil {
		streams.Errorf("crawl stopped: %v\n", runErr)
		streams.Exit(exitCodeFor(runErr))
		return
	}
	streams.Exit(0)
}

// buildConfig layers flags over LoadConfig's file/environment result, per
// the precedence config.go documents: CLI flags are highest-precedence, so
// every flag this command defines applies unconditionally, not only when
// explicitly passed — a config file or environment variable can still set
// fields the CLI surface doesn't expose (HTTPProxy, Archive.Timeout, and
// so on), but the eleven flags in the spec's CLI table always win here.
func buildConfig(f *pflag.FlagSet) (*pacman.Config, error) {
	configPath, _ := f.GetString("config")
	cfg, err := pacman.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, _ = f.GetInt("max-pages")
	cfg.MaxDepth, _ = f.GetInt("max-depth")
	cfg.Concurrent, _ = f.GetInt("concurrent")
	cfg.NoIndex, _ = f.GetBool("no-index")
	cfg.ESIndex, _ = f.GetString("es-index")
	cfg.ESHost, _ = f.GetString("es-host")
	cfg.ESPort, _ = f.GetInt("es-port")
	cfg.AllowSubdomains, _ = f.GetBool("allow-subdomains")
	cfg.RespectRobots, _ = f.GetBool("respect-robots")

	workerID, _ := f.GetInt("worker-id")
	cfg.WorkerID = strconv.Itoa(workerID)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadChunk(fs afero.Fs, path string) ([]pacman.Seed, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, pacman.Wrap(pacman.KindConfig, pacman.ErrSeedFileMissing, path)
	}
	defer f.Close()

	var seeds []pacman.Seed
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		seeds = append(seeds, pacman.Seed{URL: line})
	}
	if err := sc.Err(); err != nil {
		return nil, pacman.Wrap(pacman.KindConfig, err, "scanning seed chunk "+path)
	}
	return seeds, nil
}

// exitCodeFor maps an error to the process exit code the CLI surface
// promises: 2 for a missing or unreadable seed file, 3 for any other
// configuration error, 4 for a sink that's exhausted its fallback, and a
// distinct nonzero code for the scheduler's internal-error threshold. Any
// other failure exits 1.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(err, pacman.ErrSeedFileMissing):
		return 2
	case errors.Is(err, pacman.ErrSinkUnavailable):
		return 4
	case errors.Is(err, pacman.ErrInternalErrorThreshold):
		return 5
	}
	var e *pacman.Error
	if errors.As(err, &e) && e.Kind == pacman.KindConfig {
		return 3
	}
	return 1
}

func serveStatus(s *status.Server, port int, logger zerolog.Logger) {
	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("status server listening")
	if err := http.ListenAndServe(addr, s.Handler()); err != nil {
		logger.Error().Err(err).Msg("status server stopped")
	}
}

func closeAll(closers []func() error, logger zerolog.Logger) {
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Warn().Err(err).Msg("error closing resource during shutdown")
		}
	}
}

// buildRunner constructs a pipeline.Runner wired per cfg, along with the
// close functions its sink, tiers, and checkpoint store need on shutdown.
func buildRunner(cfg *pacman.Config, logger zerolog.Logger) (*pipeline.Runner, []func() error, error) {
	client, err := scheduler.NewSharedHTTPClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	var robots *pipeline.RobotsChecker
	if cfg.RespectRobots {
		robots = pipeline.NewRobotsChecker(client)
	}
	tierA := pipeline.NewTierA(client, robots)
	tierB := pipeline.NewLimitedTier(
		pipeline.NewTierB(client, cfg.Archive.CDXEndpoint, cfg.ArchiveTimeoutDuration()), cfg.Tiers.ConcurrentB)
	tierC := pipeline.NewLimitedTier(
		pipeline.NewTierC(client, cfg.ArchiveTimeoutDuration()), cfg.Tiers.ConcurrentC)

	tiers := []pipeline.FetchTier{tierA, tierB, tierC}
	var closers []func() error
	if cfg.Render.Enabled {
		tierD := pipeline.NewTierD(cfg.RenderTimeoutDuration())
		tiers = append(tiers, pipeline.NewLimitedTier(tierD, cfg.Tiers.ConcurrentD))
		closers = append(closers, tierD.Close)
	}

	fs := afero.NewOsFs()
	fileSink, err := sink.NewFile(fs, cfg.OutDir, "worker_"+cfg.WorkerID)
	if err != nil {
		return nil, closers, pacman.Wrap(pacman.KindConfig, err, "constructing file sink")
	}
	closers = append(closers, fileSink.Close)

	var s pipeline.Sink = fileSink
	if !cfg.NoIndex {
		idx, err := sink.NewIndex(cfg.ESHost, cfg.ESPort, cfg.ESIndex, cfg.DeterministicIDs, fileSink, logger)
		if err != nil {
			return nil, closers, pacman.Wrap(pacman.KindConfig, err, "constructing index sink")
		}
		q := sink.NewQueue(idx)
		closers = append(closers, q.Close)
		s = q
	}

	var store pipeline.Checkpoint = checkpoint.NullStore{}
	if cfg.Checkpoint.Enabled {
		cs, err := checkpoint.NewCassandraStore(cfg.Checkpoint.Hosts, cfg.Checkpoint.Keyspace)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, cs.Close)
		store = cs
	}

	maxSecondary := 0
	if cfg.MaxPages > 0 {
		maxSecondary = cfg.MaxPages * 10
	}

	runner := &pipeline.Runner{
		Tiers:           tiers,
		Extractor:       extractor.New(),
		Sink:            s,
		Checkpoint:      store,
		UserAgent:       cfg.UserAgent,
		MaxDepth:        cfg.MaxDepth,
		MaxPages:        cfg.MaxPages,
		MaxSecondary:    maxSecondary,
		AllowSubdomains: cfg.AllowSubdomains,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		RecordFailures:  cfg.RecordFailures,
	}
	return runner, closers, nil
}
