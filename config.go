package pacman

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

// Config collects every tunable of a single worker process. It is built in
// four layers, lowest precedence first: DefaultConfig(), an optional YAML
// file, an environment overlay, and finally CLI flags applied by package
// cmd. See cmd's buildConfig for the flag-to-field mapping.
type Config struct {
	UserAgent    string `yaml:"user_agent" env:"USER_AGENT"`
	HTTPProxy    string `yaml:"http_proxy" env:"HTTP_PROXY"`
	HTTPSProxy   string `yaml:"https_proxy" env:"HTTPS_PROXY"`

	MaxPages         int  `yaml:"max_pages"`
	MaxDepth         int  `yaml:"max_depth"`
	Concurrent       int  `yaml:"concurrent"`
	AllowSubdomains  bool `yaml:"allow_subdomains"`
	RespectRobots    bool `yaml:"respect_robots"`
	RecordFailures   bool `yaml:"record_failures"`

	NoIndex          bool   `yaml:"no_index"`
	ESIndex          string `yaml:"es_index"`
	ESHost           string `yaml:"es_host" env:"ES_HOST"`
	ESPort           int    `yaml:"es_port" env:"ES_PORT"`
	DeterministicIDs bool   `yaml:"deterministic_ids"`

	WorkerID string `yaml:"worker_id"`
	OutDir   string `yaml:"out_dir"`

	HTTPTimeout        string `yaml:"http_timeout"`
	MaxBodyBytes       int64  `yaml:"max_body_bytes"`
	MaxDNSCacheEntries int    `yaml:"max_dns_cache_entries"`
	DNSResolver        string `yaml:"dns_resolver" env:"DNS_RESOLVER"`

	Tiers struct {
		ConcurrentA int `yaml:"concurrent_a"`
		ConcurrentB int `yaml:"concurrent_b"`
		ConcurrentC int `yaml:"concurrent_c"`
		ConcurrentD int `yaml:"concurrent_d"`
	} `yaml:"tiers"`

	Archive struct {
		CDXEndpoint string `yaml:"cdx_endpoint"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"archive"`

	Render struct {
		Enabled bool   `yaml:"enabled"`
		Timeout string `yaml:"timeout"`
	} `yaml:"render"`

	Checkpoint struct {
		Enabled  bool     `yaml:"enabled"`
		Hosts    []string `yaml:"hosts" env:"CHECKPOINT_HOSTS" envSeparator:","`
		Keyspace string   `yaml:"keyspace"`
	} `yaml:"checkpoint"`

	Status struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"status"`
}

// DefaultConfig returns a Config populated with PACMAN's defaults,
// regardless of what a file or environment might later override.
func DefaultConfig() Config {
	var c Config
	c.UserAgent = "PACMAN/1.0 (+https://github.com/pacmancrawl/pacman)"
	c.MaxPages = 0
	c.MaxDepth = 5
	c.Concurrent = 4
	c.AllowSubdomains = true
	c.RespectRobots = true
	c.RecordFailures = true
	c.NoIndex = false
	c.ESIndex = "pacman"
	c.ESHost = "localhost"
	c.ESPort = 9200
	c.OutDir = "./out"
	c.HTTPTimeout = "30s"
	c.MaxBodyBytes = 20 * 1024 * 1024
	c.MaxDNSCacheEntries = 20000
	c.Tiers.ConcurrentA = 16
	c.Tiers.ConcurrentB = 8
	c.Tiers.ConcurrentC = 4
	c.Tiers.ConcurrentD = 2
	c.Archive.CDXEndpoint = "https://web.archive.org/cdx/search/cdx"
	c.Archive.Timeout = "20s"
	c.Render.Enabled = true
	c.Render.Timeout = "45s"
	c.Checkpoint.Enabled = false
	c.Checkpoint.Keyspace = "pacman"
	c.Status.Enabled = true
	c.Status.Port = 9600
	return c
}

// LoadConfig builds a Config by layering, in increasing precedence: the
// defaults, an optional YAML file at path (skipped if path is ""), and the
// process environment. CLI flags are applied afterward by package cmd,
// which has highest precedence of all.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, Wrap(KindConfig, err, "reading config file "+path)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, Wrap(KindConfig, err, "parsing config file "+path)
		}
	}

	if err := env.Parse(&c); err != nil {
		return nil, Wrap(KindConfig, err, "applying environment overlay")
	}

	if err := c.assertInvariants(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate re-checks the invariants LoadConfig already checked once, after
// package cmd has applied its CLI-flag overlay on top.
func (c *Config) Validate() error {
	return c.assertInvariants()
}

func (c *Config) assertInvariants() error {
	var errs []string

	if c.MaxDepth < 0 {
		errs = append(errs, "max_depth must be >= 0")
	}
	if c.Concurrent < 1 {
		errs = append(errs, "concurrent must be >= 1")
	}
	if _, err := time.ParseDuration(c.HTTPTimeout); err != nil {
		errs = append(errs, fmt.Sprintf("http_timeout failed to parse: %v", err))
	}
	if _, err := time.ParseDuration(c.Archive.Timeout); err != nil {
		errs = append(errs, fmt.Sprintf("archive.timeout failed to parse: %v", err))
	}
	if _, err := time.ParseDuration(c.Render.Timeout); err != nil {
		errs = append(errs, fmt.Sprintf("render.timeout failed to parse: %v", err))
	}
	if c.Tiers.ConcurrentA < 1 || c.Tiers.ConcurrentB < 1 || c.Tiers.ConcurrentC < 1 || c.Tiers.ConcurrentD < 1 {
		errs = append(errs, "tiers.concurrent_{a,b,c,d} must each be >= 1")
	}
	if !c.NoIndex {
		if c.ESHost == "" {
			errs = append(errs, "es_host must be set unless no_index is true")
		}
		if c.ESPort <= 0 {
			errs = append(errs, "es_port must be > 0 unless no_index is true")
		}
	}
	if c.Checkpoint.Enabled && len(c.Checkpoint.Hosts) == 0 {
		errs = append(errs, "checkpoint.hosts must be set when checkpoint.enabled is true")
	}

	if len(errs) == 0 {
		return nil
	}
	msg := ""
	for _, e := range errs {
		msg += "\t" + e + "\n"
	}
	return Wrap(KindConfig, fmt.Errorf("%d error(s)", len(errs)), "config:\n"+msg)
}

// HTTPTimeoutDuration parses HTTPTimeout, which assertInvariants has
// already validated, so the error here is never returned to a caller.
func (c *Config) HTTPTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.HTTPTimeout)
	return d
}

// ArchiveTimeoutDuration parses Archive.Timeout.
func (c *Config) ArchiveTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Archive.Timeout)
	return d
}

// RenderTimeoutDuration parses Render.Timeout.
func (c *Config) RenderTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Render.Timeout)
	return d
}
