package main

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ccollins476ad/halomedals/download"
	"github.com/ccollins476ad/halomedals/stats"
)

// Env holds settings read from the environment.
type Env struct {
	Token       string        `env:"LIB_TOKEN,notEmpty"`
	APIURL      string        `env:"HALO_API_URL" envDefault:"https://halo.api.stdlib.com/infinite@0.3.7"`
	MatchType   string        `env:"HALO_MATCH_TYPE" envDefault:"pvp"`
	InsecureTLS bool          `env:"HALO_INSECURE_TLS" envDefault:"false"`
	APITimeout  time.Duration `env:"HALO_API_TIMEOUT" envDefault:"30s"`
	CORSOrigins []string      `env:"MEDALS_CORS_ORIGINS" envDefault:"http://localhost,http://localhost:3000" envSeparator:","`
}

type Config struct {
	Env

	PlayerIDs []string      // Players to process in batch mode. Empty for interactive mode.
	OutDir    string        // Directory to create player folders in.
	CacheDir  string        // Durable medal image cache directory.
	Timeout   time.Duration // Bound on a single medal image download.
	Insecure  bool          // True to skip TLS verification for the stats api.
	Serve     string        // Listen address. Non-empty selects server mode.
	Gallery   bool          // True to write an index.html per player folder.
	Verbose   bool          // True for verbose output.
	Jobs      int           // Number of players to process in parallel.
}

// StatsOptions returns the stats client settings for this configuration.
func (cfg *Config) StatsOptions() stats.Options {
	return stats.Options{
		BaseURL:            cfg.APIURL,
		Token:              cfg.Token,
		MatchType:          cfg.MatchType,
		Timeout:            cfg.APITimeout,
		InsecureSkipVerify: cfg.Insecure || cfg.InsecureTLS,
	}
}

func parseArgs(name string, args []string, output io.Writer) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { usage(fs, name) }

	verbose := fs.Bool("v", false, "verbose output")
	jobs := fs.Int("j", 1, "jobs")
	outDir := fs.String("out", ".", "directory to create player folders in")
	cacheDir := fs.String("cache", filepath.Join(".", download.DefaultCacheDir), "medal image cache directory")
	timeout := fs.Duration("timeout", download.DefaultTimeout, "medal image download timeout")
	insecure := fs.Bool("insecure", false, "skip TLS certificate verification for the stats api")
	serve := fs.String("serve", "", "serve http on the given address instead of prompting")
	gallery := fs.Bool("gallery", true, "write an index.html gallery into each player folder")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *jobs < 1 {
		return nil, fmt.Errorf("invalid job count: %d", *jobs)
	}

	cfg := &Config{
		PlayerIDs: fs.Args(),
		OutDir:    *outDir,
		CacheDir:  *cacheDir,
		Timeout:   *timeout,
		Insecure:  *insecure,
		Serve:     *serve,
		Gallery:   *gallery,
		Verbose:   *verbose,
		Jobs:      *jobs,
	}

	if err := env.Parse(&cfg.Env); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

func usage(fs *flag.FlagSet, name string) {
	fmt.Fprintf(fs.Output(), "Usage: %s [option]... [spartan_id]...\n", filepath.Base(name))
	fmt.Fprintf(fs.Output(), "Saves one image per medal earned by each Spartan. Prompts for ids if none are given.\n")
	fs.PrintDefaults()
}
