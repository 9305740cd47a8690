package cfg

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Server configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://news.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Upstream content API
	CMSURL     string `long:"cms-url" env:"CMS_URL" default:"http://localhost:8000/wp-json/wp/v2" description:"Base URL of the CMS REST API"`
	CMSTimeout int    `long:"cms-timeout" env:"CMS_TIMEOUT" default:"10" description:"Timeout in seconds for a single CMS request"`
	UserAgent  string `long:"user-agent" env:"USER_AGENT" default:"TagFeed/1.0" description:"User agent string for HTTP requests"`

	// Feed configuration
	PageSize        int    `long:"page-size" env:"PAGE_SIZE" default:"10" description:"Number of articles per feed page"`
	OverfetchFactor int    `long:"overfetch-factor" env:"OVERFETCH_FACTOR" default:"3" description:"Per-tag batch size multiplier for multi-tag feeds"`
	AliasesFile     string `long:"aliases-file" env:"ALIASES_FILE" default:"./aliases.yml" description:"YAML file with canonical entity slug aliases"`

	// Resolution log
	DBPath              string `long:"db-path" env:"DB_PATH" default:"./tagfeed.db" description:"SQLite database file for the entity resolution log"`
	WorkerCount         int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SchedulerInterval   int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"3600" description:"Scheduler interval in seconds"`
	ResolutionRetention int    `long:"resolution-retention" env:"RESOLUTION_RETENTION" default:"720" description:"Hours to keep entity resolution records"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Port:                raw.Port,
		BaseUrl:             strings.TrimRight(raw.BaseUrl, "/"),
		APIAccessKey:        raw.APIAccessKey,
		CMSURL:              strings.TrimRight(raw.CMSURL, "/"),
		CMSTimeout:          raw.CMSTimeout,
		UserAgent:           raw.UserAgent,
		PageSize:            raw.PageSize,
		OverfetchFactor:     raw.OverfetchFactor,
		AliasesFile:         raw.AliasesFile,
		DBPath:              raw.DBPath,
		WorkerCount:         raw.WorkerCount,
		SchedulerInterval:   raw.SchedulerInterval,
		ResolutionRetention: raw.ResolutionRetention,
		Timezone:            raw.Timezone,
		Debug:               raw.Debug,
		Version:             GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	if cfg.CMSURL == "" {
		return fmt.Errorf("CMS URL is required")
	}

	positiveFields := map[string]int{
		"page size":          cfg.PageSize,
		"overfetch factor":   cfg.OverfetchFactor,
		"cms timeout":        cfg.CMSTimeout,
		"worker count":       cfg.WorkerCount,
		"scheduler interval": cfg.SchedulerInterval,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	if cfg.PageSize > 100 {
		return fmt.Errorf("page size must not exceed 100")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
