// Package config loads and hot-reloads .eluent/config.yaml, spec.md §6's
// recognised option set, backed by viper with ELUENT_-prefixed environment
// overrides (teacher convention: BD_/BEADS_ prefixed env vars, cmd/bd's
// viper.New() usage in internal/labelmutex/policy.go and cmd/bd/config.go).
package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/eluent/eluent/internal/types"
)

// FileName is config.yaml's name within a .eluent directory (spec.md §6).
const FileName = "config.yaml"

var repoNameRe = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

// Config is the fully-defaulted, validated view of config.yaml.
type Config struct {
	RepoName string

	DefaultPriority  int
	DefaultIssueType types.IssueType

	EphemeralCleanupDays int

	CompactionTier1Days int
	CompactionTier2Days int

	SyncLedgerBranch       string
	SyncAutoClaimPush      bool
	SyncClaimRetries       int
	SyncClaimTimeoutHours  *int // nil disables stale-claim auto-release
	SyncOfflineMode        string
	SyncNetworkTimeout     time.Duration
	SyncGlobalPathOverride string
}

// defaults mirrors spec.md §6's implied defaults for options a bare
// config.yaml doesn't set.
func defaults() Config {
	return Config{
		DefaultPriority:      2,
		DefaultIssueType:     types.TypeTask,
		EphemeralCleanupDays: 30,
		CompactionTier1Days:  30,
		CompactionTier2Days:  180,
		SyncLedgerBranch:     "eluent-ledger",
		SyncAutoClaimPush:    true,
		SyncClaimRetries:     5,
		SyncOfflineMode:      "fail",
		SyncNetworkTimeout:   30 * time.Second,
	}
}

// Loader owns a viper instance bound to one .eluent/config.yaml, exposing
// the validated Config plus fsnotify-driven hot reload for long-running
// callers (the daemon-equivalent surface; spec.md's repo_name and sync
// options must be re-read without a restart).
type Loader struct {
	v *viper.Viper

	mu  sync.RWMutex
	cur Config

	watcher *fsnotify.Watcher
}

// Load reads eluentDir/config.yaml (creating no file if absent — every key
// simply takes its default) with ELUENT_-prefixed environment overrides,
// and validates the result.
func Load(eluentDir string) (*Loader, error) {
	v := viper.New()
	applyDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(eluentDir)
	v.SetEnvPrefix("ELUENT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read %s: %w", filepath.Join(eluentDir, FileName), err)
		}
	}

	cfg, err := build(v)
	if err != nil {
		return nil, err
	}

	l := &Loader{v: v, cur: cfg}
	return l, nil
}

func applyDefaults(v *viper.Viper) {
	d := defaults()
	v.SetDefault("repo_name", "")
	v.SetDefault("defaults.priority", d.DefaultPriority)
	v.SetDefault("defaults.issue_type", string(d.DefaultIssueType))
	v.SetDefault("ephemeral.cleanup_days", d.EphemeralCleanupDays)
	v.SetDefault("compaction.tier1_days", d.CompactionTier1Days)
	v.SetDefault("compaction.tier2_days", d.CompactionTier2Days)
	v.SetDefault("sync.ledger_branch", d.SyncLedgerBranch)
	v.SetDefault("sync.auto_claim_push", d.SyncAutoClaimPush)
	v.SetDefault("sync.claim_retries", d.SyncClaimRetries)
	v.SetDefault("sync.offline_mode", d.SyncOfflineMode)
	v.SetDefault("sync.network_timeout", int(d.SyncNetworkTimeout/time.Second))
	v.SetDefault("sync.global_path_override", "")
}

// build reads every key out of v and validates it per spec.md §6's ranges.
func build(v *viper.Viper) (Config, error) {
	cfg := Config{
		RepoName:               v.GetString("repo_name"),
		DefaultPriority:        v.GetInt("defaults.priority"),
		DefaultIssueType:       types.IssueType(v.GetString("defaults.issue_type")),
		EphemeralCleanupDays:   v.GetInt("ephemeral.cleanup_days"),
		CompactionTier1Days:    v.GetInt("compaction.tier1_days"),
		CompactionTier2Days:    v.GetInt("compaction.tier2_days"),
		SyncLedgerBranch:       v.GetString("sync.ledger_branch"),
		SyncAutoClaimPush:      v.GetBool("sync.auto_claim_push"),
		SyncClaimRetries:       v.GetInt("sync.claim_retries"),
		SyncOfflineMode:        v.GetString("sync.offline_mode"),
		SyncNetworkTimeout:     time.Duration(v.GetInt("sync.network_timeout")) * time.Second,
		SyncGlobalPathOverride: v.GetString("sync.global_path_override"),
	}
	if v.IsSet("sync.claim_timeout_hours") {
		h := v.GetInt("sync.claim_timeout_hours")
		cfg.SyncClaimTimeoutHours = &h
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.RepoName != "" && !repoNameRe.MatchString(cfg.RepoName) {
		return types.NewConfigError("repo_name", "must match ^[a-z][a-z0-9_-]{0,31}$")
	}
	if cfg.DefaultPriority < types.MinPriority || cfg.DefaultPriority > types.MaxPriority {
		return types.NewConfigError("defaults.priority", "must be 0..4")
	}
	if !cfg.DefaultIssueType.Valid() {
		return types.NewConfigError("defaults.issue_type", "not a recognised issue type")
	}
	if cfg.EphemeralCleanupDays < 1 || cfg.EphemeralCleanupDays > 365 {
		return types.NewConfigError("ephemeral.cleanup_days", "must be 1..365")
	}
	if cfg.CompactionTier1Days < 1 || cfg.CompactionTier1Days > 365 {
		return types.NewConfigError("compaction.tier1_days", "must be 1..365")
	}
	if cfg.CompactionTier2Days <= cfg.CompactionTier1Days || cfg.CompactionTier2Days > 730 {
		return types.NewConfigError("compaction.tier2_days", "must be > tier1_days and <= 730")
	}
	if cfg.SyncClaimRetries < 1 || cfg.SyncClaimRetries > 100 {
		return types.NewConfigError("sync.claim_retries", "must be 1..100")
	}
	if cfg.SyncClaimTimeoutHours != nil && (*cfg.SyncClaimTimeoutHours <= 0 || *cfg.SyncClaimTimeoutHours > 720) {
		return types.NewConfigError("sync.claim_timeout_hours", "must be > 0 and <= 720")
	}
	if cfg.SyncOfflineMode != "local" && cfg.SyncOfflineMode != "fail" {
		return types.NewConfigError("sync.offline_mode", `must be "local" or "fail"`)
	}
	if cfg.SyncNetworkTimeout < 5*time.Second || cfg.SyncNetworkTimeout > 300*time.Second {
		return types.NewConfigError("sync.network_timeout", "must be 5..300 seconds")
	}
	return nil
}

// Current returns the most recently loaded (or reloaded) Config.
func (l *Loader) Current() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

// Watch starts an fsnotify watch on config.yaml, reloading and revalidating
// on every write; onReload (if non-nil) is invoked after each successful
// reload, onError after a reload that fails validation (the prior Config is
// kept in that case — a bad edit doesn't take effect until it's fixed).
// Ported from the teacher's fsnotify usage in cmd/bd/list.go and
// cmd/bd/show_display.go, retargeted from issue-file watching to
// config-file watching.
func (l *Loader) Watch(onReload func(Config), onError func(error)) error {
	path := l.v.ConfigFileUsed()
	if path == "" {
		return nil // no file on disk yet: nothing to watch
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	l.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := l.v.ReadInConfig(); err != nil {
					if onError != nil {
						onError(fmt.Errorf("reload %s: %w", path, err))
					}
					continue
				}
				cfg, err := build(l.v)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				l.mu.Lock()
				l.cur = cfg
				l.mu.Unlock()
				if onReload != nil {
					onReload(cfg)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()
	return nil
}

// Close stops the hot-reload watch, if one is running.
func (l *Loader) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}
