// Package pipeline also owns persistence for PipelineConfig entities:
// two scopes (workspace, global), each storing YAML configs, a JSON
// index, and per-run history keyed by a content hash.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// IndexEntry is one pipeline's metadata row in a scope's index.json.
type IndexEntry struct {
	Name       string              `json:"name"`
	Scope      models.PipelineScope `json:"scope"`
	ConfigHash string              `json:"config_hash"`
	UpdatedAt  int64               `json:"updated_at_unix"`
}

// Store is the two-scope (workspace, global) file-backed pipeline store.
type Store struct {
	WorkspaceDir string
	GlobalDir    string

	mu sync.Mutex // serializes index.json writes
}

// NewStore builds a Store rooted at the two configured directories,
// creating them (and their pipelines/runs subdirectories) if absent.
func NewStore(workspaceDir, globalDir string) *Store {
	s := &Store{WorkspaceDir: workspaceDir, GlobalDir: globalDir}
	for _, dir := range []string{s.pipelinesDir(models.ScopeWorkspace), s.pipelinesDir(models.ScopeGlobal), s.runsDir(models.ScopeWorkspace), s.runsDir(models.ScopeGlobal)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn().Str("dir", dir).Err(err).Msg("pipeline store: could not create directory")
		}
	}
	return s
}

func (s *Store) scopeRoot(scope models.PipelineScope) string {
	if scope == models.ScopeGlobal {
		return s.GlobalDir
	}
	return s.WorkspaceDir
}

func (s *Store) pipelinesDir(scope models.PipelineScope) string {
	return filepath.Join(s.scopeRoot(scope), "pipelines")
}

func (s *Store) runsDir(scope models.PipelineScope) string {
	return filepath.Join(s.scopeRoot(scope), "runs")
}

var (
	nameInvalidChars = regexp.MustCompile(`[^a-z0-9-]`)
	nameWhitespace   = regexp.MustCompile(`\s+`)
)

// NormalizeName lowercases, replaces whitespace with hyphens, strips any
// other disallowed character, and truncates to 64 characters.
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = nameWhitespace.ReplaceAllString(n, "-")
	n = nameInvalidChars.ReplaceAllString(n, "")
	n = strings.Trim(n, "-")
	if len(n) > 64 {
		n = n[:64]
	}
	return n
}

// ContentHash is the SHA-256 hex digest of cfg's canonical YAML
// serialization, used to link a PipelineConfig to its run history.
func ContentHash(cfg models.PipelineConfig) (string, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Save persists cfg under its normalized name in cfg.Scope (defaulting to
// workspace), writing the YAML file and updating that scope's index.json.
func (s *Store) Save(cfg models.PipelineConfig) error {
	scope := cfg.Scope
	if scope == "" {
		scope = models.ScopeWorkspace
	}
	name := NormalizeName(cfg.Name)
	if name == "" {
		return fmt.Errorf("pipeline name is empty after normalization")
	}
	cfg.Name = name
	cfg.Scope = scope

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	path := filepath.Join(s.pipelinesDir(scope), name+".yaml")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}

	hash, err := ContentHash(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateIndex(scope, IndexEntry{Name: name, Scope: scope, ConfigHash: hash, UpdatedAt: time.Now().Unix()})
}

func (s *Store) indexPath(scope models.PipelineScope) string {
	return filepath.Join(s.pipelinesDir(scope), "index.json")
}

func (s *Store) readIndex(scope models.PipelineScope) ([]IndexEntry, error) {
	b, err := os.ReadFile(s.indexPath(scope))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []IndexEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) updateIndex(scope models.PipelineScope, entry IndexEntry) error {
	entries, err := s.readIndex(scope)
	if err != nil {
		return err
	}
	replaced := false
	for i, e := range entries {
		if e.Name == entry.Name {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	return s.writeIndex(scope, entries)
}

func (s *Store) writeIndex(scope models.PipelineScope, entries []IndexEntry) error {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath(scope), b, 0o644)
}

// List returns the index entries for scope ("" lists both, workspace first).
func (s *Store) List(scope models.PipelineScope) ([]IndexEntry, error) {
	if scope != "" {
		return s.readIndex(scope)
	}
	ws, err := s.readIndex(models.ScopeWorkspace)
	if err != nil {
		return nil, err
	}
	gl, err := s.readIndex(models.ScopeGlobal)
	if err != nil {
		return nil, err
	}
	return append(ws, gl...), nil
}

// Load resolves name against the workspace scope first, then global.
func (s *Store) Load(name string) (models.PipelineConfig, error) {
	name = NormalizeName(name)
	for _, scope := range []models.PipelineScope{models.ScopeWorkspace, models.ScopeGlobal} {
		path := filepath.Join(s.pipelinesDir(scope), name+".yaml")
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return models.PipelineConfig{}, err
		}
		var cfg models.PipelineConfig
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return models.PipelineConfig{}, fmt.Errorf("pipeline %q: %w", name, err)
		}
		cfg.Scope = scope
		return cfg, nil
	}
	return models.PipelineConfig{}, fmt.Errorf("pipeline %q not found in workspace or global scope", name)
}

// Delete removes name from the given scope's YAML store and index.
func (s *Store) Delete(name string, scope models.PipelineScope) error {
	name = NormalizeName(name)
	if scope == "" {
		scope = models.ScopeWorkspace
	}
	path := filepath.Join(s.pipelinesDir(scope), name+".yaml")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.readIndex(scope)
	if err != nil {
		return err
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Name != name {
			out = append(out, e)
		}
	}
	return s.writeIndex(scope, out)
}

// RecordRun appends run to the history of configHash under scope,
// filed as runs/<hash>/<ulid>.json. A ULID gives monotonic, sortable
// filenames without needing a database.
func (s *Store) RecordRun(scope models.PipelineScope, configHash string, run models.PipelineRun) error {
	dir := filepath.Join(s.runsDir(scope), configHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	id := ulid.Make()
	b, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, id.String()+".json"), b, 0o644)
}

// History returns every recorded PipelineRun for configHash across both
// scopes, oldest first (ULID filenames sort chronologically).
func (s *Store) History(configHash string) ([]models.PipelineRun, error) {
	var out []models.PipelineRun
	for _, scope := range []models.PipelineScope{models.ScopeWorkspace, models.ScopeGlobal} {
		dir := filepath.Join(s.runsDir(scope), configHash)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			b, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				continue
			}
			var run models.PipelineRun
			if err := json.Unmarshal(b, &run); err != nil {
				continue
			}
			out = append(out, run)
		}
	}
	return out, nil
}

// Watch starts a best-effort fsnotify watch over both scopes' pipelines
// directories, invoking onChange whenever a .yaml file is created,
// written, removed, or renamed. The store has no ambient context, so the
// watcher runs until the returned stop function is called.
func (s *Store) Watch(onChange func(name string)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, scope := range []models.PipelineScope{models.ScopeWorkspace, models.ScopeGlobal} {
		if err := watcher.Add(s.pipelinesDir(scope)); err != nil {
			log.Warn().Str("dir", s.pipelinesDir(scope)).Err(err).Msg("pipeline store: could not watch directory")
		}
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(ev.Name, ".yaml") {
					continue
				}
				onChange(strings.TrimSuffix(filepath.Base(ev.Name), ".yaml"))
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(werr).Msg("pipeline store watch error")
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
