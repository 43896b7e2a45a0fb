package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/imdario/mergo"
	"github.com/sirupsen/logrus"
)

// Mode selects strict or lenient parsing, per spec §4.3: an explicit
// --config path is strict (a parse error fails the command); workspace
// auto-discovery is lenient (a parse error warns and falls back to
// defaults).
type Mode int

const (
	ModeLenient Mode = iota
	ModeStrict
)

// Store resolves the effective configuration for a workspace.
type Store struct {
	log      *logrus.Entry
	doc      *Document
	sourceOK bool
	source   string
}

// Load discovers and parses the configuration document for workspace.
// When explicitPath is non-empty it is parsed in ModeStrict (a parse
// failure is returned to the caller). Otherwise discovery walks from the
// workspace toward the filesystem root, stopping at the first
// ".containai/config.toml" or a git root marker, falling back to the
// XDG config directory, in ModeLenient (a parse failure is logged and the
// built-in defaults are used).
func Load(log *logrus.Entry, workspace, explicitPath, xdgConfigDir string) (*Store, error) {
	if explicitPath != "" {
		doc, err := parseFile(explicitPath)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", explicitPath, err)
		}
		return &Store{log: log, doc: doc, sourceOK: true, source: explicitPath}, nil
	}

	path, found := discover(workspace, xdgConfigDir)
	if !found {
		log.Debug("no configuration file found, using built-in defaults")
		return &Store{log: log, doc: &Document{}, sourceOK: false}, nil
	}

	doc, err := parseFile(path)
	if err != nil {
		log.Warnf("ignoring invalid configuration at %s: %v", path, err)
		return &Store{log: log, doc: &Document{}, sourceOK: false}, nil
	}
	return &Store{log: log, doc: doc, sourceOK: true, source: path}, nil
}

func parseFile(path string) (*Document, error) {
	var doc Document
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// discover walks from workspace toward the filesystem root looking for
// ".containai/config.toml", stopping early at a git root marker so a
// monorepo's outer ancestors are never consulted. Falls back to the XDG
// config directory's "config.toml".
func discover(workspace, xdgConfigDir string) (string, bool) {
	dir := workspace
	for {
		candidate := filepath.Join(dir, ".containai", "config.toml")
		if fileExists(candidate) {
			return candidate, true
		}
		if fileExists(filepath.Join(dir, ".git")) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	fallback := filepath.Join(xdgConfigDir, "config.toml")
	if fileExists(fallback) {
		return fallback, true
	}
	return "", false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Effective is the resolved configuration for a single workspace.
type Effective struct {
	DefaultAgent string
	DataVolume   string
	Excludes     []string
	Env          EnvSection
}

// Resolve computes the effective value set for workspace, per spec §3:
// among `[workspace."P"]` sections where P is a proper ancestor of (or
// equal to) workspace, the one with the most path segments wins; fields it
// doesn't set fall through to `[agent]`, then to built-in defaults.
// Excludes are cumulative (default_excludes ∪ matched workspace excludes),
// deduplicated preserving first occurrence. Relative workspace keys are
// rejected as malformed and ignored with a warning; exclude entries
// containing a newline or carriage return are dropped.
func (s *Store) Resolve(workspace string) Effective {
	// agent falls back to builtinDefaults field-by-field: mergo only fills
	// agent's zero fields, so an explicit [agent] value always wins.
	agent := s.doc.Agent
	if err := mergo.Merge(&agent, builtinDefaults); err != nil {
		s.log.Warnf("merging agent defaults: %v", err)
	}

	candidates := make([]string, 0, len(s.doc.Workspace))
	for path := range s.doc.Workspace {
		if !filepath.IsAbs(path) {
			s.log.Warnf("ignoring workspace section with relative path %q", path)
			continue
		}
		if !isAncestorOrSelf(path, workspace) {
			continue
		}
		candidates = append(candidates, path)
	}
	sort.Strings(candidates)

	var best WorkspaceSection
	bestDepth := -1
	for _, path := range candidates {
		depth := len(splitPath(path))
		// Equal-depth ties go to the textually-first path (spec §8); since
		// candidates is sorted, only a strictly deeper match may overwrite.
		if depth > bestDepth {
			bestDepth = depth
			best = s.doc.Workspace[path]
		}
	}

	// The matched workspace section is the highest-precedence layer: start
	// from it and fall back to agent (itself already backed by builtins)
	// for whichever fields the workspace section left unset.
	resolved := AgentSection{DataVolume: best.DataVolume}
	if err := mergo.Merge(&resolved, agent); err != nil {
		s.log.Warnf("merging workspace overrides: %v", err)
	}

	excludes := dedupe(sanitizeExcludes(append(append([]string{}, s.doc.DefaultExcludes...), best.Excludes...)))

	return Effective{
		DefaultAgent: resolved.DefaultAgent,
		DataVolume:   resolved.DataVolume,
		Excludes:     excludes,
		Env:          s.doc.Env,
	}
}

func isAncestorOrSelf(ancestor, path string) bool {
	ancestor = filepath.Clean(ancestor)
	path = filepath.Clean(path)
	if ancestor == path {
		return true
	}
	rel, err := filepath.Rel(ancestor, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func splitPath(path string) []string {
	clean := filepath.Clean(path)
	var parts []string
	for {
		dir, base := filepath.Split(clean)
		if base != "" {
			parts = append(parts, base)
		}
		dir = strings.TrimSuffix(dir, string(filepath.Separator))
		if dir == clean || dir == "" {
			break
		}
		clean = dir
	}
	return parts
}

func sanitizeExcludes(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.ContainsAny(e, "\n\r") {
			continue
		}
		out = append(out, e)
	}
	return out
}

// dedupe removes duplicate entries, preserving first-occurrence order as
// required by spec §3.
func dedupe(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// SourcePath returns the path the effective document was parsed from, or
// "" if built-in defaults were used.
func (s *Store) SourcePath() string {
	if !s.sourceOK {
		return ""
	}
	return s.source
}
