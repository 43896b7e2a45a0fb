// Package syncengine implements the SyncEngine subsystem (spec §4.6):
// running a declarative SyncMap against the user's home directory and the
// data volume through a disposable helper container.
package syncengine

import "strconv"

// Flag is one of the six single-letter behaviors a SyncMap entry can carry.
type Flag rune

const (
	FlagDirectory Flag = 'd'
	FlagFile      Flag = 'f'
	FlagMirror    Flag = 'm'
	FlagJSONSeed  Flag = 'j'
	FlagSecret    Flag = 's'
	FlagExclude   Flag = 'x'
)

// Entry is one (source, target, flags) triple from spec §3.
type Entry struct {
	Source string
	Target string
	Flags  string
}

func (e Entry) has(f Flag) bool {
	for _, r := range e.Flags {
		if Flag(r) == f {
			return true
		}
	}
	return false
}

// IsDirectory reports whether the entry mirrors a directory.
func (e Entry) IsDirectory() bool { return e.has(FlagDirectory) }

// IsFile reports whether the entry copies a single file.
func (e Entry) IsFile() bool { return e.has(FlagFile) }

// Mirrors reports whether target state should equal source state exactly
// (--delete semantics).
func (e Entry) Mirrors() bool { return e.has(FlagMirror) }

// SeedsJSON reports whether an empty/missing target should become "{}".
func (e Entry) SeedsJSON() bool { return e.has(FlagJSONSeed) }

// IsSecret reports whether the entry needs 0600/0700 permissions and an
// agent-UID/GID chown.
func (e Entry) IsSecret() bool { return e.has(FlagSecret) }

// ExcludesSystemSubtree reports whether a ".system/" subtree under Target
// should be excluded from the sync.
func (e Entry) ExcludesSystemSubtree() bool { return e.has(FlagExclude) }

// SyncMap is the versioned, ordered list of entries this binary carries by
// default. Order matters: entries execute in declared order.
type SyncMap []Entry

// DefaultSyncMap is the built-in map embedded in the binary. It adopts the
// superset of the two drifted copies found upstream (spec §9 Open
// Question b): ~/.tmux.conf is included.
var DefaultSyncMap = SyncMap{
	{Source: ".claude", Target: "claude", Flags: "d"},
	{Source: ".claude.json", Target: "claude.json", Flags: "f"},
	{Source: ".config/claude-code", Target: "config/claude-code", Flags: "d"},
	{Source: ".gitconfig", Target: "gitconfig", Flags: "f"},
	{Source: ".ssh/known_hosts", Target: "ssh/known_hosts", Flags: "f"},
	{Source: ".npmrc", Target: "npmrc", Flags: "f"},
	{Source: ".config/gh", Target: "config/gh", Flags: "d,x"},
	{Source: ".tmux.conf", Target: "tmux.conf", Flags: "f"},
	{Source: ".vimrc", Target: "vimrc", Flags: "f"},
}

// Validate rejects entries whose flag set is internally contradictory or
// whose Source/Target are empty, per spec §7's "invalid sync map entry"
// fatal-failure case.
func (m SyncMap) Validate() error {
	for i, e := range m {
		if e.Source == "" || e.Target == "" {
			return &invalidEntryError{index: i, reason: "empty source or target"}
		}
		if e.IsDirectory() == e.IsFile() {
			return &invalidEntryError{index: i, reason: "must set exactly one of d or f"}
		}
		if e.IsFile() && e.Mirrors() {
			return &invalidEntryError{index: i, reason: "m (mirror) only applies to directories"}
		}
	}
	return nil
}

type invalidEntryError struct {
	index  int
	reason string
}

func (e *invalidEntryError) Error() string {
	return "invalid sync map entry at index " + strconv.Itoa(e.index) + ": " + e.reason
}
