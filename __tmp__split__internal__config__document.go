package config

// Document is the layered TOML document described in spec §3.
type Document struct {
	Agent           AgentSection                `toml:"agent"`
	Workspace       map[string]WorkspaceSection `toml:"workspace"`
	DefaultExcludes []string                    `toml:"default_excludes"`
	Env             EnvSection                  `toml:"env"`
}

// AgentSection is the `[agent]` table: repo-wide defaults.
type AgentSection struct {
	DefaultAgent string `toml:"default_agent"`
	DataVolume   string `toml:"data_volume"`
}

// WorkspaceSection is one `[workspace."<path>"]` table.
type WorkspaceSection struct {
	DataVolume string   `toml:"data_volume"`
	Excludes   []string `toml:"excludes"`
}

// EnvSection is the `[env]` table controlling EnvImporter behavior.
type EnvSection struct {
	Import   []string `toml:"import"`
	FromHost bool     `toml:"from_host"`
	EnvFile  string   `toml:"env_file"`
}

// builtinDefaults are the fallback values used when neither a workspace
// section nor the agent section sets a field.
var builtinDefaults = AgentSection{
	DefaultAgent: "claude",
	DataVolume:   "cai-data",
}


