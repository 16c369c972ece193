package config

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Parallelism is the configured slot count: a positive integer literal
// or the token "max". JSON accepts either a string or a number.
type Parallelism string

// UnmarshalJSON accepts both `"4"`/`"max"` and `4`.
func (p *Parallelism) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = Parallelism(s)
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*p = Parallelism(strconv.FormatInt(n, 10))
		return nil
	}

	return fmt.Errorf("parallelism must be a string or an integer, got %s", data)
}

// TaskConfig declares one task in the project's build graph.
type TaskConfig struct {
	Command                   string   `json:"command"`                             // Shell command; empty means the task has no script
	DependsOn                 []string `json:"dependsOn,omitempty"`                 // Names of tasks that must succeed first
	IsIncrementalBuildAllowed bool     `json:"isIncrementalBuildAllowed,omitempty"` // Forwarded to the command, not interpreted
}

// Config is the top-level configuration.
type Config struct {
	QuietMode                      bool                  `json:"quietMode"`
	Parallelism                    Parallelism           `json:"parallelism,omitempty"`
	ChangedProjectsOnly            bool                  `json:"changedProjectsOnly"`
	AllowWarningsInSuccessfulBuild bool                  `json:"allowWarningsInSuccessfulBuild"`
	HistoryPath                    string                `json:"historyPath,omitempty"` // SQLite run history; empty disables
	Tasks                          map[string]TaskConfig `json:"tasks"`
}
