// Package skills implements Zoe's skill system: human-authored capability
// packages that extend the assistant. Skills are directories containing a
// SKILL.md file with YAML frontmatter describing the skill's metadata and a
// markdown body with the instructions injected into LLM context. The package
// covers discovery across three precedence tiers, an integrity lockfile that
// deactivates silently-changed skills, trigger keyword matching, and a
// runtime enforcement boundary for skill-initiated API calls.
package skills

import "time"

// Source identifies which precedence tier a skill was loaded from.
// User skills override module skills, which override core skills.
type Source string

const (
	// SourceCore is the built-in skills directory (lowest precedence)
	SourceCore Source = "core"
	// SourceUser is the user skills directory (highest precedence)
	SourceUser Source = "user"
)

// ModuleSource returns the source label for a skill shipped by a module.
func ModuleSource(module string) Source {
	return Source("module:" + module)
}

// Skill represents a loaded skill definition
type Skill struct {
	Name        string // Unique name from frontmatter (required)
	Description string
	Version     string
	Author      string

	// APIOnly is a security boundary, not a preference: skills that declare
	// api_only: false are rejected at parse time and never loaded.
	APIOnly bool

	// Triggers are lowercase keywords matched by substring against incoming
	// messages.
	Triggers []string

	// AllowedEndpoints lists "METHOD /path" entries the skill may call at
	// runtime. A trailing * performs prefix matching.
	AllowedEndpoints []string

	// Instructions is the markdown body of SKILL.md (frontmatter stripped),
	// injected verbatim into LLM context.
	Instructions string

	Source   Source
	FilePath string

	// SHA256 is the hex content hash of the entire raw file, compared
	// against the lockfile on every load.
	SHA256 string

	// Active is false when the skill's hash no longer matches its lockfile
	// entry. Inactive skills are excluded from trigger matching and LLM
	// context until explicitly approved.
	Active bool

	Tags     []string
	Priority int // higher priority skills are listed first in LLM context
}

// LockEntry is the per-skill integrity record persisted in the lockfile.
type LockEntry struct {
	SHA256     string    `json:"sha256"`
	ApprovedAt time.Time `json:"approved_at"`
}

// metadata is the decoded YAML frontmatter of a SKILL.md file. APIOnly is a
// pointer so that an absent key (defaults to true) can be told apart from an
// explicit false (rejected).
type metadata struct {
	Name             string   `mapstructure:"name"`
	Description      string   `mapstructure:"description"`
	Version          string   `mapstructure:"version"`
	Author           string   `mapstructure:"author"`
	APIOnly          *bool    `mapstructure:"api_only"`
	Triggers         []string `mapstructure:"triggers"`
	AllowedEndpoints []string `mapstructure:"allowed_endpoints"`
	Tags             []string `mapstructure:"tags"`
	Priority         int      `mapstructure:"priority"`
}
