package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zoe-assistant/zoe/pkg/logger"
)

// RegistryConfig describes where the registry discovers skills.
type RegistryConfig struct {
	// CoreDir holds built-in skills (lowest precedence).
	CoreDir string
	// ModulesDir holds one subdirectory per module; only modules listed in
	// the enablement config are scanned, under <module>/skills.
	ModulesDir string
	// UserDir holds user-authored skills (highest precedence).
	UserDir string
	// ModulesConfig is the YAML file listing enabled_modules.
	ModulesConfig string
	// LockfilePath is where the integrity lockfile lives.
	LockfilePath string
}

type modulesConfig struct {
	EnabledModules []string `yaml:"enabled_modules"`
}

type triggerEntry struct {
	trigger string
	skill   string
}

// Registry aggregates skills from the three precedence tiers into one
// addressable, reload-safe index. All reads take the read lock so a reload
// never exposes a half-built index.
type Registry struct {
	cfg RegistryConfig

	mu       sync.RWMutex
	skills   map[string]*Skill
	triggers []triggerEntry
}

// NewRegistry creates an empty registry. Call Load before use.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:    cfg,
		skills: make(map[string]*Skill),
	}
}

// Load discovers skills across the three tiers, applies the lockfile's
// integrity checks, rebuilds the trigger index, and rewrites the lockfile.
//
// Note on first-load behavior: a skill with no lockfile entry is activated
// and its current hash recorded, i.e. new skills are self-approving on first
// sight. Only subsequent content changes require explicit approval.
func (r *Registry) Load(ctx context.Context) error {
	log := logger.G(ctx)

	lock, err := ReadLockfile(r.cfg.LockfilePath)
	if err != nil {
		return errors.Wrap(err, "failed to read skills lockfile")
	}

	merged := r.discover(ctx)

	// Integrity check: deactivate any skill whose content changed since it
	// was last approved. The skill stays visible in the registry so an
	// operator can inspect and re-approve it.
	for _, skill := range merged {
		entry, ok := lock[skill.Name]
		if ok && entry.SHA256 != skill.SHA256 {
			skill.Active = false
			log.WithFields(map[string]any{
				"skill":         skill.Name,
				"approved_hash": entry.SHA256,
				"current_hash":  skill.SHA256,
			}).Warn("skill content changed since approval; deactivating until re-approved")
		}
	}

	triggers := buildTriggerIndex(ctx, merged)

	newLock := Lockfile{}
	now := time.Now().UTC()
	for name, skill := range merged {
		if !skill.Active {
			// Keep the previously approved entry so approval semantics
			// survive repeated loads.
			if entry, ok := lock[name]; ok {
				newLock[name] = entry
			}
			continue
		}
		entry, ok := lock[name]
		if ok && entry.SHA256 == skill.SHA256 {
			newLock[name] = entry
			continue
		}
		newLock[name] = LockEntry{SHA256: skill.SHA256, ApprovedAt: now}
	}

	if err := WriteLockfile(r.cfg.LockfilePath, newLock); err != nil {
		return errors.Wrap(err, "failed to write skills lockfile")
	}

	r.mu.Lock()
	r.skills = merged
	r.triggers = triggers
	r.mu.Unlock()

	log.WithFields(map[string]any{
		"skills":   len(merged),
		"triggers": len(triggers),
	}).Info("skills registry loaded")

	return nil
}

// discover scans the three tiers in precedence order (core, enabled modules,
// user) and merges by name, later tiers overriding earlier ones.
func (r *Registry) discover(ctx context.Context) map[string]*Skill {
	log := logger.G(ctx)
	merged := make(map[string]*Skill)

	absorb := func(skills []*Skill) {
		for _, skill := range skills {
			if prev, ok := merged[skill.Name]; ok {
				log.WithFields(map[string]any{
					"skill":     skill.Name,
					"overrides": string(prev.Source),
					"winner":    string(skill.Source),
				}).Info("skill overridden by higher-precedence source")
			}
			merged[skill.Name] = skill
		}
	}

	coreSkills, _ := DiscoverDir(ctx, r.cfg.CoreDir, SourceCore)
	absorb(coreSkills)

	for _, module := range r.enabledModules(ctx) {
		dir := filepath.Join(r.cfg.ModulesDir, module, "skills")
		moduleSkills, _ := DiscoverDir(ctx, dir, ModuleSource(module))
		absorb(moduleSkills)
	}

	userSkills, _ := DiscoverDir(ctx, r.cfg.UserDir, SourceUser)
	absorb(userSkills)

	return merged
}

func (r *Registry) enabledModules(ctx context.Context) []string {
	if r.cfg.ModulesConfig == "" {
		return nil
	}

	data, err := os.ReadFile(r.cfg.ModulesConfig)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.G(ctx).WithError(err).Warn("failed to read modules config")
		}
		return nil
	}

	var cfg modulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.G(ctx).WithError(err).Warn("malformed modules config; no module skills loaded")
		return nil
	}

	return cfg.EnabledModules
}

// buildTriggerIndex indexes the triggers of active skills in name-sorted
// order. A trigger claimed by more than one skill goes to the later one in
// iteration order.
func buildTriggerIndex(ctx context.Context, skills map[string]*Skill) []triggerEntry {
	log := logger.G(ctx)

	names := make([]string, 0, len(skills))
	for name := range skills {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]int)
	var index []triggerEntry
	for _, name := range names {
		skill := skills[name]
		if !skill.Active {
			continue
		}
		for _, trigger := range skill.Triggers {
			if at, dup := seen[trigger]; dup {
				log.WithFields(map[string]any{
					"trigger": trigger,
					"loser":   index[at].skill,
					"winner":  skill.Name,
				}).Debug("trigger keyword claimed by multiple skills")
				index[at] = triggerEntry{trigger: trigger, skill: skill.Name}
				continue
			}
			seen[trigger] = len(index)
			index = append(index, triggerEntry{trigger: trigger, skill: skill.Name})
		}
	}

	return index
}

// MatchTriggers returns the first active skill whose trigger keyword occurs
// in the message, or nil. Matching is first-hit in index order rather than
// most-specific; skill priority is deliberately not consulted here (it only
// orders LLM context).
func (r *Registry) MatchTriggers(message string) *Skill {
	needle := strings.ToLower(strings.TrimSpace(message))
	if needle == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.triggers {
		if strings.Contains(needle, entry.trigger) {
			return r.skills[entry.skill]
		}
	}
	return nil
}

// LLMContext renders every active skill, highest priority first, into a
// formatted block for injection into the LLM system prompt. Returns the
// empty string when no skills are active.
func (r *Registry) LLMContext() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*Skill
	for _, skill := range r.skills {
		if skill.Active {
			active = append(active, skill)
		}
	}
	if len(active) == 0 {
		return ""
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].Name < active[j].Name
	})

	var sb strings.Builder
	sb.WriteString("# Available Skills\n\n")
	for _, skill := range active {
		sb.WriteString(fmt.Sprintf("## Skill: %s\n", skill.Name))
		if skill.Description != "" {
			sb.WriteString(skill.Description + "\n")
		}
		if len(skill.Triggers) > 0 {
			sb.WriteString(fmt.Sprintf("Triggers: %s\n", strings.Join(skill.Triggers, ", ")))
		}
		if len(skill.AllowedEndpoints) > 0 {
			sb.WriteString(fmt.Sprintf("Allowed endpoints: %s\n", strings.Join(skill.AllowedEndpoints, ", ")))
		}
		sb.WriteString("\n### Instructions\n\n")
		sb.WriteString(strings.TrimSpace(skill.Instructions))
		sb.WriteString("\n\n")
	}

	return sb.String()
}

// ApproveSkill reactivates a skill, records its current hash in the
// lockfile, and re-indexes its triggers. Returns false when the name is not
// in the registry.
func (r *Registry) ApproveSkill(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	skill, ok := r.skills[name]
	if !ok {
		return false, nil
	}

	lock, err := ReadLockfile(r.cfg.LockfilePath)
	if err != nil {
		return false, errors.Wrap(err, "failed to read skills lockfile")
	}

	skill.Active = true
	lock[name] = LockEntry{SHA256: skill.SHA256, ApprovedAt: time.Now().UTC()}

	if err := WriteLockfile(r.cfg.LockfilePath, lock); err != nil {
		return false, errors.Wrap(err, "failed to write skills lockfile")
	}

	r.triggers = buildTriggerIndex(ctx, r.skills)

	logger.G(ctx).WithField("skill", name).Info("skill approved")
	return true, nil
}

// Skill returns the named skill, active or not.
func (r *Registry) Skill(name string) (*Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	skill, ok := r.skills[name]
	return skill, ok
}

// Skills returns all registered skills sorted by name.
func (r *Registry) Skills() []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Skill, 0, len(r.skills))
	for _, skill := range r.skills {
		out = append(out, skill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
