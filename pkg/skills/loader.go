package skills

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"

	"github.com/zoe-assistant/zoe/pkg/logger"
)

// SkillFileName is the definition file expected in every skill directory.
const SkillFileName = "SKILL.md"

// ErrAPIOnlyDisabled marks a skill that tried to opt out of the API-only
// security boundary. Such skills are rejected outright.
var ErrAPIOnlyDisabled = errors.New("skill declares api_only: false; only API-only skills are permitted")

// LoadSkillFile parses a single SKILL.md into a validated Skill, or rejects it.
// The content hash covers the entire raw file so that any edit, frontmatter or
// body, invalidates the lockfile entry.
func LoadSkillFile(path string, source Source) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return nil, errors.New("missing frontmatter")
	}

	var m metadata
	if err := mapstructure.Decode(metaData, &m); err != nil {
		return nil, errors.Wrap(err, "malformed frontmatter")
	}

	if m.Name == "" {
		return nil, errors.New("skill name is required in frontmatter")
	}

	if m.APIOnly != nil && !*m.APIOnly {
		return nil, ErrAPIOnlyDisabled
	}

	hash := sha256.Sum256(content)

	skill := &Skill{
		Name:             m.Name,
		Description:      m.Description,
		Version:          m.Version,
		Author:           m.Author,
		APIOnly:          true,
		Triggers:         normalizeTriggers(m.Triggers),
		AllowedEndpoints: m.AllowedEndpoints,
		Instructions:     extractBodyContent(string(content)),
		Source:           source,
		FilePath:         path,
		SHA256:           hex.EncodeToString(hash[:]),
		Active:           true,
		Tags:             m.Tags,
		Priority:         m.Priority,
	}

	if skill.Version == "" {
		skill.Version = "0.0.1"
	}
	if skill.Author == "" {
		skill.Author = "unknown"
	}
	if skill.Triggers == nil {
		skill.Triggers = []string{}
	}
	if skill.AllowedEndpoints == nil {
		skill.AllowedEndpoints = []string{}
	}
	if skill.Tags == nil {
		skill.Tags = []string{}
	}

	return skill, nil
}

// DiscoverDir scans base/<skill-name>/SKILL.md subdirectories in sorted order
// and returns the successfully parsed skills. Parse failures are logged and
// skipped; an aggregate error is returned alongside the skills for callers
// that want to surface it, but a failed file never aborts the scan.
func DiscoverDir(ctx context.Context, dir string, source Source) ([]*Skill, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing tier directory is normal (e.g. no user skills yet).
			return nil, nil
		}
		logger.G(ctx).WithError(err).WithField("dir", dir).Warn("failed to read skills directory")
		return nil, errors.Wrap(err, dir)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	log := logger.G(ctx)

	var skills []*Skill
	var loadErrs *multierror.Error
	for _, name := range names {
		entryPath := filepath.Join(dir, name)

		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		skillPath := filepath.Join(entryPath, SkillFileName)
		if _, err := os.Stat(skillPath); err != nil {
			continue
		}

		skill, err := LoadSkillFile(skillPath, source)
		if err != nil {
			loadErrs = multierror.Append(loadErrs, errors.Wrap(err, skillPath))
			if errors.Is(err, ErrAPIOnlyDisabled) {
				log.WithField("path", skillPath).WithError(err).Error("rejected skill")
			} else {
				log.WithField("path", skillPath).WithError(err).Warn("skipping unparseable skill")
			}
			continue
		}

		skills = append(skills, skill)
	}

	return skills, loadErrs.ErrorOrNil()
}

func normalizeTriggers(triggers []string) []string {
	out := make([]string, 0, len(triggers))
	for _, t := range triggers {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// extractBodyContent removes YAML frontmatter and returns the body
func extractBodyContent(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}

	if frontmatterEnd == -1 {
		return content
	}

	return strings.TrimLeft(strings.Join(lines[frontmatterEnd+1:], "\n"), "\n")
}
