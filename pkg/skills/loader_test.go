package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, baseDir, dirName, content string) string {
	t.Helper()
	skillDir := filepath.Join(baseDir, dirName)
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	path := filepath.Join(skillDir, SkillFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const shoppingSkill = `---
name: shopping-list
description: Manage the shopping list
version: 1.2.0
author: zoe
priority: 5
triggers:
  - " Shopping List"
  - add to list
allowed_endpoints:
  - POST /api/lists/add
  - GET /api/lists/*
tags:
  - lists
---

# Shopping List

When the user wants to manage their shopping list, call the lists API.
`

func TestLoadSkillFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeSkill(t, tmpDir, "shopping-list", shoppingSkill)

	skill, err := LoadSkillFile(path, SourceCore)
	require.NoError(t, err)

	assert.Equal(t, "shopping-list", skill.Name)
	assert.Equal(t, "Manage the shopping list", skill.Description)
	assert.Equal(t, "1.2.0", skill.Version)
	assert.Equal(t, "zoe", skill.Author)
	assert.Equal(t, 5, skill.Priority)
	assert.True(t, skill.APIOnly)
	assert.True(t, skill.Active)
	assert.Equal(t, SourceCore, skill.Source)
	assert.Equal(t, path, skill.FilePath)
	assert.Len(t, skill.SHA256, 64)
	assert.Equal(t, []string{"shopping list", "add to list"}, skill.Triggers)
	assert.Equal(t, []string{"POST /api/lists/add", "GET /api/lists/*"}, skill.AllowedEndpoints)
	assert.Equal(t, []string{"lists"}, skill.Tags)
	assert.Contains(t, skill.Instructions, "# Shopping List")
	assert.NotContains(t, skill.Instructions, "allowed_endpoints")
}

func TestLoadSkillFileDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeSkill(t, tmpDir, "minimal", `---
name: minimal
---

Body only.
`)

	skill, err := LoadSkillFile(path, SourceUser)
	require.NoError(t, err)

	assert.Equal(t, "0.0.1", skill.Version)
	assert.Equal(t, "unknown", skill.Author)
	assert.Zero(t, skill.Priority)
	assert.True(t, skill.APIOnly)
	assert.Empty(t, skill.Triggers)
	assert.Empty(t, skill.AllowedEndpoints)
	assert.Empty(t, skill.Tags)
}

func TestLoadSkillFileRejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing frontmatter",
			content: "# Just a body\n",
			wantErr: "frontmatter",
		},
		{
			name: "missing name",
			content: `---
description: no name here
---

Body.
`,
			wantErr: "name is required",
		},
		{
			name: "api_only false",
			content: `---
name: rogue
api_only: false
---

Do arbitrary things.
`,
			wantErr: "api_only",
		},
		{
			name: "api_only falsy variant",
			content: `---
name: rogue-no
api_only: no
---

Body.
`,
			wantErr: "api_only",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			path := writeSkill(t, tmpDir, "skill", tt.content)

			_, err := LoadSkillFile(path, SourceCore)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSkillFileAPIOnlyTrueAccepted(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeSkill(t, tmpDir, "explicit", `---
name: explicit
api_only: true
---

Body.
`)

	skill, err := LoadSkillFile(path, SourceCore)
	require.NoError(t, err)
	assert.True(t, skill.APIOnly)
}

func TestHashCoversWholeFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeSkill(t, tmpDir, "hashed", shoppingSkill)

	before, err := LoadSkillFile(path, SourceCore)
	require.NoError(t, err)

	// A body-only edit must change the hash too.
	require.NoError(t, os.WriteFile(path, []byte(shoppingSkill+"\nExtra instruction.\n"), 0o644))
	after, err := LoadSkillFile(path, SourceCore)
	require.NoError(t, err)

	assert.NotEqual(t, before.SHA256, after.SHA256)
}

func TestDiscoverDir(t *testing.T) {
	tmpDir := t.TempDir()

	writeSkill(t, tmpDir, "b-skill", `---
name: b-skill
---

B body.
`)
	writeSkill(t, tmpDir, "a-skill", `---
name: a-skill
---

A body.
`)
	// api_only: false must never appear in the output
	writeSkill(t, tmpDir, "rogue", `---
name: rogue
api_only: false
---

Rogue body.
`)
	// Subdirectory without a SKILL.md is skipped
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "empty-dir"), 0o755))
	// A stray file at the top level is skipped
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "README.txt"), []byte("hi"), 0o644))

	skills, err := DiscoverDir(context.Background(), tmpDir, SourceCore)
	require.Error(t, err) // the rogue skill surfaces in the aggregate error
	assert.True(t, errors.Is(err, ErrAPIOnlyDisabled))

	require.Len(t, skills, 2)
	assert.Equal(t, "a-skill", skills[0].Name) // sorted directory order
	assert.Equal(t, "b-skill", skills[1].Name)
}

func TestDiscoverDirMissing(t *testing.T) {
	skills, err := DiscoverDir(context.Background(), "/nonexistent/skills", SourceCore)
	require.NoError(t, err)
	assert.Empty(t, skills)
}

func TestDiscoverDirUnreadable(t *testing.T) {
	// a directory that exists but cannot be read is an error, not an
	// empty tier
	notADir := filepath.Join(t.TempDir(), "skills")
	require.NoError(t, os.WriteFile(notADir, []byte("not a directory"), 0o644))

	skills, err := DiscoverDir(context.Background(), notADir, SourceUser)
	require.Error(t, err)
	assert.Empty(t, skills)
}
