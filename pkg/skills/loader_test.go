package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, workspace, name, content string) {
	t.Helper()
	dir := filepath.Join(workspace, "skills", name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0644))
}

func TestListSkillsMissingDir(t *testing.T) {
	loader := NewLoader(t.TempDir())
	skills, err := loader.ListSkills()
	require.NoError(t, err)
	assert.Nil(t, skills)
}

func TestListSkillsParsesFrontmatter(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, ws, "github", `---
description: Work with GitHub repos
vikingbot:
  always: true
---
Use the gh CLI for everything.
`)
	writeSkill(t, ws, "bare", "No frontmatter here.\n")

	loader := NewLoader(ws)
	skills, err := loader.ListSkills()
	require.NoError(t, err)
	require.Len(t, skills, 2)

	byName := map[string]Skill{}
	for _, s := range skills {
		byName[s.Name] = s
	}

	gh := byName["github"]
	assert.Equal(t, "Work with GitHub repos", gh.Description)
	assert.True(t, gh.Always)
	assert.True(t, gh.Available)

	bare := byName["bare"]
	assert.Equal(t, "bare", bare.Description)
	assert.False(t, bare.Always)
}

func TestUnmetRequirementsMarkUnavailable(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, ws, "exotic", `---
description: Needs tooling that does not exist
vikingbot:
  requires:
    bins: ["definitely-not-a-real-binary-xyz"]
    env: ["VIKINGBOT_TEST_UNSET_ENV_XYZ"]
---
body
`)

	loader := NewLoader(ws)
	skills, err := loader.ListSkills()
	require.NoError(t, err)
	require.Len(t, skills, 1)

	s := skills[0]
	assert.False(t, s.Available)
	assert.Contains(t, s.Missing, "CLI: definitely-not-a-real-binary-xyz")
	assert.Contains(t, s.Missing, "ENV: VIKINGBOT_TEST_UNSET_ENV_XYZ")
	assert.Empty(t, loader.GetAlwaysSkills())

	summary := loader.BuildSkillsSummary()
	assert.Contains(t, summary, "**exotic**")
	assert.Contains(t, summary, "Unavailable")
}

func TestLoadSkillsForContext(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, ws, "notes", `---
description: Note taking
---
Keep notes under {baseDir}/data.
`)

	loader := NewLoader(ws)
	out := loader.LoadSkillsForContext([]string{"notes", "missing"})

	assert.Contains(t, out, "### Skill: notes")
	assert.NotContains(t, out, "---\ndescription")
	assert.NotContains(t, out, "{baseDir}")
	assert.Contains(t, out, filepath.Join("skills", "notes")+"/data")
}

func TestGetAlwaysSkills(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, ws, "always-on", "---\nvikingbot:\n  always: true\n---\nbody\n")
	writeSkill(t, ws, "on-demand", "---\nvikingbot:\n  always: false\n---\nbody\n")

	loader := NewLoader(ws)
	assert.Equal(t, []string{"always-on"}, loader.GetAlwaysSkills())
}
