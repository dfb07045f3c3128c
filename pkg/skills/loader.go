// Package skills loads SKILL.md instruction files from the workspace
// for progressive inclusion in the agent's context.
package skills

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Metadata is the YAML frontmatter of a SKILL.md file.
type Metadata struct {
	Description string `yaml:"description"`
	Vikingbot   struct {
		Always   bool `yaml:"always"`
		Requires struct {
			Bins []string `yaml:"bins"`
			Env  []string `yaml:"env"`
		} `yaml:"requires"`
	} `yaml:"vikingbot"`
}

// Skill is one loaded skill directory.
type Skill struct {
	Name        string
	Path        string
	Description string
	Available   bool
	Missing     []string
	Content     string
	Always      bool
}

// Loader scans the workspace skills directory.
type Loader struct {
	Workspace string
	SkillsDir string
}

// NewLoader creates a skills loader rooted at workspace.
func NewLoader(workspace string) *Loader {
	return &Loader{
		Workspace: workspace,
		SkillsDir: filepath.Join(workspace, "skills"),
	}
}

// ListSkills returns every skill directory containing a SKILL.md.
func (l *Loader) ListSkills() ([]Skill, error) {
	entries, err := os.ReadDir(l.SkillsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var skills []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(l.SkillsDir, entry.Name(), "SKILL.md")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		skill, err := l.loadSkill(entry.Name(), path)
		if err != nil {
			continue
		}
		skills = append(skills, skill)
	}
	return skills, nil
}

func (l *Loader) loadSkill(name, path string) (Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, err
	}

	meta, _ := parseFrontmatter(content)
	missing := checkRequirements(meta.Vikingbot.Requires.Bins, meta.Vikingbot.Requires.Env)

	desc := meta.Description
	if desc == "" {
		desc = name
	}

	return Skill{
		Name:        name,
		Path:        path,
		Description: desc,
		Available:   len(missing) == 0,
		Missing:     missing,
		Content:     string(content),
		Always:      meta.Vikingbot.Always,
	}, nil
}

// LoadSkillsForContext returns the full content of the named skills,
// frontmatter stripped and {baseDir} expanded.
func (l *Loader) LoadSkillsForContext(names []string) string {
	var parts []string
	for _, name := range names {
		skillDir := filepath.Join(l.SkillsDir, name)
		content, err := os.ReadFile(filepath.Join(skillDir, "SKILL.md"))
		if err != nil {
			continue
		}
		body := stripFrontmatter(content)
		if absDir, err := filepath.Abs(skillDir); err == nil {
			body = strings.ReplaceAll(body, "{baseDir}", absDir)
		}
		parts = append(parts, fmt.Sprintf("### Skill: %s\n\n%s", name, body))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// BuildSkillsSummary builds the one-line-per-skill summary the agent
// uses to decide what to read with read_file.
func (l *Loader) BuildSkillsSummary() string {
	skills, err := l.ListSkills()
	if err != nil {
		return ""
	}

	var sb strings.Builder
	for _, s := range skills {
		status := "Available"
		if !s.Available {
			status = fmt.Sprintf("Unavailable (Missing: %s)", strings.Join(s.Missing, ", "))
		}
		fmt.Fprintf(&sb, "- **%s** (%s)\n", s.Name, status)
		fmt.Fprintf(&sb, "  Description: %s\n", s.Description)
		fmt.Fprintf(&sb, "  Instruction File: %s\n\n", s.Path)
	}
	return sb.String()
}

// GetAlwaysSkills returns the names of available skills flagged
// always-load.
func (l *Loader) GetAlwaysSkills() []string {
	skills, _ := l.ListSkills()
	var names []string
	for _, s := range skills {
		if s.Always && s.Available {
			names = append(names, s.Name)
		}
	}
	return names
}

func parseFrontmatter(content []byte) (Metadata, error) {
	var meta Metadata
	s := string(content)
	if strings.HasPrefix(s, "---") {
		parts := strings.SplitN(s, "---", 3)
		if len(parts) >= 3 {
			err := yaml.Unmarshal([]byte(parts[1]), &meta)
			return meta, err
		}
	}
	return meta, nil
}

func stripFrontmatter(content []byte) string {
	s := string(content)
	if strings.HasPrefix(s, "---") {
		parts := strings.SplitN(s, "---", 3)
		if len(parts) >= 3 {
			return strings.TrimSpace(parts[2])
		}
	}
	return s
}

func checkRequirements(bins, envs []string) []string {
	var missing []string
	for _, bin := range bins {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, "CLI: "+bin)
		}
	}
	for _, env := range envs {
		if os.Getenv(env) == "" {
			missing = append(missing, "ENV: "+env)
		}
	}
	return missing
}
