package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/crewclaw/crewclaw/pkg/logger"
)

// Skill is one loadable instruction pack: skills/<name>/SKILL.md with a
// front-matter header carrying name and description.
type Skill struct {
	Name        string
	Description string
	Content     string
	Path        string
}

// Library scans a skills directory lazily and caches parsed skills.
type Library struct {
	dir    string
	mu     sync.Mutex
	skills map[string]*Skill
}

func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// List returns all available skills sorted by name.
func (l *Library) List() []*Skill {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scanLocked()

	out := make([]*Skill, 0, len(l.skills))
	for _, s := range l.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the named skill, rescanning the directory on a miss.
func (l *Library) Get(name string) (*Skill, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scanLocked()
	s, ok := l.skills[name]
	return s, ok
}

// Summaries renders one "name: description" line per skill for the
// system prompt.
func (l *Library) Summaries() []string {
	skills := l.List()
	lines := make([]string, 0, len(skills))
	for _, s := range skills {
		lines = append(lines, fmt.Sprintf("- %s: %s", s.Name, s.Description))
	}
	return lines
}

func (l *Library) scanLocked() {
	l.skills = make(map[string]*Skill)

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(l.dir, entry.Name(), "SKILL.md")
		skill, err := parseSkillFile(path)
		if err != nil {
			logger.WarnCF("skills", "Skipping unparseable skill",
				map[string]any{"path": path, "error": err.Error()})
			continue
		}
		if skill.Name == "" {
			skill.Name = entry.Name()
		}
		l.skills[skill.Name] = skill
	}
}

func parseSkillFile(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text := string(data)
	skill := &Skill{Path: path, Content: text}

	if !strings.HasPrefix(text, "---") {
		return skill, nil
	}
	rest := text[3:]
	end := strings.Index(rest, "---")
	if end < 0 {
		return skill, nil
	}

	header := rest[:end]
	skill.Content = strings.TrimLeft(rest[end+3:], "\r\n")
	for _, line := range strings.Split(header, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "name":
			skill.Name = value
		case "description":
			skill.Description = value
		}
	}
	return skill, nil
}
