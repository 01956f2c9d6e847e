package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/terra-clan/staffing-engine/internal/matching"
	"github.com/terra-clan/staffing-engine/internal/models"
)

const (
	kindPlaybook = "playbook"
	kindSkills   = "skills"
)

// Loader manages execution playbooks and skill keyword extensions
type Loader struct {
	mu        sync.RWMutex
	playbooks map[string]*models.Playbook
	skills    []matching.KeywordRule
	logger    *zap.Logger
}

// NewLoader creates a loader seeded with the built-in playbooks
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{
		playbooks: make(map[string]*models.Playbook),
		logger:    logger,
	}
	for _, p := range builtinPlaybooks() {
		l.playbooks[p.Name] = p
	}
	return l
}

// LoadFromDir loads all YAML files from a directory and its direct subdirectories.
// Files that fail to parse are logged and skipped.
func (l *Loader) LoadFromDir(dir string) error {
	l.logger.Info("loading templates from directory", zap.String("dir", dir))

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("templates directory: %w", err)
	}

	patterns := []string{"*.yaml", "*.yml"}
	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)

		subMatches, err := filepath.Glob(filepath.Join(dir, "*", pattern))
		if err != nil {
			continue
		}
		files = append(files, subMatches...)
	}
	sort.Strings(files)

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			l.logger.Warn("failed to load template", zap.String("file", file), zap.Error(err))
			continue
		}
		loaded++
	}

	l.logger.Info("templates loaded", zap.Int("count", loaded), zap.Int("total_files", len(files)))
	return nil
}

// LoadFromFile loads a single playbook or skills file
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	switch strings.ToLower(f.Kind) {
	case kindPlaybook, "":
		p, err := f.playbook()
		if err != nil {
			return err
		}
		l.Add(p)
		l.logger.Debug("playbook loaded", zap.String("name", p.Name), zap.Int("steps", len(p.Steps)))
	case kindSkills:
		if len(f.Rules) == 0 {
			return fmt.Errorf("skills file has no rules")
		}
		l.mu.Lock()
		l.skills = append(l.skills, f.Rules...)
		l.mu.Unlock()
		l.logger.Debug("skill rules loaded", zap.Int("rules", len(f.Rules)))
	default:
		return fmt.Errorf("unknown kind %q", f.Kind)
	}
	return nil
}

// Get retrieves a playbook by name
func (l *Loader) Get(name string) *models.Playbook {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.playbooks[name]
}

// List returns all playbooks in match order: priority descending, then name
func (l *Loader) List() []*models.Playbook {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Playbook, 0, len(l.playbooks))
	for _, p := range l.playbooks {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// Add programmatically adds or replaces a playbook
func (l *Loader) Add(p *models.Playbook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.playbooks[p.Name] = p
}

// Remove removes a playbook by name
func (l *Loader) Remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.playbooks, name)
}

// PlaybookFor picks the playbook for a task name. The first keyword match in
// List order wins; otherwise the fallback playbook is used.
func (l *Loader) PlaybookFor(taskName string) *models.Playbook {
	lower := strings.ToLower(taskName)

	var fallback *models.Playbook
	for _, p := range l.List() {
		if p.Fallback && fallback == nil {
			fallback = p
		}
		for _, k := range p.Keywords {
			if k != "" && strings.Contains(lower, strings.ToLower(k)) {
				return p
			}
		}
	}

	if fallback == nil {
		return defaultPlaybook()
	}
	return fallback
}

// SkillRules returns the skill keyword rules loaded from files
func (l *Loader) SkillRules() []matching.KeywordRule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]matching.KeywordRule(nil), l.skills...)
}

// ApplySkills extends the table with the loaded skill rules
func (l *Loader) ApplySkills(table *matching.SkillTable) {
	for _, r := range l.SkillRules() {
		table.Extend(r.Keyword, r.Skills...)
	}
}

// --- YAML file structs ---

// templateFile represents the YAML structure of a playbook or skills file
type templateFile struct {
	Kind        string                 `yaml:"kind"`
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Keywords    []string               `yaml:"keywords"`
	Priority    int                    `yaml:"priority"`
	Fallback    bool                   `yaml:"fallback"`
	Steps       []stepFile             `yaml:"steps"`
	Rules       []matching.KeywordRule `yaml:"rules"`
}

type stepFile struct {
	Description string `yaml:"description"`
	Duration    string `yaml:"duration"`
	Result      string `yaml:"result"`
}

func (f templateFile) playbook() (*models.Playbook, error) {
	if f.Name == "" {
		return nil, fmt.Errorf("playbook name is required")
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("playbook %s has no steps", f.Name)
	}
	if len(f.Keywords) == 0 && !f.Fallback {
		return nil, fmt.Errorf("playbook %s needs keywords or fallback", f.Name)
	}

	steps := make([]models.ExecutionStep, 0, len(f.Steps))
	for i, s := range f.Steps {
		if s.Description == "" {
			return nil, fmt.Errorf("playbook %s step %d: description is required", f.Name, i+1)
		}
		d := time.Second
		if s.Duration != "" {
			parsed, err := time.ParseDuration(s.Duration)
			if err != nil {
				return nil, fmt.Errorf("playbook %s step %d: %w", f.Name, i+1, err)
			}
			d = parsed
		}
		steps = append(steps, models.ExecutionStep{
			Description: s.Description,
			Duration:    d,
			Result:      s.Result,
		})
	}

	return &models.Playbook{
		Name:        f.Name,
		Description: f.Description,
		Keywords:    f.Keywords,
		Priority:    f.Priority,
		Fallback:    f.Fallback,
		Steps:       steps,
	}, nil
}
