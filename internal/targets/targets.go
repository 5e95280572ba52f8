// Package targets provides the airline interview target table and its
// question banks.
package targets

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/kiranshivaraju/cabinprep/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed targets.yaml
var embedded []byte

// ErrUnknownTarget is returned when a target name is not in the table.
var ErrUnknownTarget = errors.New("unknown interview target")

// Table is an immutable, ordered set of interview targets.
type Table struct {
	targets []models.Target
	index   map[string]int
}

type document struct {
	Targets []models.Target `yaml:"targets"`
}

// Embedded returns the built-in target table. It panics if the embedded
// document is invalid, which is a build defect.
func Embedded() *Table {
	t, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("targets: embedded table: %v", err))
	}
	return t
}

// Load reads a target table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("targets: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Table.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("targets: parse: %w", err)
	}
	if len(doc.Targets) == 0 {
		return nil, fmt.Errorf("targets: at least one target is required")
	}

	t := &Table{index: make(map[string]int, len(doc.Targets))}
	for i, tg := range doc.Targets {
		tg.Name = strings.TrimSpace(tg.Name)
		if tg.Name == "" {
			return nil, fmt.Errorf("targets: targets[%d]: name is required", i)
		}
		if len(tg.Questions) == 0 {
			return nil, fmt.Errorf("targets: %s: at least one question is required", tg.Name)
		}
		key := strings.ToLower(tg.Name)
		if _, dup := t.index[key]; dup {
			return nil, fmt.Errorf("targets: duplicate target %q", tg.Name)
		}
		t.index[key] = len(t.targets)
		t.targets = append(t.targets, tg)
	}
	return t, nil
}

// All returns every target in table order.
func (t *Table) All() []models.Target {
	out := make([]models.Target, len(t.targets))
	for i, tg := range t.targets {
		out[i] = models.Target{Name: tg.Name, Questions: append([]string(nil), tg.Questions...)}
	}
	return out
}

// Lookup finds a target by name, ignoring case and surrounding space.
func (t *Table) Lookup(name string) (models.Target, error) {
	i, ok := t.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return models.Target{}, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	tg := t.targets[i]
	return models.Target{Name: tg.Name, Questions: append([]string(nil), tg.Questions...)}, nil
}

// RandomQuestion picks one question of the named target. A nil rng uses
// the global source.
func (t *Table) RandomQuestion(name string, rng *rand.Rand) (string, error) {
	tg, err := t.Lookup(name)
	if err != nil {
		return "", err
	}
	if rng == nil {
		return tg.Questions[rand.IntN(len(tg.Questions))], nil
	}
	return tg.Questions[rng.IntN(len(tg.Questions))], nil
}
