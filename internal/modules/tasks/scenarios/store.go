// Package scenarios keeps generated business scenarios in a JSON file keyed by competency set.
package scenarios

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/fsutil"
)

// Set maps a scenario key to its scenarios, in insertion order.
type Set map[string][]string

// BuildScenarioKey renders competencies as sorted "Name (PROFICIENCY)" tokens joined by ", ".
// The key does not depend on input order or proficiency case.
func BuildScenarioKey(cs []types.Competency) string {
	tokens := make([]string, 0, len(cs))
	for _, c := range cs {
		tokens = append(tokens, c.Label())
	}
	sort.Strings(tokens)
	return strings.Join(tokens, ", ")
}

// Store is a file-backed Set.
type Store struct {
	Path string
}

func NewStore(path string) *Store { return &Store{Path: path} }

// Load reads the file. A missing file is an empty set.
func (s *Store) Load() (Set, error) {
	set := Set{}
	if err := fsutil.ReadJSON(s.Path, &set); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("load scenarios: %w", err)
	}
	if set == nil {
		set = Set{}
	}
	return set, nil
}

// Get returns the scenarios stored under key.
func (s *Store) Get(key string) ([]string, error) {
	set, err := s.Load()
	if err != nil {
		return nil, err
	}
	return set[key], nil
}

// Save writes scenarios under key. With appendMode the list is concatenated onto what is
// already stored, duplicates included; otherwise it replaces it.
func (s *Store) Save(scenarios []string, key string, appendMode bool) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("save scenarios: empty key")
	}
	set, err := s.Load()
	if err != nil {
		return err
	}
	next := make([]string, 0, len(set[key])+len(scenarios))
	if appendMode {
		next = append(next, set[key]...)
	}
	next = append(next, scenarios...)
	set[key] = next
	if _, err := fsutil.WriteJSONSafe(s.Path, set, true); err != nil {
		return fmt.Errorf("save scenarios: %w", err)
	}
	return nil
}
