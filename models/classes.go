package models

import (
	"fmt"
	"sort"
	"strings"
)

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index used by the taxonomy.
	Index int `json:"id" yaml:"id"`
	// The human-readable label.
	Name string `json:"name" yaml:"name"`
}

// OutputClassSet ties a taxonomy to its full list of labels.
type OutputClassSet struct {
	// Taxonomy identifier.
	Style Taxonomy
	// Classes that are supported and mappable. Indices need not be contiguous.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
	// idxToName for fast lookup by index
	idxToName map[int]string
}

// BuildNameIndexMap builds or rebuilds the name<->index maps.
// Names are matched case-insensitively with surrounding space trimmed.
func (s *OutputClassSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Classes))
	s.idxToName = make(map[int]string, len(s.Classes))
	for _, c := range s.Classes {
		s.nameToIdx[normalizeName(c.Name)] = c.Index
		s.idxToName[c.Index] = c.Name
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ClassManager holds all registered class sets.
type ClassManager struct {
	sets map[Taxonomy]*OutputClassSet
}

// NewClassManager initializes and registers the given sets.
func NewClassManager(allSets ...*OutputClassSet) *ClassManager {
	mgr := &ClassManager{sets: make(map[Taxonomy]*OutputClassSet)}
	for _, set := range allSets {
		mgr.Register(set)
	}
	return mgr
}

// Register adds or replaces a class set.
func (m *ClassManager) Register(set *OutputClassSet) {
	set.BuildNameIndexMap()
	m.sets[set.Style] = set
}

// GetName returns the class name for a given taxonomy and index.
func (m *ClassManager) GetName(style Taxonomy, idx int) (string, error) {
	set, ok := m.sets[style]
	if !ok {
		return "", fmt.Errorf("taxonomy %q not registered", style)
	}
	name, ok := set.idxToName[idx]
	if !ok {
		return "", fmt.Errorf("index %d not found in taxonomy %q", idx, style)
	}
	return name, nil
}

// GetIndex returns the class index for a given taxonomy and name.
func (m *ClassManager) GetIndex(style Taxonomy, name string) (int, error) {
	set, ok := m.sets[style]
	if !ok {
		return -1, fmt.Errorf("taxonomy %q not registered", style)
	}
	idx, ok := set.nameToIdx[normalizeName(name)]
	if !ok {
		return -1, fmt.Errorf("name %q not found in taxonomy %q", name, style)
	}
	return idx, nil
}

// MapClass maps an index from one taxonomy to another, returning the target OutputClass.
func (m *ClassManager) MapClass(fromStyle Taxonomy, idx int, toStyle Taxonomy) (OutputClass, error) {
	name, err := m.GetName(fromStyle, idx)
	if err != nil {
		return OutputClass{}, err
	}
	toIdx, err := m.GetIndex(toStyle, name)
	if err != nil {
		return OutputClass{}, err
	}
	return OutputClass{Index: toIdx, Name: name}, nil
}

// ClassMapByName builds a ClassMap that sends every class of fromStyle to the
// class of toStyle carrying the same name. Classes without a namesake are left
// out, so they pass through unchanged at evaluation time.
//
// Arguments:
//   - fromStyle: The detector taxonomy.
//   - toStyle: The evaluation taxonomy.
//
// Returns:
//   - ClassMap: Index translations for every shared name.
//   - error: If either taxonomy is not registered.
func (m *ClassManager) ClassMapByName(fromStyle, toStyle Taxonomy) (ClassMap, error) {
	from, ok := m.sets[fromStyle]
	if !ok {
		return nil, fmt.Errorf("taxonomy %q not registered", fromStyle)
	}
	if _, ok := m.sets[toStyle]; !ok {
		return nil, fmt.Errorf("taxonomy %q not registered", toStyle)
	}

	out := make(ClassMap)
	for _, c := range from.Classes {
		target, err := m.MapClass(fromStyle, c.Index, toStyle)
		if err != nil {
			continue
		}
		out[c.Index] = target.Index
	}
	return out, nil
}

// Indices returns the indices of every class in the taxonomy whose name is
// listed, sorted ascending. Unknown names are an error.
func (m *ClassManager) Indices(style Taxonomy, names ...string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, name := range names {
		idx, err := m.GetIndex(style, name)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}
