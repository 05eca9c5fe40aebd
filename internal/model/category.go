package model

import "strings"

// Category is one entry of the spending-purpose taxonomy.
type Category struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
}

// Taxonomy is the ordered list of known categories.
type Taxonomy struct {
	index      map[string]int
	categories []Category
}

// NewTaxonomy builds a taxonomy, keeping the first occurrence of duplicate names.
func NewTaxonomy(categories []Category) *Taxonomy {
	t := &Taxonomy{
		index:      make(map[string]int, len(categories)),
		categories: make([]Category, 0, len(categories)),
	}
	for _, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		if _, exists := t.index[name]; exists {
			continue
		}
		c.Name = name
		t.index[name] = len(t.categories)
		t.categories = append(t.categories, c)
	}
	return t
}

// Contains reports whether name is a known category.
func (t *Taxonomy) Contains(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[name]
	return ok
}

// Canonical resolves name to a known category, ignoring case and surrounding space.
func (t *Taxonomy) Canonical(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	name = strings.TrimSpace(name)
	if _, ok := t.index[name]; ok {
		return name, true
	}
	for _, c := range t.categories {
		if strings.EqualFold(c.Name, name) {
			return c.Name, true
		}
	}
	return "", false
}

// Lookup returns the category with the given name.
func (t *Taxonomy) Lookup(name string) (Category, bool) {
	if t == nil {
		return Category{}, false
	}
	i, ok := t.index[name]
	if !ok {
		return Category{}, false
	}
	return t.categories[i], true
}

// Names returns category names in taxonomy order.
func (t *Taxonomy) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.categories))
	for i, c := range t.categories {
		names[i] = c.Name
	}
	return names
}

// Categories returns a copy of the categories in taxonomy order.
func (t *Taxonomy) Categories() []Category {
	if t == nil {
		return nil
	}
	out := make([]Category, len(t.categories))
	copy(out, t.categories)
	return out
}

// Len returns the number of categories.
func (t *Taxonomy) Len() int {
	if t == nil {
		return 0
	}
	return len(t.categories)
}
