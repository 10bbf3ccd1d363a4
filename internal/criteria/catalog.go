package criteria

import "strings"

// Catalog is the configured list of relevance topics.
type Catalog struct {
	names []string
	index map[string]string
}

// New splits every comma-separated group into atomic criterion names.
func New(groups []string) *Catalog {
	c := &Catalog{index: map[string]string{}}
	for _, group := range groups {
		for _, part := range strings.Split(group, ",") {
			name := strings.TrimSpace(part)
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if _, ok := c.index[key]; ok {
				continue
			}
			c.index[key] = name
			c.names = append(c.names, name)
		}
	}
	return c
}

// Names returns criteria in configuration order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len reports the number of atomic criteria.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

// Canonical resolves name case-insensitively to its configured spelling.
func (c *Catalog) Canonical(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// Has reports whether name is part of the catalog.
func (c *Catalog) Has(name string) bool {
	_, ok := c.Canonical(name)
	return ok
}
