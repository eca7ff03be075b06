package models

// ColumnSet is an insertion-ordered set of column names.
type ColumnSet struct {
	order []string
	seen  map[string]struct{}
}

// NewColumnSet returns a set seeded with the given names in order.
func NewColumnSet(seed ...string) *ColumnSet {
	c := &ColumnSet{seen: make(map[string]struct{}, len(seed))}
	for _, name := range seed {
		c.Add(name)
	}
	return c
}

// Add appends name unless it is already present.
func (c *ColumnSet) Add(name string) {
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	if _, ok := c.seen[name]; ok {
		return
	}
	c.seen[name] = struct{}{}
	c.order = append(c.order, name)
}

func (c *ColumnSet) Has(name string) bool {
	_, ok := c.seen[name]
	return ok
}

func (c *ColumnSet) Len() int {
	return len(c.order)
}

// Columns returns a copy of the names in first-seen order.
func (c *ColumnSet) Columns() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
