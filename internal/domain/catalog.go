package domain

// CategoryRecord is a node of the site's browsing hierarchy.
type CategoryRecord struct {
	Name     string           `json:"name"`
	URL      string           `json:"url"`                // Canonical path, e.g. /category/televizory-15528/
	Children []CategoryRecord `json:"sections,omitempty"` // Ordered, unique by normalized url
}

// IsLeaf reports whether the category has no children.
func (c CategoryRecord) IsLeaf() bool {
	return len(c.Children) == 0
}

// Leaves returns the leaf categories of the tree rooted at c, depth first.
func (c CategoryRecord) Leaves() []CategoryRecord {
	if c.IsLeaf() {
		return []CategoryRecord{c}
	}

	leaves := make([]CategoryRecord, 0, len(c.Children))
	for _, child := range c.Children {
		leaves = append(leaves, child.Leaves()...)
	}
	return leaves
}

// CategoryResults maps a crawled page url to the categories extracted from it.
type CategoryResults map[string][]CategoryRecord
