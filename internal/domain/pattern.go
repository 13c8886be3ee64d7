package domain

// Pattern identifies the markup shape a page uses to embed its category JSON.
type Pattern string

func (p Pattern) String() string {
	return string(p)
}

const (
	PatternCatalogMenu    Pattern = "catalogMenu"           // Root page menu
	PatternSubtree        Pattern = "searchCategorySubtree" // Two level tree
	PatternHorizontalMenu Pattern = "catalogHorizontalMenu" // Flat list with inline sections
	PatternObjectLine     Pattern = "objectLine"            // Flat list, no nesting
)

func (p Pattern) GetPatternName() string {
	switch p {
	case PatternCatalogMenu:
		return "catalog menu"
	case PatternSubtree:
		return "subtree"
	case PatternHorizontalMenu:
		return "horizontal menu"
	case PatternObjectLine:
		return "object line"
	default:
		return "unknown"
	}
}
