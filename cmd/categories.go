package cmd

// Standard command categories for organizing help display
const (
	CategoryGeneral Category = "General"
	CategoryView    Category = "View"
	CategoryTools   Category = "Tools"
	CategorySpecial Category = "Special" // Hidden from help
)

// CategoryOrder defines the display order for help screens
var CategoryOrder = []Category{
	CategoryGeneral,
	CategoryView,
	CategoryTools,
}

// GetCategoryPriority returns the display priority for a category (lower = higher priority)
func GetCategoryPriority(category Category) int {
	for i, cat := range CategoryOrder {
		if cat == category {
			return i
		}
	}
	return len(CategoryOrder) // Unknown categories go to the end
}

// IsHiddenCategory returns true if the category should be hidden from help
func IsHiddenCategory(category Category) bool {
	return category == CategorySpecial
}
