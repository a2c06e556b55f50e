package statement

import "strings"

// CategoryUncategorized is the fallback assigned when categorization cannot
// place a transaction.
const CategoryUncategorized = "Uncategorized"

// Categories is the spending/income vocabulary the categorizer chooses from.
var Categories = []string{
	"Groceries",
	"Utilities",
	"Shopping",
	"Transfer",
	"Dining",
	"Transport",
	"Healthcare",
	"Entertainment",
	"Other",
	CategoryUncategorized,
}

// CanonicalCategory matches a model-reported label against the vocabulary,
// case-insensitively, returning CategoryUncategorized when nothing matches.
func CanonicalCategory(label string) string {
	label = strings.TrimSpace(label)
	for _, c := range Categories {
		if strings.EqualFold(c, label) {
			return c
		}
	}
	return CategoryUncategorized
}
