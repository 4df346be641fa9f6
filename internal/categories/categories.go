package categories

import "strings"

// Category maps a display name to the upstream feed section it is sourced
// from and the image style used when illustrating its articles.
type Category struct {
	Name    string // display name, e.g. "World News"
	Section string // upstream section identifier, e.g. "world"
	Style   string // image generation style for this category
}

// All is the fixed set of published categories. The set is static
// configuration and is never mutated at runtime; every category owns its
// own storage collection.
var All = []Category{
	{Name: "World News", Section: "world", Style: "photorealistic"},
	{Name: "Politics", Section: "politics", Style: "photorealistic"},
	{Name: "Tech", Section: "technology", Style: "sleek digital art"},
	{Name: "Business", Section: "business", Style: "photorealistic"},
	{Name: "Sports", Section: "sport", Style: "dynamic action photography"},
	{Name: "Entertainment", Section: "culture", Style: "vibrant editorial illustration"},
}

// Collection returns the storage collection name for the category: the
// display name lowercased with spaces replaced by underscores.
func (c Category) Collection() string {
	return strings.ReplaceAll(strings.ToLower(c.Name), " ", "_")
}

// Lookup resolves a category from either its display name ("World News")
// or its collection form ("world_news"), case-insensitively. The boolean
// is false when no category matches.
func Lookup(name string) (Category, bool) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	for _, c := range All {
		if c.Collection() == norm {
			return c, true
		}
	}
	return Category{}, false
}

// ByName resolves a category by its exact display name.
func ByName(name string) (Category, bool) {
	for _, c := range All {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
