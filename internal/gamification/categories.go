// Package gamification holds the pure rules of the progress engine: the
// category registry, the level model, the streak calculator and achievement
// derivation. Nothing here touches storage.
package gamification

const (
	CategoryPhysical      = "physical"
	CategoryMental        = "mental"
	CategoryCareer        = "career"
	CategorySocial        = "social"
	CategoryCreative      = "creative"
	CategoryFinancial     = "financial"
	CategorySpiritual     = "spiritual"
	CategoryEnvironmental = "environmental"
)

// CategoryInfo is the display metadata of a category.
type CategoryInfo struct {
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

var categoryOrder = []string{
	CategoryPhysical,
	CategoryMental,
	CategoryCareer,
	CategorySocial,
	CategoryCreative,
	CategoryFinancial,
	CategorySpiritual,
	CategoryEnvironmental,
}

var categoryInfo = map[string]CategoryInfo{
	CategoryPhysical:      {Name: "Physical Health", Icon: "💪", Color: "#FF6B6B", Description: "Endurance, strength, flexibility"},
	CategoryMental:        {Name: "Mental Strength", Icon: "🧠", Color: "#4ECDC4", Description: "Focus, memory, problem solving"},
	CategoryCareer:        {Name: "Career", Icon: "💼", Color: "#45B7D1", Description: "Skills, productivity, work"},
	CategorySocial:        {Name: "Social Skills", Icon: "👥", Color: "#96CEB4", Description: "Networking, communication, empathy"},
	CategoryCreative:      {Name: "Creativity", Icon: "🎨", Color: "#DDA0DD", Description: "Art, music, writing"},
	CategoryFinancial:     {Name: "Finances", Icon: "💰", Color: "#FFD700", Description: "Saving, investing, budgeting"},
	CategorySpiritual:     {Name: "Spirituality", Icon: "🧘", Color: "#9B59B6", Description: "Meditation, mindfulness, balance"},
	CategoryEnvironmental: {Name: "Environment", Icon: "🌱", Color: "#27AE60", Description: "Sustainability, green living"},
}

// UnknownCategory is returned by Info for ids outside the registry.
var UnknownCategory = CategoryInfo{Name: "Other", Icon: "📌", Color: "#95A5A6"}

// IsValidCategory reports whether id is a registered category.
func IsValidCategory(id string) bool {
	_, ok := categoryInfo[id]
	return ok
}

// Info returns the display metadata for id, or UnknownCategory.
func Info(id string) CategoryInfo {
	if info, ok := categoryInfo[id]; ok {
		return info
	}
	return UnknownCategory
}

// Categories lists every registered category id in display order.
func Categories() []string {
	out := make([]string, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}
