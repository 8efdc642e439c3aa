// Package points holds the fixed schedule that converts a declared trash drop
// into ledger points.
package points

// Category is a declared trash category.
type Category string

const (
	Metal   Category = "metal"
	Wet     Category = "wet"
	Dry     Category = "dry"
	Plastic Category = "plastic"
)

// fallbackMultiplier applies to any category outside the table.
const fallbackMultiplier = 1

var multipliers = map[Category]int{
	Metal:   5,
	Wet:     2,
	Dry:     3,
	Plastic: 4,
}

// Categories returns the closed set of accepted categories in a stable order.
func Categories() []Category {
	return []Category{Metal, Wet, Dry, Plastic}
}

// Valid reports whether category belongs to the closed set.
func Valid(category string) bool {
	_, ok := multipliers[Category(category)]
	return ok
}

// Multiplier returns the per-item points for category, or 1 for anything
// outside the table.
func Multiplier(category string) int {
	if m, ok := multipliers[Category(category)]; ok {
		return m
	}
	return fallbackMultiplier
}

// Compute returns multiplier × itemCount. It never fails; a non-positive
// itemCount yields 0.
func Compute(category string, itemCount int) int {
	if itemCount <= 0 {
		return 0
	}
	return Multiplier(category) * itemCount
}
