package core

// CategoryTotal represents an amount aggregated by category label.
type CategoryTotal struct {
	Category string
	Total    Money
}

// Summary is the aggregate view over one owner's expenses: the grand
// total plus per-category sums.
type Summary struct {
	Total      Money
	ByCategory []CategoryTotal
}
