package cart

// CanSatisfy reports whether requested units fit in the available stock.
// Callers reject non-positive amounts before asking.
func CanSatisfy(requested int, stock Stock) bool {
	return requested <= stock.Amount
}
