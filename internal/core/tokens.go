package core

// EstimateTokens is a cheap token estimator (~4 chars ≈ 1 token), used for
// chunk sizing and for usage totals when a provider's batch API reports none.
func EstimateTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
