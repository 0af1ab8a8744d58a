package services

// EligibilityGate decides whether a balance snapshot clears a station's minimum.
type EligibilityGate struct{}

func (EligibilityGate) IsEligible(balance, minBalance int64) bool {
	return balance >= minBalance
}
