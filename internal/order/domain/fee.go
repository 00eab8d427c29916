package domain

import "strings"

// FeePolicy gates checkout by fee category. The base category is always
// payable; a dependent category is payable only once its prerequisite has
// been paid by the same customer.
type FeePolicy struct {
	Base       FeeType
	Dependents map[FeeType]FeeType
}

func NormalizeFeeType(s string) FeeType {
	return FeeType(strings.ToUpper(strings.TrimSpace(s)))
}

func (p FeePolicy) Known(fee FeeType) bool {
	if fee == p.Base {
		return true
	}
	_, ok := p.Dependents[fee]
	return ok
}

// Prerequisite returns the category that must be paid before fee, if any.
func (p FeePolicy) Prerequisite(fee FeeType) (FeeType, bool) {
	if fee == p.Base {
		return "", false
	}
	prereq, ok := p.Dependents[fee]
	return prereq, ok
}

func (p FeePolicy) PaymentAllowed(fee FeeType, prerequisitePaid bool) bool {
	if fee == p.Base {
		return true
	}
	if _, ok := p.Dependents[fee]; ok {
		return prerequisitePaid
	}
	return false
}
