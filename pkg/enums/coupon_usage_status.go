package enums

import "fmt"

// CouponUsageStatus tracks one redemption slot from reservation to settlement.
type CouponUsageStatus string

const (
	CouponUsageStatusReserved CouponUsageStatus = "reserved"
	CouponUsageStatusFinal    CouponUsageStatus = "final"
	CouponUsageStatusVoid     CouponUsageStatus = "void"
)

var validCouponUsageStatuses = []CouponUsageStatus{
	CouponUsageStatusReserved,
	CouponUsageStatusFinal,
	CouponUsageStatusVoid,
}

// String implements fmt.Stringer.
func (c CouponUsageStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CouponUsageStatus.
func (c CouponUsageStatus) IsValid() bool {
	for _, candidate := range validCouponUsageStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCouponUsageStatus converts raw input into a CouponUsageStatus.
func ParseCouponUsageStatus(value string) (CouponUsageStatus, error) {
	for _, candidate := range validCouponUsageStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon usage status %q", value)
}
