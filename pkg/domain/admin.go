package domain

import "crypto/subtle"

// AdminCapability is an explicit token for authority-only operations: feed
// management, staleness threshold, APY, commitment revocation, and per-asset
// lockup/min-unit adjustments. Services are constructed with the capability
// they honor and admin entry points require it, so tests can mint their own
// capability and production wiring decides who holds it. This replaces an
// ambient "owner" singleton.
type AdminCapability struct {
	key string
}

// NewAdminCapability mints a capability from an operator-supplied key.
func NewAdminCapability(key string) AdminCapability {
	return AdminCapability{key: key}
}

// Grants reports whether the presented capability matches this one.
// Comparison is constant-time; an empty capability grants nothing.
func (c AdminCapability) Grants(presented AdminCapability) bool {
	if c.key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.key), []byte(presented.key)) == 1
}
