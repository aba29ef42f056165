package account

import "slices"

// PrivacyMode says who may contact the account. Zero is not a valid mode.
type PrivacyMode int

const (
	PrivacyAllowAll PrivacyMode = iota + 1
	PrivacyDenyAll
	PrivacyAllowUsers
	PrivacyDenyUsers
	PrivacyAllowBuddyList
)

func (m PrivacyMode) String() string {
	switch m {
	case PrivacyAllowAll:
		return "allow_all"
	case PrivacyDenyAll:
		return "deny_all"
	case PrivacyAllowUsers:
		return "allow_users"
	case PrivacyDenyUsers:
		return "deny_users"
	case PrivacyAllowBuddyList:
		return "allow_buddylist"
	default:
		return "invalid"
	}
}

// Valid reports whether m is one of the defined modes
func (m PrivacyMode) Valid() bool {
	return m >= PrivacyAllowAll && m <= PrivacyAllowBuddyList
}

// PrivacyMode returns the privacy mode
func (a *Account) PrivacyMode() PrivacyMode { return a.privacy }

// SetPrivacyMode sets the privacy mode. Invalid modes fall back to
// PrivacyAllowAll.
func (a *Account) SetPrivacyMode(m PrivacyMode) {
	if !m.Valid() {
		m = PrivacyAllowAll
	}
	a.privacy = m
	a.schedule()
}

// Permit returns the permit list
func (a *Account) Permit() []string { return slices.Clone(a.permit) }

// Deny returns the deny list
func (a *Account) Deny() []string { return slices.Clone(a.deny) }

// AddPermit adds name to the permit list. It returns false if the
// normalized name is already there.
func (a *Account) AddPermit(name string) bool {
	return a.addPrivacy(&a.permit, name)
}

// RemovePermit removes name from the permit list
func (a *Account) RemovePermit(name string) bool {
	return a.removePrivacy(&a.permit, name)
}

// AddDeny adds name to the deny list
func (a *Account) AddDeny(name string) bool {
	return a.addPrivacy(&a.deny, name)
}

// RemoveDeny removes name from the deny list
func (a *Account) RemoveDeny(name string) bool {
	return a.removePrivacy(&a.deny, name)
}

// IsPermitted reports whether name is on the permit list
func (a *Account) IsPermitted(name string) bool {
	return slices.Contains(a.permit, a.Normalize(name))
}

// IsDenied reports whether name is on the deny list
func (a *Account) IsDenied(name string) bool {
	return slices.Contains(a.deny, a.Normalize(name))
}

func (a *Account) addPrivacy(list *[]string, name string) bool {
	norm := a.Normalize(name)
	if slices.Contains(*list, norm) {
		return false
	}
	*list = append(*list, norm)
	a.schedule()
	return true
}

func (a *Account) removePrivacy(list *[]string, name string) bool {
	norm := a.Normalize(name)
	i := slices.Index(*list, norm)
	if i < 0 {
		return false
	}
	*list = slices.Delete(*list, i, i+1)
	a.schedule()
	return true
}
