package domain

// UserRole is the role carried in access token claims.
type UserRole int

const (
	RoleNormal     UserRole = 1
	RoleEnterprise UserRole = 2
	RoleAdmin      UserRole = 3
)

func (r UserRole) String() string {
	switch r {
	case RoleNormal:
		return "normal"
	case RoleEnterprise:
		return "enterprise"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

func (r UserRole) Valid() bool {
	return r >= RoleNormal && r <= RoleAdmin
}

// UserStatus is the account state carried in access token claims.
type UserStatus int

const (
	StatusActivated   UserStatus = 1
	StatusDisabled    UserStatus = 2
	StatusUnderReview UserStatus = 3
	StatusRejected    UserStatus = 4
)

func (s UserStatus) String() string {
	switch s {
	case StatusActivated:
		return "activated"
	case StatusDisabled:
		return "disabled"
	case StatusUnderReview:
		return "under_review"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func (s UserStatus) Valid() bool {
	return s >= StatusActivated && s <= StatusRejected
}

// ParseRole maps a role name back to its value.
func ParseRole(name string) (UserRole, bool) {
	for _, r := range []UserRole{RoleNormal, RoleEnterprise, RoleAdmin} {
		if r.String() == name {
			return r, true
		}
	}
	return 0, false
}

// ParseStatus maps a status name back to its value.
func ParseStatus(name string) (UserStatus, bool) {
	for _, s := range []UserStatus{StatusActivated, StatusDisabled, StatusUnderReview, StatusRejected} {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}
