package models

import "time"

// Role is a user's authorization role.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleStaff:
		return true
	}
	return false
}

// Authentication providers a user record can originate from.
const (
	ProviderPhone    = "phone"
	ProviderPassword = "password"
	ProviderFirebase = "firebase"
)

// User is a shopper or store operator.
type User struct {
	BaseModel
	PhoneNumber     *string    `json:"phoneNumber,omitempty" gorm:"uniqueIndex;type:varchar(20)"`
	Email           *string    `json:"email,omitempty" gorm:"uniqueIndex;type:varchar(255)"`
	FirebaseUID     *string    `json:"-" gorm:"column:firebase_uid;uniqueIndex;type:varchar(128)"`
	Name            string     `json:"name" gorm:"type:varchar(100)"`
	Role            Role       `json:"role" gorm:"type:varchar(20);not null;default:customer"`
	AuthProvider    string     `json:"authProvider" gorm:"type:varchar(20)"`
	IsPhoneVerified bool       `json:"isPhoneVerified" gorm:"not null;default:false"`
	IsActive        bool       `json:"isActive" gorm:"not null;default:true"`
	IsNewUser       bool       `json:"isNewUser" gorm:"not null"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`

	OTPCode    string     `json:"-" gorm:"column:otp_code;type:varchar(6)"`
	OTPExpires *time.Time `json:"-" gorm:"column:otp_expires"`

	PasswordHash      string     `json:"-"`
	ResetTokenHash    string     `json:"-" gorm:"index;type:varchar(64)"`
	ResetTokenExpires *time.Time `json:"-"`
}

// Phone returns the phone number or "".
func (u *User) Phone() string {
	if u.PhoneNumber == nil {
		return ""
	}
	return *u.PhoneNumber
}

// EmailAddress returns the email or "".
func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// HasRole reports whether the user's role is in allowed.
func (u *User) HasRole(allowed ...Role) bool {
	for _, r := range allowed {
		if u.Role == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the user operates the store (admin or staff).
func (u *User) IsStaff() bool { return u.HasRole(RoleAdmin, RoleStaff) }
