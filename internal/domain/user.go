package domain

// UserRole differentiates business administrators from subscribers.
type UserRole string

const (
	RoleNone          UserRole = ""
	RoleBusinessAdmin UserRole = "BUSINESS_ADMIN"
	RoleSubscriber    UserRole = "SUBSCRIBER"
)

// Business is the merchant an administrator manages.
type Business struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	ContactNumber string `json:"contactNumber"`
	BusinessType  string `json:"businessType"`
	Status        string `json:"status"`
}

// BusinessAdmin is the business-admin sub-profile of a user.
type BusinessAdmin struct {
	ID         string   `json:"id"`
	BusinessID string   `json:"businessId"`
	Name       string   `json:"name,omitempty"`
	Business   Business `json:"business"`
}

// Subscriber is the individual subscriber sub-profile of a user.
type Subscriber struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// CurrentUser is the profile returned by the current-user endpoint.
type CurrentUser struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	Name          string         `json:"name"`
	PhoneNumber   string         `json:"phoneNumber"`
	Status        string         `json:"status"`
	BusinessAdmin *BusinessAdmin `json:"businessAdmin,omitempty"`
	Subscriber    *Subscriber    `json:"subscriber,omitempty"`
}

// Role reports which sub-profile the user carries. Business admin wins when both are present.
func (u *CurrentUser) Role() UserRole {
	switch {
	case u == nil:
		return RoleNone
	case u.BusinessAdmin != nil:
		return RoleBusinessAdmin
	case u.Subscriber != nil:
		return RoleSubscriber
	default:
		return RoleNone
	}
}

// DisplayName picks the sub-profile name, falling back to the email.
func (u *CurrentUser) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.BusinessAdmin != nil && u.BusinessAdmin.Name != "" {
		return u.BusinessAdmin.Name
	}
	if u.Subscriber != nil && u.Subscriber.Name != "" {
		return u.Subscriber.Name
	}
	return u.Email
}

// UserUpdate carries a partial profile change. Nil fields are left untouched.
type UserUpdate struct {
	Email       *string
	Name        *string
	PhoneNumber *string
	Status      *string
}

// Apply merges the update into u.
func (p UserUpdate) Apply(u *CurrentUser) {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
}
