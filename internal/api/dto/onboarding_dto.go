package dto

// BusinessInitiateRequest is the first page of the business wizard.
type BusinessInitiateRequest struct {
	BusinessName          string `json:"businessName" form:"businessName"`
	BusinessContactNumber string `json:"businessContactNumber" form:"businessContactNumber"`
	BusinessEmail         string `json:"businessEmail" form:"businessEmail"`
	BusinessType          string `json:"businessType" form:"businessType"`
	TIN                   string `json:"tin" form:"tin"`
	AdminName             string `json:"adminName" form:"adminName"`
	AdminPhoneNumber      string `json:"adminPhoneNumber" form:"adminPhoneNumber"`
	AdminEmail            string `json:"adminEmail" form:"adminEmail"`
	AdminPassword         string `json:"adminPassword" form:"adminPassword"`
	AdminPasswordConfirm  string `json:"adminPasswordConfirm" form:"adminPasswordConfirm"`
}

// SubscriberInitiateRequest is the first page of the subscriber wizard.
type SubscriberInitiateRequest struct {
	FirstName       string `json:"firstName" form:"firstName"`
	LastName        string `json:"lastName" form:"lastName"`
	OtherNames      string `json:"otherNames" form:"otherNames"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"passwordConfirm" form:"passwordConfirm"`
	Gender          string `json:"gender" form:"gender"`
	DateOfBirth     string `json:"dateOfBirth" form:"dateOfBirth"`
	PhoneNumber     string `json:"phoneNumber" form:"phoneNumber"`
	SecondaryPhone  string `json:"secondaryPhone" form:"secondaryPhone"`
	SecondaryEmail  string `json:"secondaryEmail" form:"secondaryEmail"`
}

// OTPRequest carries a 6-digit code.
type OTPRequest struct {
	OTP string `json:"otp" form:"otp"`
}

// SetPasswordRequest sets the business admin password.
type SetPasswordRequest struct {
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// SettlementAccountRequest registers a payout account.
type SettlementAccountRequest struct {
	BusinessID      string `json:"businessId" form:"businessId"`
	AccountType     string `json:"accountType" form:"accountType"`
	AccountProvider string `json:"accountProvider" form:"accountProvider"`
	AccountName     string `json:"accountName" form:"accountName"`
	AccountNumber   string `json:"accountNumber" form:"accountNumber"`
}

// ProgressResponse exposes the wizard state.
type ProgressResponse struct {
	CurrentStep int     `json:"currentStep"`
	BusinessID  *string `json:"businessId,omitempty"`
	Email       *string `json:"email,omitempty"`
}
