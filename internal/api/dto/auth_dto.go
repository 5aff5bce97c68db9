package dto

import "time"

// LoginRequest payload for sign-in.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// ForgotPasswordRequest starts password recovery.
type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email"`
}

// ResetPasswordRequest completes password recovery.
type ResetPasswordRequest struct {
	Email           string `json:"email" form:"email"`
	OTP             string `json:"otp" form:"otp"`
	NewPassword     string `json:"newPassword" form:"newPassword"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// SessionResponse is returned after sign-in.
type SessionResponse struct {
	User      UserResponse `json:"user"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// AccessTokenResponse is the bootstrap exchange result.
type AccessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// UserResponse is the public view of the current user.
type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	BusinessID  string `json:"businessId,omitempty"`
	DisplayName string `json:"displayName"`
}
