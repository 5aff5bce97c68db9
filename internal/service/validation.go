package service

import (
	"regexp"
	"strings"

	apperrors "github.com/spec-kit/onboarding-portal/pkg/util"
)

// Messages shown to the user when a form fails validation.
const (
	MsgMissingCredentials = "Please enter both email and password."
	MsgMissingEmail       = "Please enter your email address."
	MsgRequiredFields     = "Please fill in all required fields."
	MsgPasswordTooShort   = "Password must be at least 8 characters long."
	MsgSetPasswordShort   = "Password must be at least 8 characters."
	MsgPasswordStrength   = "Password must contain uppercase, lowercase, number and special character."
	MsgPasswordMismatch   = "Passwords do not match."
	MsgInvalidResetCode   = "Please enter a valid 6-digit code."
	MsgInvalidOTP         = "Please enter a valid 6-digit OTP code."
	MsgSubmissionPending  = "Submission in progress. Please wait."
	MsgMissingDocument    = "Please choose a document and its type."
	MsgInvalidAccountType = "Please choose Bank or Momo as the account type."
	MsgNoOnboarding       = "Your signup session has expired. Please start again."
)

const minPasswordLength = 8

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

func validationError(message string) error {
	return apperrors.NewValidationError(message, nil)
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

func validOTP(otp string) bool {
	return otpPattern.MatchString(otp)
}

// strongPassword requires a lowercase and an uppercase letter, a digit and one of @$!%*?&.
func strongPassword(p string) bool {
	var lower, upper, digit, special bool
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune("@$!%*?&", r):
			special = true
		}
	}
	return lower && upper && digit && special
}

// checkNewPassword applies the shared length and confirmation rules.
func checkNewPassword(password, confirm, tooShort string) error {
	if len(password) < minPasswordLength {
		return validationError(tooShort)
	}
	if password != confirm {
		return validationError(MsgPasswordMismatch)
	}
	return nil
}
