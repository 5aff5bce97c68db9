package domain

// Wizard steps. Step 1 is the initial form of either wizard.
const (
	StepDetails              = 1
	StepVerifyOTP            = 2
	StepSetPassword          = 3
	StepVerificationDocument = 4
	StepProofOfAddress       = 5
	StepSettlementAccount    = 6
)

// OnboardingProgress records where a signup wizard left off.
type OnboardingProgress struct {
	CurrentStep int     `json:"currentStep"`
	BusinessID  *string `json:"businessId"`
	Email       *string `json:"email"`
}

// NewOnboardingProgress returns the progress of a wizard that has not started.
func NewOnboardingProgress() OnboardingProgress {
	return OnboardingProgress{CurrentStep: StepDetails}
}

// Settlement account types accepted by the backend.
const (
	AccountTypeBank = "Bank"
	AccountTypeMomo = "Momo"
)

// SettlementProvider is a bank or mobile-money operator.
type SettlementProvider struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
