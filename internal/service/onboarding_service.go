package service

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/onboarding-portal/internal/auth"
	"github.com/spec-kit/onboarding-portal/internal/domain"
	"github.com/spec-kit/onboarding-portal/internal/events"
	"github.com/spec-kit/onboarding-portal/internal/gateway"
	"github.com/spec-kit/onboarding-portal/internal/session"
	apperrors "github.com/spec-kit/onboarding-portal/pkg/util"
)

// Wizard flows.
const (
	FlowBusiness   = "business"
	FlowSubscriber = "subscriber"
)

// Wizard pages, in order.
const (
	BusinessVerifyOTPPath      = "/signup/business/verify-otp"
	BusinessSetPasswordPath    = "/signup/business/set-password"
	BusinessDocumentsPath      = "/signup/business/verification-documents"
	BusinessProofOfAddressPath = "/signup/business/proof-of-address"
	BusinessSettlementPath     = "/signup/business/settlement-account"
	SubscriberVerifyOTPPath    = "/signup/subscriber/verify-otp"
)

// OnboardingService drives the business and subscriber signup wizards.
type OnboardingService struct {
	clientTokens *ClientTokens
	locker       session.Locker
	dispatcher   events.Dispatcher
	logger       *zap.Logger
}

// OnboardingDependencies encapsulates collaborators of the onboarding service.
type OnboardingDependencies struct {
	ClientTokens *ClientTokens
	Locker       session.Locker
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewOnboardingService builds the service.
func NewOnboardingService(deps OnboardingDependencies) *OnboardingService {
	if deps.Locker == nil {
		deps.Locker = session.NewMemoryLocker()
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = events.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &OnboardingService{
		clientTokens: deps.ClientTokens,
		locker:       deps.Locker,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
	}
}

// BusinessApplication is the first page of the business wizard.
type BusinessApplication struct {
	BusinessName          string `json:"businessName"`
	BusinessContactNumber string `json:"businessContactNumber"`
	BusinessEmail         string `json:"businessEmail"`
	BusinessType          string `json:"businessType"`
	TIN                   string `json:"tin,omitempty"`
	AdminName             string `json:"adminName"`
	AdminPhoneNumber      string `json:"adminPhoneNumber"`
	AdminEmail            string `json:"adminEmail"`
	AdminPassword         string `json:"adminPassword"`
	AdminPasswordConfirm  string `json:"-"`
}

func (a BusinessApplication) validate() error {
	if blank(a.BusinessName, a.BusinessContactNumber, a.BusinessEmail, a.BusinessType,
		a.AdminName, a.AdminPhoneNumber, a.AdminEmail, a.AdminPassword) {
		return validationError(MsgRequiredFields)
	}
	return checkNewPassword(a.AdminPassword, a.AdminPasswordConfirm, MsgPasswordTooShort)
}

type initiateResponse struct {
	BusinessID string `json:"businessId"`
	Business   *struct {
		ID string `json:"id"`
	} `json:"business"`
}

func (r initiateResponse) businessID() string {
	if r.BusinessID != "" {
		return r.BusinessID
	}
	if r.Business != nil {
		return r.Business.ID
	}
	return ""
}

// InitiateBusiness submits the business application and moves to OTP verification.
func (s *OnboardingService) InitiateBusiness(ctx context.Context, rs *auth.RequestSession, in BusinessApplication) error {
	if err := in.validate(); err != nil {
		return err
	}
	return s.guard(ctx, rs, "business.initiate", func() error {
		api, err := s.clientTokens.ClientAPI(ctx, rs)
		if err != nil {
			return err
		}
		var out initiateResponse
		if _, err := api.PostJSON(ctx, "/business/onboarding/initiate", in, &out); err != nil {
			return err
		}
		if id := out.businessID(); id != "" {
			if err := rs.Stores.Onboarding.SetBusinessID(ctx, id); err != nil {
				return apperrors.NewInternalError(err)
			}
		}
		if err := rs.Stores.Onboarding.SetEmail(ctx, in.AdminEmail); err != nil {
			return apperrors.NewInternalError(err)
		}
		return s.advance(ctx, rs, FlowBusiness, "initiate", domain.StepVerifyOTP, BusinessVerifyOTPPath)
	})
}

// VerifyBusinessOTP confirms the admin email and moves to password setup.
func (s *OnboardingService) VerifyBusinessOTP(ctx context.Context, rs *auth.RequestSession, otp string) error {
	email, err := s.wizardEmail(rs)
	if err != nil {
		return err
	}
	if !validOTP(otp) {
		return validationError(MsgInvalidOTP)
	}
	return s.guard(ctx, rs, "business.verify", func() error {
		api, err := s.clientTokens.ClientAPI(ctx, rs)
		if err != nil {
			return err
		}
		if _, err := api.PostJSON(ctx, "/auth/verify-otp", map[string]string{"email": email, "otp": otp}, nil); err != nil {
			return err
		}
		return s.advance(ctx, rs, FlowBusiness, "verify-otp", domain.StepSetPassword, BusinessSetPasswordPath)
	})
}

// ResendBusinessOTP asks the backend for a new admin OTP.
func (s *OnboardingService) ResendBusinessOTP(ctx context.Context, rs *auth.RequestSession) error {
	email, err := s.wizardEmail(rs)
	if err != nil {
		return err
	}
	return s.guard(ctx, rs, "business.resend", func() error {
		api, err := s.clientTokens.ClientAPI(ctx, rs)
		if err != nil {
			return err
		}
		_, err = api.PostJSON(ctx, "/auth/regenerate-otp", map[string]string{"email": email}, nil)
		return err
	})
}

// SetBusinessPassword sets the admin password and moves to document upload.
func (s *OnboardingService) SetBusinessPassword(ctx context.Context, rs *auth.RequestSession, password, confirm string) error {
	if err := checkNewPassword(password, confirm, MsgSetPasswordShort); err != nil {
		return err
	}
	email, err := s.wizardEmail(rs)
	if err != nil {
		return err
	}
	return s.guard(ctx, rs, "business.set-password", func() error {
		api, err := s.clientTokens.ClientAPI(ctx, rs)
		if err != nil {
			return err
		}
		if _, err := api.PostJSON(ctx, "/auth/set-password", map[string]string{"email": email, "password": password}, nil); err != nil {
			return err
		}
		return s.advance(ctx, rs, FlowBusiness, "set-password", domain.StepVerificationDocument, BusinessDocumentsPath)
	})
}

// Document is an uploaded file.
type Document struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

func (d *Document) missing() bool {
	return d == nil || d.Content == nil || d.FileName == ""
}

// VerificationDocument is a business registration document.
type VerificationDocument struct {
	BusinessID   string
	DocumentType string
	Document     *Document
}

// ProofOfAddress is the address of the business plus a supporting document.
type ProofOfAddress struct {
	BusinessID  string
	AddressType string
	AddressLine string
	StreetName  string
	City        string
	Landmark    string
	Country     string
	PostalCode  string
	Region      string
	Document    *Document
}

// SettlementAccount is where the business is paid out.
type SettlementAccount struct {
	BusinessID      string `json:"businessId"`
	AccountType     string `json:"accountType"`
	AccountProvider string `json:"accountProvider"`
	AccountName     string `json:"accountName"`
	AccountNumber   string `json:"accountNumber"`
}

// validate checks everything but the business, which is resolved separately.
func (a SettlementAccount) validate() error {
	if a.AccountType != domain.AccountTypeBank && a.AccountType != domain.AccountTypeMomo {
		return validationError(MsgInvalidAccountType)
	}
	if blank(a.AccountProvider, a.AccountName, a.AccountNumber) {
		return validationError(MsgRequiredFields)
	}
	return nil
}

// UploadVerificationDocument submits a document. In the wizard the business
// comes from the onboarding store and the wizard advances; from the dashboard
// the caller supplies the business and no progress is recorded.
func (s *OnboardingService) UploadVerificationDocument(ctx context.Context, rs *auth.RequestSession, in VerificationDocument, wizard bool) error {
	if in.Document.missing() || blank(in.DocumentType) {
		return validationError(MsgMissingDocument)
	}
	api, businessID, err := s.businessTarget(ctx, rs, in.BusinessID, wizard)
	if err != nil {
		return err
	}
	return s.guard(ctx, rs, "business.document", func() error {
		var form gateway.Form
		form.Add("businessId", businessID)
		form.Add("documentType", in.DocumentType)
		form.AddFile("document", in.Document.FileName, in.Document.ContentType, in.Document.Content)
		if _, err := api.PostMultipart(ctx, "/business-verification-documents/upload", form, nil); err != nil {
			return err
		}
		if !wizard {
			return nil
		}
		return s.advance(ctx, rs, FlowBusiness, "verification-document", domain.StepProofOfAddress, BusinessProofOfAddressPath)
	})
}

// SubmitProofOfAddress submits the business address. See UploadVerificationDocument for wizard.
func (s *OnboardingService) SubmitProofOfAddress(ctx context.Context, rs *auth.RequestSession, in ProofOfAddress, wizard bool) error {
	if in.Document.missing() || blank(in.AddressType) {
		return validationError(MsgMissingDocument)
	}
	api, businessID, err := s.businessTarget(ctx, rs, in.BusinessID, wizard)
	if err != nil {
		return err
	}
	return s.guard(ctx, rs, "business.proof-of-address", func() error {
		var form gateway.Form
		form.Add("businessId", businessID)
		form.Add("addressType", in.AddressType)
		form.AddFile("document", in.Document.FileName, in.Document.ContentType, in.Document.Content)
		form.Add("addressLine", in.AddressLine)
		form.Add("streetName", in.StreetName)
		form.Add("city", in.City)
		form.Add("landmark", in.Landmark)
		form.Add("country", in.Country)
		form.Add("postalCode", in.PostalCode)
		form.Add("region", in.Region)
		if _, err := api.PostMultipart(ctx, "/proof-of-address/", form, nil); err != nil {
			return err
		}
		if !wizard {
			return nil
		}
		return s.advance(ctx, rs, FlowBusiness, "proof-of-address", domain.StepSettlementAccount, BusinessSettlementPath)
	})
}

// AddSettlementAccount registers a payout account. In the wizard this is the
// last step: the onboarding record and client token are dropped.
func (s *OnboardingService) AddSettlementAccount(ctx context.Context, rs *auth.RequestSession, in SettlementAccount, wizard bool) error {
	if err := in.validate(); err != nil {
		return err
	}
	api, businessID, err := s.businessTarget(ctx, rs, in.BusinessID, wizard)
	if err != nil {
		return err
	}
	in.BusinessID = businessID
	return s.guard(ctx, rs, "business.settlement", func() error {
		if _, err := api.PostJSON(ctx, "/settlement-accounts/", in, nil); err != nil {
			return err
		}
		if !wizard {
			return nil
		}
		return s.complete(ctx, rs, FlowBusiness)
	})
}

// SettlementProviders lists banks or mobile-money operators for a country.
func (s *OnboardingService) SettlementProviders(ctx context.Context, rs *auth.RequestSession, accountType, country string, wizard bool) ([]domain.SettlementProvider, error) {
	accountType = strings.ToLower(strings.TrimSpace(accountType))
	if accountType != "bank" && accountType != "momo" {
		return nil, validationError(MsgInvalidAccountType)
	}
	if country == "" {
		country = "gh"
	}
	api := rs.API
	if wizard {
		var err error
		if api, err = s.clientTokens.ClientAPI(ctx, rs); err != nil {
			return nil, err
		}
	}
	q := url.Values{}
	q.Set("type", accountType)
	q.Set("country", strings.ToLower(country))
	var providers []domain.SettlementProvider
	if _, err := api.Get(ctx, "/settlement-accounts/providers?"+q.Encode(), &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

// SubscriberApplication is the first page of the subscriber wizard.
type SubscriberApplication struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	OtherNames      string `json:"otherNames,omitempty"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"-"`
	Gender          string `json:"gender"`
	DateOfBirth     string `json:"dateOfBirth"`
	PhoneNumber     string `json:"phoneNumber"`
	SecondaryPhone  string `json:"secondaryPhone,omitempty"`
	SecondaryEmail  string `json:"secondaryEmail,omitempty"`
}

func (a SubscriberApplication) validate() error {
	if blank(a.FirstName, a.LastName, a.Email, a.Password, a.Gender, a.DateOfBirth, a.PhoneNumber) {
		return validationError(MsgRequiredFields)
	}
	if len(a.Password) < minPasswordLength {
		return validationError(MsgPasswordTooShort)
	}
	if !strongPassword(a.Password) {
		return validationError(MsgPasswordStrength)
	}
	if a.Password != a.PasswordConfirm {
		return validationError(MsgPasswordMismatch)
	}
	return nil
}

// InitiateSubscriber submits the subscriber application and moves to OTP verification.
func (s *OnboardingService) InitiateSubscriber(ctx context.Context, rs *auth.RequestSession, in SubscriberApplication) error {
	if err := in.validate(); err != nil {
		return err
	}
	return s.guard(ctx, rs, "subscriber.initiate", func() error {
		api, err := s.clientTokens.ClientAPI(ctx, rs)
		if err != nil {
			return err
		}
		if _, err := api.PostJSON(ctx, "/subscriber/onboarding/initiate", in, nil); err != nil {
			return err
		}
		if err := rs.Stores.Onboarding.SetEmail(ctx, in.Email); err != nil {
			return apperrors.NewInternalError(err)
		}
		return s.advance(ctx, rs, FlowSubscriber, "initiate", domain.StepVerifyOTP, SubscriberVerifyOTPPath)
	})
}

// VerifySubscriber confirms the subscriber email and finishes the wizard.
func (s *OnboardingService) VerifySubscriber(ctx context.Context, rs *auth.RequestSession, otp string) error {
	email, err := s.wizardEmail(rs)
	if err != nil {
		return err
	}
	if !validOTP(otp) {
		return validationError(MsgInvalidOTP)
	}
	return s.guard(ctx, rs, "subscriber.verify", func() error {
		api, err := s.clientTokens.ClientAPI(ctx, rs)
		if err != nil {
			return err
		}
		if _, err := api.PostJSON(ctx, "/subscriber/onboarding/verify", map[string]string{"email": email, "otp": otp}, nil); err != nil {
			return err
		}
		return s.complete(ctx, rs, FlowSubscriber)
	})
}

// ResendSubscriberOTP asks the backend for a new subscriber OTP.
func (s *OnboardingService) ResendSubscriberOTP(ctx context.Context, rs *auth.RequestSession) error {
	email, err := s.wizardEmail(rs)
	if err != nil {
		return err
	}
	return s.guard(ctx, rs, "subscriber.resend", func() error {
		api, err := s.clientTokens.ClientAPI(ctx, rs)
		if err != nil {
			return err
		}
		_, err = api.PostJSON(ctx, "/subscriber/onboarding/resend-otp", map[string]string{"email": email}, nil)
		return err
	})
}

// Abandon forgets the wizard without touching the rest of the session.
func (s *OnboardingService) Abandon(ctx context.Context, rs *auth.RequestSession) error {
	if err := rs.Stores.Onboarding.ClearOnboarding(ctx); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// guard rejects a second submission of op while the first is still running.
func (s *OnboardingService) guard(ctx context.Context, rs *auth.RequestSession, op string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, rs.ID, op)
	if errors.Is(err, session.ErrSubmissionInProgress) {
		return validationError(MsgSubmissionPending)
	}
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer release()
	return fn()
}

func (s *OnboardingService) wizardEmail(rs *auth.RequestSession) (string, error) {
	progress := rs.Stores.Onboarding.Progress()
	if progress.Email == nil || *progress.Email == "" {
		return "", validationError(MsgNoOnboarding)
	}
	return *progress.Email, nil
}

// businessTarget picks the client and business id for a business task.
func (s *OnboardingService) businessTarget(ctx context.Context, rs *auth.RequestSession, businessID string, wizard bool) (*gateway.Client, string, error) {
	if !wizard {
		if businessID == "" {
			if user := rs.Stores.User.User(); user != nil && user.BusinessAdmin != nil {
				businessID = user.BusinessAdmin.BusinessID
			}
		}
		if businessID == "" {
			return nil, "", validationError(MsgRequiredFields)
		}
		return rs.API, businessID, nil
	}

	progress := rs.Stores.Onboarding.Progress()
	if progress.BusinessID == nil || *progress.BusinessID == "" {
		return nil, "", validationError(MsgNoOnboarding)
	}
	api, err := s.clientTokens.ClientAPI(ctx, rs)
	if err != nil {
		return nil, "", err
	}
	return api, *progress.BusinessID, nil
}

func (s *OnboardingService) advance(ctx context.Context, rs *auth.RequestSession, flow, step string, next int, path string) error {
	if err := rs.Stores.Onboarding.SetCurrentStep(ctx, next); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.NewEvent(events.EventOnboardingStepCompleted, rs.ID, events.OnboardingStepPayload{
		Flow:     flow,
		Step:     step,
		NextStep: next,
	}))
	rs.Nav.Navigate(path)
	return nil
}

// complete ends a wizard: the user signs in from the login page next.
func (s *OnboardingService) complete(ctx context.Context, rs *auth.RequestSession, flow string) error {
	var email string
	if p := rs.Stores.Onboarding.Progress(); p.Email != nil {
		email = *p.Email
	}
	if err := errors.Join(
		rs.Stores.Onboarding.ClearOnboarding(ctx),
		rs.Stores.Auth.ClearClientToken(ctx),
	); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.NewEvent(events.EventOnboardingCompleted, rs.ID, events.OnboardingCompletedPayload{Flow: flow, Email: email}))
	rs.Nav.Navigate(LoginPath)
	return nil
}

func (s *OnboardingService) publish(ctx context.Context, event events.Event) {
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
