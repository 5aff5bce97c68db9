package handlers

import (
	"mime/multipart"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/onboarding-portal/internal/api/dto"
	"github.com/spec-kit/onboarding-portal/internal/service"
	apperrors "github.com/spec-kit/onboarding-portal/pkg/util"
)

// OnboardingHandler exposes the signup wizards and the business dashboard tasks
// that reuse their steps. Handlers built with wizard=false act for the
// signed-in business admin.
type OnboardingHandler struct {
	svc    *service.OnboardingService
	wizard bool
}

// NewOnboardingHandler returns the wizard handler.
func NewOnboardingHandler(svc *service.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{svc: svc, wizard: true}
}

// DashboardTasks returns a handler for the same steps run from the dashboard.
func (h *OnboardingHandler) DashboardTasks() *OnboardingHandler {
	return &OnboardingHandler{svc: h.svc, wizard: false}
}

// Progress handles GET /api/onboarding/progress.
func (h *OnboardingHandler) Progress(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	p := rs.Stores.Onboarding.Progress()
	return respond(c, http.StatusOK, dto.ProgressResponse{CurrentStep: p.CurrentStep, BusinessID: p.BusinessID, Email: p.Email})
}

// Abandon handles DELETE /api/onboarding.
func (h *OnboardingHandler) Abandon(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	if err := h.svc.Abandon(c.UserContext(), rs); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil)
}

// InitiateBusiness handles POST /api/onboarding/business/initiate.
func (h *OnboardingHandler) InitiateBusiness(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	var req dto.BusinessInitiateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	err = h.svc.InitiateBusiness(c.UserContext(), rs, service.BusinessApplication{
		BusinessName:          req.BusinessName,
		BusinessContactNumber: req.BusinessContactNumber,
		BusinessEmail:         req.BusinessEmail,
		BusinessType:          req.BusinessType,
		TIN:                   req.TIN,
		AdminName:             req.AdminName,
		AdminPhoneNumber:      req.AdminPhoneNumber,
		AdminEmail:            req.AdminEmail,
		AdminPassword:         req.AdminPassword,
		AdminPasswordConfirm:  req.AdminPasswordConfirm,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, nil)
}

// VerifyBusinessOTP handles POST /api/onboarding/business/verify-otp.
func (h *OnboardingHandler) VerifyBusinessOTP(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	var req dto.OTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.svc.VerifyBusinessOTP(c.UserContext(), rs, req.OTP); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil)
}

// ResendBusinessOTP handles POST /api/onboarding/business/resend-otp.
func (h *OnboardingHandler) ResendBusinessOTP(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	if err := h.svc.ResendBusinessOTP(c.UserContext(), rs); err != nil {
		return err
	}
	return respond(c, http.StatusAccepted, nil)
}

// SetBusinessPassword handles POST /api/onboarding/business/set-password.
func (h *OnboardingHandler) SetBusinessPassword(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	var req dto.SetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.svc.SetBusinessPassword(c.UserContext(), rs, req.Password, req.ConfirmPassword); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil)
}

// UploadVerificationDocument handles the multipart verification document upload.
func (h *OnboardingHandler) UploadVerificationDocument(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	document, closeFile, err := formDocument(c)
	if err != nil {
		return err
	}
	defer closeFile()

	err = h.svc.UploadVerificationDocument(c.UserContext(), rs, service.VerificationDocument{
		BusinessID:   c.FormValue("businessId"),
		DocumentType: c.FormValue("documentType"),
		Document:     document,
	}, h.wizard)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, nil)
}

// SubmitProofOfAddress handles the multipart proof-of-address upload.
func (h *OnboardingHandler) SubmitProofOfAddress(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	document, closeFile, err := formDocument(c)
	if err != nil {
		return err
	}
	defer closeFile()

	err = h.svc.SubmitProofOfAddress(c.UserContext(), rs, service.ProofOfAddress{
		BusinessID:  c.FormValue("businessId"),
		AddressType: c.FormValue("addressType"),
		AddressLine: c.FormValue("addressLine"),
		StreetName:  c.FormValue("streetName"),
		City:        c.FormValue("city"),
		Landmark:    c.FormValue("landmark"),
		Country:     c.FormValue("country"),
		PostalCode:  c.FormValue("postalCode"),
		Region:      c.FormValue("region"),
		Document:    document,
	}, h.wizard)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, nil)
}

// AddSettlementAccount handles the settlement account step.
func (h *OnboardingHandler) AddSettlementAccount(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	var req dto.SettlementAccountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	err = h.svc.AddSettlementAccount(c.UserContext(), rs, service.SettlementAccount{
		BusinessID:      req.BusinessID,
		AccountType:     req.AccountType,
		AccountProvider: req.AccountProvider,
		AccountName:     req.AccountName,
		AccountNumber:   req.AccountNumber,
	}, h.wizard)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, nil)
}

// SettlementProviders handles GET .../settlement-providers?type=bank|momo&country=gh.
func (h *OnboardingHandler) SettlementProviders(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	providers, err := h.svc.SettlementProviders(c.UserContext(), rs, c.Query("type"), c.Query("country"), h.wizard)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, providers)
}

// InitiateSubscriber handles POST /api/onboarding/subscriber/initiate.
func (h *OnboardingHandler) InitiateSubscriber(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	var req dto.SubscriberInitiateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	err = h.svc.InitiateSubscriber(c.UserContext(), rs, service.SubscriberApplication{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		OtherNames:      req.OtherNames,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Gender:          req.Gender,
		DateOfBirth:     req.DateOfBirth,
		PhoneNumber:     req.PhoneNumber,
		SecondaryPhone:  req.SecondaryPhone,
		SecondaryEmail:  req.SecondaryEmail,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, nil)
}

// VerifySubscriber handles POST /api/onboarding/subscriber/verify-otp.
func (h *OnboardingHandler) VerifySubscriber(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	var req dto.OTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.svc.VerifySubscriber(c.UserContext(), rs, req.OTP); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil)
}

// ResendSubscriberOTP handles POST /api/onboarding/subscriber/resend-otp.
func (h *OnboardingHandler) ResendSubscriberOTP(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	if err := h.svc.ResendSubscriberOTP(c.UserContext(), rs); err != nil {
		return err
	}
	return respond(c, http.StatusAccepted, nil)
}

// formDocument opens the "document" file part. A missing part yields a nil
// document and the service reports it.
func formDocument(c *fiber.Ctx) (*service.Document, func(), error) {
	fh, err := c.FormFile("document")
	if err != nil {
		return nil, func() {}, nil
	}
	return openDocument(fh)
}

func openDocument(fh *multipart.FileHeader) (*service.Document, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, apperrors.NewInternalError(err)
	}
	return &service.Document{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     f,
	}, func() { _ = f.Close() }, nil
}
