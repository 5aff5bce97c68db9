package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/onboarding-portal/internal/api/http/handlers"
	"github.com/spec-kit/onboarding-portal/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Auth       *handlers.AuthHandler
	Dashboard  *handlers.DashboardHandler
	Onboarding *handlers.OnboardingHandler
	Sessions   *auth.SessionMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api", cfg.Sessions.Handle)

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)
	authGroup.Get("/session", cfg.Auth.Session)
	authGroup.Get("/me", cfg.Dashboard.Bootstrap, cfg.Auth.Me)

	onboarding := api.Group("/onboarding")
	onboarding.Get("/progress", cfg.Onboarding.Progress)
	onboarding.Delete("/", cfg.Onboarding.Abandon)
	onboarding.Get("/settlement-providers", cfg.Onboarding.SettlementProviders)

	business := onboarding.Group("/business")
	business.Post("/initiate", cfg.Onboarding.InitiateBusiness)
	business.Post("/verify-otp", cfg.Onboarding.VerifyBusinessOTP)
	business.Post("/resend-otp", cfg.Onboarding.ResendBusinessOTP)
	business.Post("/set-password", cfg.Onboarding.SetBusinessPassword)
	business.Post("/verification-documents", cfg.Onboarding.UploadVerificationDocument)
	business.Post("/proof-of-address", cfg.Onboarding.SubmitProofOfAddress)
	business.Post("/settlement-account", cfg.Onboarding.AddSettlementAccount)

	subscriber := onboarding.Group("/subscriber")
	subscriber.Post("/initiate", cfg.Onboarding.InitiateSubscriber)
	subscriber.Post("/verify-otp", cfg.Onboarding.VerifySubscriber)
	subscriber.Post("/resend-otp", cfg.Onboarding.ResendSubscriberOTP)

	dashboard := api.Group("/dashboard", cfg.Dashboard.Bootstrap)
	dashboard.Get("/", cfg.Dashboard.Home)

	businessArea := dashboard.Group("/business", auth.RequireBusinessArea())
	businessArea.Get("/", cfg.Dashboard.Business)
	tasks := cfg.Onboarding.DashboardTasks()
	businessArea.Post("/verification-documents", tasks.UploadVerificationDocument)
	businessArea.Post("/proof-of-address", tasks.SubmitProofOfAddress)
	businessArea.Post("/settlement-account", tasks.AddSettlementAccount)
	businessArea.Get("/settlement-providers", tasks.SettlementProviders)

	subscriberArea := dashboard.Group("/subscriber", auth.RequireSubscriberArea())
	subscriberArea.Get("/", cfg.Dashboard.Subscriber)
}
