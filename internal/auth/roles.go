package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/onboarding-portal/internal/domain"
	apperrors "github.com/spec-kit/onboarding-portal/pkg/util"
)

// Dashboard paths.
const (
	DashboardPath           = "/dashboard"
	BusinessDashboardPath   = "/dashboard/business"
	SubscriberDashboardPath = "/dashboard/subscriber"
)

// DashboardFor returns the dashboard a user belongs on. Users with neither
// sub-profile stay on the generic dashboard.
func DashboardFor(user *domain.CurrentUser) string {
	switch user.Role() {
	case domain.RoleBusinessAdmin:
		return BusinessDashboardPath
	case domain.RoleSubscriber:
		return SubscriberDashboardPath
	default:
		return DashboardPath
	}
}

// RequireBusinessArea redirects subscribers without a business profile to their own dashboard.
func RequireBusinessArea() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rs, ok := SessionFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("")
		}
		user := rs.Stores.User.User()
		if user != nil && user.Subscriber != nil && user.BusinessAdmin == nil {
			rs.Nav.Navigate(SubscriberDashboardPath)
			return apperrors.NewForbidden("business dashboard requires a business admin")
		}
		return c.Next()
	}
}

// RequireSubscriberArea redirects business admins without a subscriber profile to their own dashboard.
func RequireSubscriberArea() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rs, ok := SessionFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("")
		}
		user := rs.Stores.User.User()
		if user != nil && user.BusinessAdmin != nil && user.Subscriber == nil {
			rs.Nav.Navigate(BusinessDashboardPath)
			return apperrors.NewForbidden("subscriber dashboard requires a subscriber")
		}
		return c.Next()
	}
}
