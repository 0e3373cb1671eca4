// handlers/referral.go
package handlers

import (
	"learn-earn-platform/middleware"
	"learn-earn-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupReferralRoutes(app *fiber.App, referralService *services.ReferralService) {
	// 🔐 Secured routes — require user context (userID, roles)
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/referrals/bonuses", referralService.GetMyBonuses)
	secured.Get("/referrals/summary", referralService.GetReferralSummaryEndpoint)

	// ✅ Admin routes
	admin := secured.Group("/admin", middleware.AdminOnly())
	admin.Get("/referrals/bonuses", referralService.ListAllBonuses)
}
