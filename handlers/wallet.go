// handlers/wallet.go
package handlers

import (
	"learn-earn-platform/middleware"
	"learn-earn-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupWalletRoutes(app *fiber.App, walletService *services.WalletService, subscriptionService *services.SubscriptionService, exportService *services.ExportService) {
	// 🔐 Secured routes — require user context (userID, roles)
	// The gateway forwards paths like /api/v1/platform/s/wallet -> /s/wallet
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/wallet", walletService.GetBalance)
	secured.Get("/wallet/transactions", walletService.GetTransactions)
	secured.Post("/wallet/withdrawals", walletService.RequestWithdrawalEndpoint)
	secured.Post("/wallet/transfers", walletService.TransferEndpoint)

	secured.Post("/subscriptions", subscriptionService.ActivateEndpoint)

	// ✅ Admin routes
	admin := secured.Group("/admin", middleware.AdminOnly())
	admin.Get("/wallet/withdrawals", walletService.ListPendingWithdrawals)
	admin.Post("/wallet/withdrawals/:id/process", walletService.ProcessWithdrawalEndpoint)
	admin.Get("/wallet/stats", walletService.GetWalletStatsEndpoint)
	admin.Post("/wallet/export", exportService.ExportStatement)
}
