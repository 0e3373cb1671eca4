// handlers/content.go
package handlers

import (
	"learn-earn-platform/middleware"
	"learn-earn-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupContentRoutes(app *fiber.App, contentService *services.ContentService) {
	// 🔓 Public routes — *no user context*, but **still require Gateway auth**
	app.Get("/articles", contentService.GetPublishedArticles)
	app.Get("/articles/:slug", contentService.GetArticleBySlug)

	// 🔐 Secured routes — require user context (userID, roles)
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/articles/:id/reading/start", contentService.StartReadingEndpoint)
	secured.Post("/articles/:id/reading/complete", contentService.CompleteReadingEndpoint)
	secured.Get("/users/me/reading-sessions", contentService.ListMyReadingSessions)

	// ✅ Admin routes — authoring and publish control
	admin := secured.Group("/admin", middleware.AdminOnly())
	admin.Post("/articles", contentService.CreateArticle)
	admin.Put("/articles/:id", contentService.UpdateArticle)
	admin.Post("/articles/:id/publish/now", contentService.PublishNow)
	admin.Post("/articles/:id/publish/schedule", contentService.SchedulePublish)
	admin.Post("/articles/:id/publish/cancel", contentService.CancelScheduledPublish)
}
