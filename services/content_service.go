package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"learn-earn-platform/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrArticleNotPublished = errors.New("article is not published")
	ErrSessionNotOpen      = errors.New("no open reading session for this article")
	ErrReadingTooShort     = errors.New("reading time below the article minimum")
)

type ContentService struct {
	DB       *gorm.DB
	Wallet   *WalletService
	Referral *ReferralService
}

func NewContentService(db *gorm.DB, wallet *WalletService, referral *ReferralService) *ContentService {
	return &ContentService{DB: db, Wallet: wallet, Referral: referral}
}

// uniqueSlug derives a slug from the title, suffixing on collision.
func (s *ContentService) uniqueSlug(title string) string {
	base := slug.Make(title)
	candidate := base
	for i := 2; ; i++ {
		var count int64
		s.DB.Model(&models.Article{}).Where("slug = ?", candidate).Count(&count)
		if count == 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// CreateArticle creates a new article (Admin only)
// POST /s/admin/articles
func (s *ContentService) CreateArticle(c *fiber.Ctx) error {
	var req struct {
		Title          string               `json:"title" validate:"required"`
		Excerpt        string               `json:"excerpt"`
		Body           string               `json:"body" validate:"required"`
		ReadingReward  float64              `json:"reading_reward" validate:"gte=0"`
		MinReadSeconds int                  `json:"min_read_seconds" validate:"gte=0"`
		Status         models.ArticleStatus `json:"status" validate:"omitempty,oneof=draft scheduled published"`
		PublishAt      *time.Time           `json:"publish_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	status := req.Status
	if status == "" {
		status = models.ArticleStatusDraft
	}
	if status == models.ArticleStatusScheduled && req.PublishAt == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "publish_at is required for scheduled articles"})
	}

	article := &models.Article{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Slug:           s.uniqueSlug(req.Title),
		Excerpt:        req.Excerpt,
		Body:           req.Body,
		AuthorID:       c.Locals("user_id").(string),
		WordCount:      len(strings.Fields(req.Body)),
		ReadingReward:  req.ReadingReward,
		MinReadSeconds: req.MinReadSeconds,
		Status:         status,
		PublishAt:      req.PublishAt,
	}
	if err := s.DB.Create(article).Error; err != nil {
		log.Printf("❌ [CONTENT] DB error creating article: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create article"})
	}
	return c.Status(fiber.StatusCreated).JSON(article)
}

// UpdateArticle partially updates an article (Admin only)
// PUT /s/admin/articles/:id
func (s *ContentService) UpdateArticle(c *fiber.Ctx) error {
	id := c.Params("id")

	var article models.Article
	if err := s.DB.First(&article, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Article not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Title          *string  `json:"title"`
		Excerpt        *string  `json:"excerpt"`
		Body           *string  `json:"body"`
		ReadingReward  *float64 `json:"reading_reward"`
		MinReadSeconds *int     `json:"min_read_seconds"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Title != nil {
		article.Title = *req.Title
	}
	if req.Excerpt != nil {
		article.Excerpt = *req.Excerpt
	}
	if req.Body != nil {
		article.Body = *req.Body
		article.WordCount = len(strings.Fields(*req.Body))
	}
	if req.ReadingReward != nil {
		if *req.ReadingReward < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reading_reward cannot be negative"})
		}
		article.ReadingReward = *req.ReadingReward
	}
	if req.MinReadSeconds != nil {
		article.MinReadSeconds = *req.MinReadSeconds
	}

	if err := s.DB.Save(&article).Error; err != nil {
		log.Printf("❌ [CONTENT] DB error updating article: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update article"})
	}
	return c.JSON(article)
}

// PublishNow publishes immediately (Admin only)
// POST /s/admin/articles/:id/publish/now
func (s *ContentService) PublishNow(c *fiber.Ctx) error {
	return s.setPublishState(c, models.ArticleStatusPublished, nil)
}

// SchedulePublish schedules publication for later (Admin only)
// POST /s/admin/articles/:id/publish/schedule
func (s *ContentService) SchedulePublish(c *fiber.Ctx) error {
	var req struct {
		PublishAt time.Time `json:"publish_at" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.PublishAt.Before(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "publish_at must be in the future"})
	}
	return s.setPublishState(c, models.ArticleStatusScheduled, &req.PublishAt)
}

// CancelScheduledPublish reverts a scheduled article to draft (Admin only)
// POST /s/admin/articles/:id/publish/cancel
func (s *ContentService) CancelScheduledPublish(c *fiber.Ctx) error {
	return s.setPublishState(c, models.ArticleStatusDraft, nil)
}

func (s *ContentService) setPublishState(c *fiber.Ctx, status models.ArticleStatus, publishAt *time.Time) error {
	id := c.Params("id")

	var article models.Article
	if err := s.DB.First(&article, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Article not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	article.Status = status
	article.PublishAt = publishAt
	if err := s.DB.Save(&article).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update article status"})
	}
	return c.JSON(article)
}

// publishDueArticles flips scheduled articles whose publish time has
// arrived. Called by the publish scheduler every minute.
func (s *ContentService) publishDueArticles() {
	var articles []models.Article
	now := time.Now()
	if err := s.DB.Where("status = ? AND publish_at <= ?", models.ArticleStatusScheduled, now).
		Find(&articles).Error; err != nil {
		log.Printf("❌ [CONTENT] publish scheduler DB error: %v", err)
		return
	}
	for _, a := range articles {
		a.Status = models.ArticleStatusPublished
		a.PublishAt = nil
		if err := s.DB.Save(&a).Error; err != nil {
			log.Printf("❌ [CONTENT] failed to publish article %s: %v", a.ID, err)
		} else {
			log.Printf("✅ [CONTENT] auto-published article: %s", a.Slug)
		}
	}
}

// GetPublishedArticles lists the catalog without bodies.
// GET /articles
func (s *ContentService) GetPublishedArticles(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var articles []models.Article
	if err := s.DB.Select("id", "title", "slug", "excerpt", "word_count", "reading_reward", "min_read_seconds", "status", "created_at", "updated_at").
		Where("status = ?", models.ArticleStatusPublished).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&articles).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch articles"})
	}
	return c.JSON(articles)
}

// GetArticleBySlug returns one published article with its body.
// GET /articles/:slug
func (s *ContentService) GetArticleBySlug(c *fiber.Ctx) error {
	var article models.Article
	if err := s.DB.Where("slug = ? AND status = ?", c.Params("slug"), models.ArticleStatusPublished).
		First(&article).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Article not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(article)
}

// StartReadingSession opens (or returns) the user's session on an article.
func (s *ContentService) StartReadingSession(userID, articleID string) (*models.ReadingSession, error) {
	var article models.Article
	if err := s.DB.First(&article, "id = ?", articleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	if article.Status != models.ArticleStatusPublished {
		return nil, ErrArticleNotPublished
	}

	var session models.ReadingSession
	err := s.DB.Where("user_id = ? AND article_id = ?", userID, articleID).First(&session).Error
	if err == nil {
		return &session, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	session = models.ReadingSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		ArticleID: articleID,
		StartedAt: time.Now(),
	}
	if err := s.DB.Create(&session).Error; err != nil {
		if isDuplicateKeyErr(err) {
			// raced with another start; return the winner
			if ferr := s.DB.Where("user_id = ? AND article_id = ?", userID, articleID).First(&session).Error; ferr == nil {
				return &session, nil
			}
		}
		return nil, err
	}
	return &session, nil
}

// CompleteReadingSession closes the session and pays the article reward.
// Marking the session complete and crediting the wallet happen in one DB
// transaction; the reward is paid at most once per (user, article).
// Referral propagation runs afterwards, best-effort.
func (s *ContentService) CompleteReadingSession(userID, articleID string, secondsRead int) (*models.ReadingSession, *models.Transaction, error) {
	var session models.ReadingSession
	var rewardTxn *models.Transaction
	var article models.Article

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&article, "id = ?", articleID).Error; err != nil {
			return err
		}
		if err := forUpdate(tx).Where("user_id = ? AND article_id = ?", userID, articleID).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotOpen
			}
			return err
		}
		if session.CompletedAt != nil {
			return ErrSessionNotOpen
		}
		if secondsRead < article.MinReadSeconds {
			return ErrReadingTooShort
		}

		now := time.Now()
		updates := map[string]interface{}{
			"completed_at": now,
			"seconds_read": secondsRead,
		}

		if article.ReadingReward > 0 {
			txn, err := s.Wallet.AddFundsTx(tx, userID, article.ReadingReward,
				models.TransactionTypeTaskReward,
				fmt.Sprintf("Reading reward: %s", article.Title),
				models.JSONMap{"article_id": article.ID, "article_slug": article.Slug},
			)
			if err != nil {
				return err
			}
			rewardTxn = txn
			updates["reward_paid"] = true
			updates["reward_transaction_id"] = txn.ID
		}

		if err := tx.Model(&session).Updates(updates).Error; err != nil {
			return err
		}
		session.CompletedAt = &now
		session.SecondsRead = secondsRead
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if rewardTxn != nil {
		// bonuses are a secondary effect; their failure never surfaces here
		s.Referral.ProcessTaskReferral(userID, article.ReadingReward)
	}
	return &session, rewardTxn, nil
}

// StartReadingEndpoint opens a reading session.
// POST /s/articles/:id/reading/start
func (s *ContentService) StartReadingEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	session, err := s.StartReadingSession(userID, c.Params("id"))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Article not found"})
		case errors.Is(err, ErrArticleNotPublished):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to start reading session"})
		}
	}
	return c.JSON(session)
}

// CompleteReadingEndpoint closes a session and pays the reward.
// POST /s/articles/:id/reading/complete
func (s *ContentService) CompleteReadingEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		SecondsRead int `json:"seconds_read" validate:"required,gt=0"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	session, rewardTxn, err := s.CompleteReadingSession(userID, c.Params("id"), req.SecondsRead)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Article not found"})
		case errors.Is(err, ErrSessionNotOpen):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrReadingTooShort):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrWalletNotFound):
			return ledgerErrorResponse(c, err)
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to complete reading session"})
		}
	}

	resp := fiber.Map{"session": session}
	if rewardTxn != nil {
		resp["reward_transaction"] = rewardTxn
	}
	return c.JSON(resp)
}

// ListMyReadingSessions returns the user's sessions, newest first.
// GET /s/users/me/reading-sessions
func (s *ContentService) ListMyReadingSessions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var sessions []models.ReadingSession
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch reading sessions"})
	}
	return c.JSON(sessions)
}
