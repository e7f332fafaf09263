package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"estatehub/api/internal/cache"
	"estatehub/api/internal/config"
	"estatehub/api/internal/middleware"
	"estatehub/api/internal/models"
	"estatehub/api/internal/repository"
	"estatehub/api/internal/service"
	"estatehub/api/internal/storage"
)

// ListingDirectory is the listing-row surface the handlers need.
// *repository.ListingRepository implements it.
type ListingDirectory interface {
	Create(ctx context.Context, listing models.Listing) error
	GetByID(ctx context.Context, id string) (models.Listing, error)
}

type HandlerSet struct {
	log              zerolog.Logger
	cfg              *config.AppConfig
	uploadService    *service.UploadService
	attachService    *service.AttachService
	reconcileService *service.ReconcileService
	listings         ListingDirectory
	db               *pgxpool.Pool
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, redisClient *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	uploadRepo := repository.NewUploadRepository(db)
	listingRepo := repository.NewListingRepository(db)
	imageRepo := repository.NewListingImageRepository(db)

	locks := cache.NewSessionLock(redisClient, cfg.Upload.SessionLockTTL)
	limiter := service.NewRateLimiter(uploadRepo, cfg.Upload.RateWindow, cfg.Upload.RateCeiling, log)

	uploads := service.NewUploadService(uploadRepo, store, limiter, cfg.Upload, log)
	reconciler := service.NewReconcileService(uploadRepo, store, locks, log)
	attacher := service.NewAttachService(listingRepo, imageRepo, uploadRepo, store, reconciler, log)

	return HandlerSet{
		log:              log,
		cfg:              cfg,
		uploadService:    uploads,
		attachService:    attacher,
		reconcileService: reconciler,
		listings:         listingRepo,
		db:               db,
	}
}

// Reconciler exposes the reconcile service for the sweep scheduler.
func (h HandlerSet) Reconciler() *service.ReconcileService {
	return h.reconcileService
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	v1.Use(middleware.Auth(h.cfg))
	{
		uploads := v1.Group("/uploads")
		uploads.POST("", h.RecordUpload)
		uploads.DELETE("", h.DeleteTrackedImage)
		uploads.DELETE("/sessions/:sessionId", h.CleanupSession)

		listings := v1.Group("/listings")
		listings.POST("", h.CreateListing)
		listings.PUT("/:id/images", h.AttachImages)
	}
}
