package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"farmer-payments-backend/internal/config"
	handler "farmer-payments-backend/internal/handlers"
	"farmer-payments-backend/internal/repository"
	"farmer-payments-backend/internal/services/audit"
	"farmer-payments-backend/internal/services/lifecycle"
	"farmer-payments-backend/internal/services/notify"
	"farmer-payments-backend/internal/services/settlement"
)

// RegisterRoutes wires repositories, services, and handlers onto the router
// and returns the recovery sweeper for main to run.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config) *settlement.Sweeper {
	batchRepo := repository.NewBatchRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	recorder := audit.NewStoreRecorder(activityRepo)
	notifier := notify.LogNotifier{}
	policy := settlement.NewRailPolicy(cfg.SettleSuccessRate)

	lifecycleService := lifecycle.NewService(batchRepo, recorder)
	engine := settlement.NewEngine(batchRepo, policy, recorder, notifier)
	sweeper := settlement.NewSweeper(batchRepo, engine, recorder, cfg.StuckBatchTimeout, cfg.SweepInterval)

	batchHandler := handler.NewBatchHandler(lifecycleService, engine, batchRepo, activityRepo)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	batches := api.Group("/batches")
	batches.POST("", batchHandler.Submit)
	batches.POST("/upload", batchHandler.Upload)
	batches.GET("", batchHandler.ListBatches)
	batches.GET("/:batchId", batchHandler.GetBatch)
	batches.GET("/:batchId/items", batchHandler.ListLineItems)
	batches.GET("/:batchId/progress", batchHandler.GetProgress)
	batches.GET("/:batchId/stats", batchHandler.GetBatchStats)
	batches.PUT("/:batchId/note", batchHandler.SetReviewerNote)
	batches.POST("/:batchId/settle", batchHandler.ApproveAndSettle)

	api.GET("/history", batchHandler.ListHistory)
	api.GET("/activity", batchHandler.ListActivity)
	api.GET("/stats", batchHandler.GetDashboardStats)

	return sweeper
}
