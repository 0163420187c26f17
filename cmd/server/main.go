package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"subrisk/internal/cache"
	"subrisk/internal/config"
	"subrisk/internal/errors"
	"subrisk/internal/explain"
	"subrisk/internal/feature"
	"subrisk/internal/frontend"
	"subrisk/internal/model"
	"subrisk/internal/monitoring"
	"subrisk/internal/predict"
	"subrisk/internal/ratelimit"
	"subrisk/internal/security"
	"subrisk/internal/types"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func main() {
	// Structured logging setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// Load the classifier artifact once. The handle is immutable and shared
	// read-only by every request; a classifier that fails validation is a
	// fatal configuration error and the service never starts serving.
	clf, err := model.Load(cfg.ModelPath)
	if err != nil {
		appErr := errors.NewConfigurationError("classifier artifact rejected", err)
		slog.Error("Failed to load classifier", "path", cfg.ModelPath, "error", appErr.Error(), "cause", err)
		os.Exit(1)
	}

	summary := clf.Summary()
	slog.Info("Classifier loaded",
		"path", cfg.ModelPath,
		"trees", summary.NumTrees,
		"features", summary.NumFeatures,
		"leaf_output", summary.LeafOutput,
		"mean_nodes", summary.MeanNodes,
	)

	r, err := setupRouter(clf, cfg)
	if err != nil {
		slog.Error("Failed to set up router", "error", err)
		os.Exit(1)
	}

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

// setupRouter wires the middleware chain and routes around a validated
// classifier handle.
func setupRouter(clf *model.Classifier, cfg config.Config) (*gin.Engine, error) {
	predictor := predict.New(clf)
	explainer := explain.New(clf)

	r := gin.New()

	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()

	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))

	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	securityConfig := security.DefaultSecurityConfig()
	securityMiddleware := security.NewSecurityMiddleware(securityConfig)
	r.Use(securityMiddleware.SecurityHeaders)
	r.Use(securityMiddleware.RequestTimeout)
	r.Use(securityMiddleware.ValidateContentType)
	r.Use(security.CSPMiddleware())

	r.Use(cors.New(cors.Config{
		AllowOrigins: securityConfig.AllowedOrigins,
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	limiter := ratelimit.NewRateLimiter(ratelimit.Config{
		LimitPerMin:     cfg.RateLimitPerMin,
		BurstMultiplier: 2,
	})
	r.Use(limiter.IPRateLimitMiddleware(appMetrics))

	appCache := cache.NewCache(cfg.CacheTTL)
	r.Use(appCache.Middleware(appMetrics))

	// Embedded assessment page
	webFS, err := frontend.GetWebFS()
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded web assets: %w", err)
	}
	indexTemplate, err := frontend.LoadIndexTemplate(webFS)
	if err != nil {
		return nil, fmt.Errorf("failed to load index template: %w", err)
	}
	pageHandler := frontend.NewPageHandler(webFS, indexTemplate)
	r.GET("/", pageHandler)
	r.GET("/assets/*filepath", pageHandler)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"model":     clf.Summary(),
			"metrics":   appMetrics.GetStats(),
		})
	})

	r.GET("/api/features", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"features": feature.Specs()})
	})

	r.POST("/api/assess", assessHandler(predictor, explainer, appMetrics, appLogger))

	// Swagger documentation routes
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, appCache.Stats())
	})

	return r, nil
}

// assessHandler runs the full pipeline for one submitted case:
// validate -> assemble -> predict -> explain. Prediction failures abort the
// submission before the explanation stage; explanation failures are soft
// and leave the prediction in the response.
func assessHandler(predictor *predict.Predictor, explainer *explain.Explainer, metrics *monitoring.Metrics, appLogger *monitoring.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req types.AssessRequest
		if err := c.BindJSON(&req); err != nil {
			appErr := errors.NewValidationError("invalid request body", err.Error())
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		// The server cannot rely on form widget constraints, so the raw
		// values are checked against the feature catalog here, before the
		// assembler.
		if err := validateValues(req.Values); err != nil {
			appErr := errors.NewValidationError("submitted values rejected", err.Error())
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		vec, err := feature.Assemble(req.Values)
		if err != nil {
			appErr := errors.NewValidationError("incomplete submission", err.Error())
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		res, err := predictor.Predict(vec)
		if err != nil {
			appErr := errors.NewPredictionError("prediction failed", err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		metrics.IncrementAssessment()

		response := types.AssessResponse{Prediction: res}

		attr, err := explainer.Explain(vec, res.Class)
		if err != nil {
			// Soft failure: the prediction stands, only the chart is lost.
			appErr := errors.NewExplanationError("explanation unavailable", err)
			errors.LogError(c, appErr)
			metrics.IncrementExplanationFailure()
			response.ExplanationError = err.Error()
		} else {
			chart := explain.Chart(attr)
			response.Explanation = &chart
		}

		cacheHit := c.GetBool("cache_hit")
		appLogger.AssessmentLogger(res.Label, res.ProbPositive, response.Explanation != nil, time.Since(start), cacheHit)

		c.JSON(http.StatusOK, response)
	}
}

// validateValues checks every submitted value against its feature spec and
// rejects unknown feature identifiers.
func validateValues(values map[string]float64) error {
	for id, v := range values {
		spec, ok := feature.ByID(id)
		if !ok {
			return fmt.Errorf("unknown feature %q", id)
		}
		if err := spec.Validate(v); err != nil {
			return err
		}
	}
	return nil
}
