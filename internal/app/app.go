package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/crypto/bcrypt"

	_ "portalauth/docs"
	"portalauth/internal/config"
	"portalauth/internal/db"
	"portalauth/internal/handlers"
	"portalauth/internal/logger"
	"portalauth/internal/metrics"
	"portalauth/internal/middleware"
	"portalauth/internal/repositories"
	"portalauth/internal/routes"
	"portalauth/internal/services"
	"portalauth/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App owns the process-wide resources of the HTTP server.
type App struct {
	cfg        *config.Config
	log        logger.Logger
	db         *sql.DB
	redis      *redis.Client
	dispatcher *services.NotificationDispatcher
	router     *gin.Engine
}

func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	// === DB ===
	pool, err := db.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.db = pool

	// === Repos ===
	userRepo := repositories.NewUserRepository(pool)
	otpRepo, err := a.otpRepository(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	uploads, err := a.uploadStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	// === Services ===
	m := metrics.New()
	hasher := services.NewBcryptHasher(bcrypt.DefaultCost)
	tokens, err := services.NewTokenService(services.TokenConfig{
		Secret: []byte(cfg.Session.Secret),
		Issuer: cfg.Session.Issuer,
		TTL:    cfg.Session.TTL,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	otp := services.NewOTPService(otpRepo, hasher, cfg.OTP.TTL, cfg.OTP.Length)

	notifier := services.NewSMTPNotifier(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)
	a.dispatcher = services.NewNotificationDispatcher(notifier, log, m, services.DispatcherConfig{
		QueueSize:    cfg.Email.QueueSize,
		Workers:      cfg.Email.Workers,
		MaxRetries:   cfg.Email.MaxRetries,
		RetryBackoff: cfg.Email.RetryBackoff,
	})
	a.dispatcher.Start()

	templates := services.EmailTemplates{PortalURL: cfg.Email.PortalURL}
	accountService := services.NewAccountService(userRepo, hasher, uploads, a.dispatcher, templates, log, m)
	authService := services.NewAuthService(userRepo, hasher, tokens, otp, a.dispatcher, templates, log, m)
	contactService := services.NewContactService(userRepo, a.dispatcher, templates, log)

	// === Handlers ===
	cookies := handlers.CookieConfig{
		Name:     cfg.Session.CookieName,
		Domain:   cfg.Session.CookieDomain,
		Secure:   cfg.Session.Secure,
		SameSite: handlers.ParseSameSite(cfg.Session.SameSite),
		CSRF:     cfg.Session.CSRF,
	}
	authHandler := handlers.NewAuthHandler(authService, accountService, cookies, log)
	adminHandler := handlers.NewAdminHandler(accountService, log)
	publicHandler := handlers.NewPublicHandler(contactService, pool, log)

	// === Gin ===
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedSuffix))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(m.Handler()))
	if cfg.Uploads.Driver == "local" {
		router.Static(cfg.Uploads.URLPrefix, cfg.Uploads.RootDir)
	}

	guards := routes.Guards{Session: middleware.SessionAuth(authService, cfg.Session.CookieName)}
	if cfg.Session.CSRF {
		guards.CSRF = middleware.CSRFGuard(cfg.Session.CookieName)
	}
	routes.SetupRoutes(router, authHandler, adminHandler, publicHandler, guards)
	a.router = router

	return a, nil
}

func (a *App) otpRepository(ctx context.Context) (repositories.OTPRepository, error) {
	if a.cfg.OTP.Store != "redis" {
		return repositories.NewOTPRepository(a.db), nil
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", a.cfg.Redis.Addr, err)
	}
	a.log.Info("otp store: redis", "addr", a.cfg.Redis.Addr)
	return repositories.NewRedisOTPRepository(a.redis), nil
}

func (a *App) uploadStore(ctx context.Context) (storage.UploadStore, error) {
	u := a.cfg.Uploads
	if u.Driver != "s3" {
		return storage.NewLocalStore(u.RootDir, u.URLPrefix), nil
	}
	a.log.Info("upload store: s3", "bucket", u.S3.Bucket, "region", u.S3.Region)
	return storage.NewS3Store(ctx, storage.S3Config{
		Bucket:       u.S3.Bucket,
		Region:       u.S3.Region,
		Endpoint:     u.S3.Endpoint,
		AccessKey:    u.S3.AccessKey,
		SecretKey:    u.S3.SecretKey,
		PublicURL:    u.S3.PublicURL,
		UsePathStyle: u.S3.UsePathStyle,
	})
}

// Handler exposes the router, mostly for tests.
func (a *App) Handler() http.Handler { return a.router }

// Run serves until ctx is cancelled, then drains requests and queued mail.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("http shutdown", "err", err)
	}
	if err := a.dispatcher.Close(shutdownCtx); err != nil {
		a.log.Warn("notification queue not fully drained", "err", err)
	}
	return nil
}

func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close", "err", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("db close", "err", err)
		}
	}
}
