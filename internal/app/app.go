package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/serrf0f/gatehouse/internal/config"
	"github.com/serrf0f/gatehouse/internal/db"
	"github.com/serrf0f/gatehouse/internal/repository"
	"github.com/serrf0f/gatehouse/internal/service"
)

type App struct {
	Cfg            *config.Config
	DB             *sqlx.DB
	AuthService    *service.AuthService
	SessionService *service.SessionService
	EmailService   *service.EmailService
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	sessionRepository := repository.NewSessionRepository(database)
	codeRepository := repository.NewVerificationCodeRepository(database)
	resetTokenRepository := repository.NewResetTokenRepository(database)
	oauthRepository := repository.NewOAuthAccountRepository(database)
	atomicRepository := repository.NewAtomicRepository(database)

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	sessionService := service.NewSessionService(
		sessionRepository,
		userRepository,
		cfg.SessionExpiry,
		cfg.SessionRenewWindow,
		cfg.IsProduction(),
	)
	authService := service.NewAuthService(
		userRepository,
		codeRepository,
		resetTokenRepository,
		oauthRepository,
		atomicRepository,
		sessionService,
		emailService,
		service.NewTurnstileVerifier(cfg.TurnstileSecret),
		service.NewScryptHasher(),
		cfg.VerificationCodeExpiry,
		cfg.ResetTokenExpiry,
	)

	return &App{
		Cfg:            cfg,
		DB:             database,
		AuthService:    authService,
		SessionService: sessionService,
		EmailService:   emailService,
	}, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
