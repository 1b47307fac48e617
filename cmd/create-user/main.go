package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/love-timeline-api/internal/models"
	"github.com/noah-isme/love-timeline-api/internal/repository"
	"github.com/noah-isme/love-timeline-api/internal/service"
	"github.com/noah-isme/love-timeline-api/pkg/config"
	"github.com/noah-isme/love-timeline-api/pkg/database"
	"github.com/noah-isme/love-timeline-api/pkg/logger"
)

// create-user seeds a partner account. Only admins can add memories.
func main() {
	var (
		email    string
		password string
		name     string
		avatar   string
		role     string
	)
	flag.StringVar(&email, "email", "", "login email")
	flag.StringVar(&password, "password", "", "password, at least 8 characters")
	flag.StringVar(&name, "name", "", "display name stamped on memories")
	flag.StringVar(&avatar, "avatar", "", "avatar URL")
	flag.StringVar(&role, "role", string(models.RoleAdmin), "admin or viewer")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, cfg.Database.MigrationsDir, logr); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	auth := service.NewAuthService(repository.NewUserRepository(db), nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	user, err := auth.CreateUser(ctx, service.CreateUserInput{
		Email:       email,
		Password:    password,
		DisplayName: name,
		AvatarURL:   avatar,
		Role:        models.UserRole(role),
	})
	if err != nil {
		logr.Fatal("failed to create user", zap.Error(err))
	}
	logr.Sugar().Infow("user created", "id", user.ID, "email", user.Email, "role", user.Role)
}
