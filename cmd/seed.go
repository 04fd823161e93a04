package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-backend/internal/auth"
	"github.com/spec-kit/crm-backend/internal/config"
	"github.com/spec-kit/crm-backend/internal/domain"
	"github.com/spec-kit/crm-backend/internal/observability"
	"github.com/spec-kit/crm-backend/internal/persistence"
	"github.com/spec-kit/crm-backend/internal/repository"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the initial admin account and the system actor",
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	users := repository.NewUserRepository(pg.PoolHandle())

	adminEmail := envOrDefault("SEED_ADMIN_EMAIL", "admin@crm.local")
	adminPassword := envOrDefault("SEED_ADMIN_PASSWORD", "changeme")

	return seedAll(ctx, users, logger, adminEmail, adminPassword, cfg.System.ActorEmail, cfg.Auth.BcryptCost)
}

// seedAll upserts the fixed role set and then the bootstrap accounts.
// users.role_name carries a foreign key to roles(name), so the roles must
// land first.
func seedAll(ctx context.Context, users repository.UserRepository, logger *zap.Logger, adminEmail, adminPassword, systemEmail string, bcryptCost int) error {
	if err := users.EnsureRoles(ctx, domain.AllRoles()); err != nil {
		return err
	}
	logger.Info("seed: roles ensured", zap.Int("count", len(domain.AllRoles())))

	if err := seedUser(ctx, users, logger, "Administrator", adminEmail, adminPassword, domain.RoleAdmin, bcryptCost); err != nil {
		return err
	}

	// The system actor authors tickets created by channel webhooks. It never
	// logs in, so it gets a random password.
	return seedUser(ctx, users, logger, "System", systemEmail, uuid.NewString(), domain.RoleAdmin, bcryptCost)
}

func seedUser(ctx context.Context, users repository.UserRepository, logger *zap.Logger, name, email, password string, role domain.RoleName, bcryptCost int) error {
	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		logger.Info("seed: account already exists", zap.String("email", email))
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password, bcryptCost)
	if err != nil {
		return err
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := users.Create(ctx, user); err != nil {
		return err
	}
	logger.Info("seed: account created", zap.String("email", email), zap.String("role", string(role)))
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
