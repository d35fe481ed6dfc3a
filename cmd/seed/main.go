package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alecthomas/kong"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/smartcrm/internal/repository"
	"github.com/aryan0dhankhar/smartcrm/pkg/config"
	"github.com/aryan0dhankhar/smartcrm/pkg/database"
)

var cli struct {
	OrgName          string `help:"Name of the first organization." default:"Default Organization"`
	Tier             string `help:"Subscription tier of the organization." default:"free" enum:"free,basic,premium"`
	AdminEmail       string `help:"System admin email." required:"" env:"SEED_ADMIN_EMAIL"`
	AdminPassword    string `help:"System admin password." required:"" env:"SEED_ADMIN_PASSWORD"`
	OrgAdminEmail    string `help:"Optional org admin for the organization." env:"SEED_ORG_ADMIN_EMAIL"`
	OrgAdminPassword string `help:"Password for the org admin." env:"SEED_ORG_ADMIN_PASSWORD"`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("smartcrm-seed"),
		kong.Description("Create the first organization and system admin in the database named by DATABASE_URL."),
	)

	cfg, err := config.Load()
	kctx.FatalIfErrorf(err)
	log := logger.NewLogger(cfg.LogLevel)
	if cfg.DatabaseURL == "" {
		kctx.Fatalf("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := database.NewConnectionPool(ctx, &database.Config{URL: cfg.DatabaseURL}, log)
	kctx.FatalIfErrorf(err)
	defer pool.Close()
	kctx.FatalIfErrorf(pool.Migrate(ctx))

	store := repository.NewStore(pool.GetDB(), log)
	res, err := seed(ctx,
		repository.NewPostgresOrganizationRepository(store),
		repository.NewPostgresUserRepository(store),
		seedOptions{
			OrgName:          cli.OrgName,
			Tier:             domain.SubscriptionTier(cli.Tier),
			AdminEmail:       cli.AdminEmail,
			AdminPassword:    cli.AdminPassword,
			OrgAdminEmail:    cli.OrgAdminEmail,
			OrgAdminPassword: cli.OrgAdminPassword,
			BcryptCost:       cfg.BcryptCost,
		}, log)
	kctx.FatalIfErrorf(err)

	log.Info("seed complete",
		slog.String("organization_id", res.Organization.ID.String()),
		slog.String("system_admin_id", res.SystemAdmin.ID.String()),
	)
	fmt.Printf("organization %s (%s)\nsystem admin %s\n", res.Organization.Name, res.Organization.ID, res.SystemAdmin.Email)
	if res.OrgAdmin != nil {
		fmt.Printf("org admin %s\n", res.OrgAdmin.Email)
	}
}
