package db

import (
	"context"
	"fmt"

	"living-science-documents/internal/domain"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, log zerolog.Logger) error {
	err := db.AutoMigrate(
		&domain.Publication{},
		&domain.DocumentVersion{},
		&domain.Author{},
		&domain.Figure{},
		&domain.Table{},
		&domain.Keyword{},
		&domain.Attachment{},
	)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	log.Info().Msg("database schema migrated successfully")
	return nil
}

// Seeder is the part of the version store used for development data.
type Seeder interface {
	CreatePublication(ctx context.Context, pub *domain.Publication) error
	FindPublication(ctx context.Context, id uint64) (*domain.Publication, error)
}

// SeedData creates a sample publication owned by ownerID (for development only)
func SeedData(ctx context.Context, store Seeder, ownerID uint64, log zerolog.Logger) {
	if _, err := store.FindPublication(ctx, 1); err == nil {
		log.Info().Msg("sample publication already exists")
		return
	}

	pub := &domain.Publication{
		Title:      "Getting started with living documents",
		ShortTitle: "Getting started",
		OwnerID:    ownerID,
	}
	if err := store.CreatePublication(ctx, pub); err != nil {
		log.Error().Err(err).Msg("error creating sample publication")
		return
	}
	log.Info().Uint64("publication_id", pub.ID).Msg("created sample publication")
}
