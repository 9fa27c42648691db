package repository

import (
	"context"
	"time"

	"github.com/plangrove/voicelink/internal/domain"
)

// PlantRepository exposes the plant rows the fulfillment core reads and
// mutates. Everything else about plants belongs to the main application.
type PlantRepository interface {
	GetPlant(ctx context.Context, plantID string) (domain.Plant, error)
	GetPlants(ctx context.Context, plantIDs []string) ([]domain.Plant, error)
	ListPlantsByGroves(ctx context.Context, groveIDs []string) ([]domain.Plant, error)
	UpdateWatering(ctx context.Context, plant domain.Plant) error
	InsertWateringEvent(ctx context.Context, event domain.WateringEvent) error
}

// GroveRepository reads grove rows by id.
type GroveRepository interface {
	GetGrove(ctx context.Context, groveID string) (domain.Grove, error)
	GetGroves(ctx context.Context, groveIDs []string) ([]domain.Grove, error)
}

// LinkRepository persists the account-platform binding. UpsertLink never
// touches LinkedGroveIDs on conflict; consent has its own mutation.
type LinkRepository interface {
	GetLink(ctx context.Context, userID string) (domain.Link, error)
	UpsertLink(ctx context.Context, link domain.Link) error
	UpdateLinkedGroves(ctx context.Context, userID string, groveIDs []string) error
	DeleteLink(ctx context.Context, userID string) error
	ListLinksByGrove(ctx context.Context, groveID string) ([]domain.Link, error)
}

// CodeStore holds single-use authorization codes. RedeemCode atomically
// consumes the code: exactly one caller observes it, later calls get nil.
type CodeStore interface {
	SaveCode(ctx context.Context, code domain.AuthorizationCode, ttl time.Duration) error
	RedeemCode(ctx context.Context, code string) (*domain.AuthorizationCode, error)
}
