package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plangrove/voicelink/internal/domain"
)

// Compile-time interface assertions.
var (
	_ PlantRepository = (*PostgresPlantRepo)(nil)
	_ GroveRepository = (*PostgresGroveRepo)(nil)
	_ LinkRepository  = (*PostgresLinkRepo)(nil)
)

const plantColumns = `id, grove_id, name, species, location, watering_interval_days,
last_watered_at, streak_count, best_streak, streak_started_at, created_at, updated_at`

// PostgresPlantRepo implements PlantRepository on pgx.
type PostgresPlantRepo struct {
	db *pgxpool.Pool
}

func NewPostgresPlantRepo(pool *pgxpool.Pool) *PostgresPlantRepo {
	return &PostgresPlantRepo{db: pool}
}

func (r *PostgresPlantRepo) GetPlant(ctx context.Context, plantID string) (domain.Plant, error) {
	query := fmt.Sprintf(`SELECT %s FROM plants WHERE id = $1`, plantColumns)
	plant, err := scanPlant(r.db.QueryRow(ctx, query, plantID))
	if err != nil {
		return domain.Plant{}, fmt.Errorf("get plant: %w", err)
	}
	return plant, nil
}

func (r *PostgresPlantRepo) GetPlants(ctx context.Context, plantIDs []string) ([]domain.Plant, error) {
	query := fmt.Sprintf(`SELECT %s FROM plants WHERE id = ANY($1)`, plantColumns)
	rows, err := r.db.Query(ctx, query, plantIDs)
	if err != nil {
		return nil, fmt.Errorf("get plants: %w", err)
	}
	defer rows.Close()
	return collectPlants(rows)
}

func (r *PostgresPlantRepo) ListPlantsByGroves(ctx context.Context, groveIDs []string) ([]domain.Plant, error) {
	query := fmt.Sprintf(`SELECT %s FROM plants WHERE grove_id = ANY($1)`, plantColumns)
	rows, err := r.db.Query(ctx, query, groveIDs)
	if err != nil {
		return nil, fmt.Errorf("list plants by groves: %w", err)
	}
	defer rows.Close()
	return collectPlants(rows)
}

// UpdateWatering persists watering fields with a plain UPDATE. Concurrent
// waterings of the same plant can interleave their read-modify-write cycles;
// the caller owns that tradeoff.
func (r *PostgresPlantRepo) UpdateWatering(ctx context.Context, plant domain.Plant) error {
	const query = `UPDATE plants
SET last_watered_at = $2, streak_count = $3, best_streak = $4, streak_started_at = $5, updated_at = now()
WHERE id = $1`
	tag, err := r.db.Exec(ctx, query,
		plant.ID,
		plant.LastWateredAt,
		plant.StreakCount,
		plant.BestStreak,
		plant.StreakStartedAt,
	)
	if err != nil {
		return fmt.Errorf("update watering: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update watering: %w", pgx.ErrNoRows)
	}
	return nil
}

func (r *PostgresPlantRepo) InsertWateringEvent(ctx context.Context, event domain.WateringEvent) error {
	const query = `INSERT INTO watering_events (id, plant_id, user_id, source, watered_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.Exec(ctx, query, event.ID, event.PlantID, event.UserID, event.Source, event.WateredAt); err != nil {
		return fmt.Errorf("insert watering event: %w", err)
	}
	return nil
}

// PostgresGroveRepo implements GroveRepository.
type PostgresGroveRepo struct {
	db *pgxpool.Pool
}

func NewPostgresGroveRepo(pool *pgxpool.Pool) *PostgresGroveRepo {
	return &PostgresGroveRepo{db: pool}
}

const groveColumns = `id, owner_id, name, location, created_at, updated_at`

func (r *PostgresGroveRepo) GetGrove(ctx context.Context, groveID string) (domain.Grove, error) {
	query := fmt.Sprintf(`SELECT %s FROM groves WHERE id = $1`, groveColumns)
	grove, err := scanGrove(r.db.QueryRow(ctx, query, groveID))
	if err != nil {
		return domain.Grove{}, fmt.Errorf("get grove: %w", err)
	}
	return grove, nil
}

func (r *PostgresGroveRepo) GetGroves(ctx context.Context, groveIDs []string) ([]domain.Grove, error) {
	query := fmt.Sprintf(`SELECT %s FROM groves WHERE id = ANY($1)`, groveColumns)
	rows, err := r.db.Query(ctx, query, groveIDs)
	if err != nil {
		return nil, fmt.Errorf("get groves: %w", err)
	}
	defer rows.Close()

	var groves []domain.Grove
	for rows.Next() {
		grove, err := scanGrove(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grove: %w", err)
		}
		groves = append(groves, grove)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get groves: %w", err)
	}
	return groves, nil
}

// PostgresLinkRepo implements LinkRepository.
type PostgresLinkRepo struct {
	db *pgxpool.Pool
}

func NewPostgresLinkRepo(pool *pgxpool.Pool) *PostgresLinkRepo {
	return &PostgresLinkRepo{db: pool}
}

const linkColumns = `user_id, agent_user_id, access_token, refresh_token, token_expires_at,
linked_grove_ids, created_at, updated_at`

func (r *PostgresLinkRepo) GetLink(ctx context.Context, userID string) (domain.Link, error) {
	query := fmt.Sprintf(`SELECT %s FROM links WHERE user_id = $1`, linkColumns)
	link, err := scanLink(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return domain.Link{}, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

// UpsertLink creates or refreshes the one Link a user may have. The conflict
// branch leaves linked_grove_ids untouched so re-linking keeps prior consent.
func (r *PostgresLinkRepo) UpsertLink(ctx context.Context, link domain.Link) error {
	const query = `INSERT INTO links (user_id, agent_user_id, access_token, refresh_token, token_expires_at, linked_grove_ids)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE
SET agent_user_id = EXCLUDED.agent_user_id,
    access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    token_expires_at = EXCLUDED.token_expires_at,
    updated_at = now()`
	groveIDs := link.LinkedGroveIDs
	if groveIDs == nil {
		groveIDs = []string{}
	}
	if _, err := r.db.Exec(ctx, query,
		link.UserID,
		link.AgentUserID,
		link.AccessToken,
		link.RefreshToken,
		link.TokenExpiresAt,
		groveIDs,
	); err != nil {
		return fmt.Errorf("upsert link: %w", err)
	}
	return nil
}

func (r *PostgresLinkRepo) UpdateLinkedGroves(ctx context.Context, userID string, groveIDs []string) error {
	const query = `UPDATE links SET linked_grove_ids = $2, updated_at = now() WHERE user_id = $1`
	if groveIDs == nil {
		groveIDs = []string{}
	}
	tag, err := r.db.Exec(ctx, query, userID, groveIDs)
	if err != nil {
		return fmt.Errorf("update linked groves: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update linked groves: %w", pgx.ErrNoRows)
	}
	return nil
}

func (r *PostgresLinkRepo) DeleteLink(ctx context.Context, userID string) error {
	const query = `DELETE FROM links WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}

func (r *PostgresLinkRepo) ListLinksByGrove(ctx context.Context, groveID string) ([]domain.Link, error) {
	query := fmt.Sprintf(`SELECT %s FROM links WHERE $1 = ANY(linked_grove_ids)`, linkColumns)
	rows, err := r.db.Query(ctx, query, groveID)
	if err != nil {
		return nil, fmt.Errorf("list links by grove: %w", err)
	}
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list links by grove: %w", err)
	}
	return links, nil
}

func collectPlants(rows pgx.Rows) ([]domain.Plant, error) {
	var plants []domain.Plant
	for rows.Next() {
		plant, err := scanPlant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plant: %w", err)
		}
		plants = append(plants, plant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read plants: %w", err)
	}
	return plants, nil
}

func scanPlant(row pgx.Row) (domain.Plant, error) {
	var plant domain.Plant
	err := row.Scan(
		&plant.ID,
		&plant.GroveID,
		&plant.Name,
		&plant.Species,
		&plant.Location,
		&plant.WateringIntervalDays,
		&plant.LastWateredAt,
		&plant.StreakCount,
		&plant.BestStreak,
		&plant.StreakStartedAt,
		&plant.CreatedAt,
		&plant.UpdatedAt,
	)
	return plant, err
}

func scanGrove(row pgx.Row) (domain.Grove, error) {
	var grove domain.Grove
	err := row.Scan(
		&grove.ID,
		&grove.OwnerID,
		&grove.Name,
		&grove.Location,
		&grove.CreatedAt,
		&grove.UpdatedAt,
	)
	return grove, err
}

func scanLink(row pgx.Row) (domain.Link, error) {
	var link domain.Link
	err := row.Scan(
		&link.UserID,
		&link.AgentUserID,
		&link.AccessToken,
		&link.RefreshToken,
		&link.TokenExpiresAt,
		&link.LinkedGroveIDs,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	return link, err
}
