package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/parkshare/internal/persistence"
)

// SpaceRepository implements persistence.SpaceRepository using PostgreSQL.
type SpaceRepository struct {
	pool *pgxpool.Pool
}

const spaceColumns = `id, owner_id, title, description, location, price_cents, is_available, created_at, updated_at`

// CreateSpace inserts a new listing.
func (r *SpaceRepository) CreateSpace(ctx context.Context, space persistence.Space) error {
	if space.ID == "" || space.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}

	const query = `INSERT INTO spaces (` + spaceColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		space.ID,
		space.OwnerID,
		space.Title,
		space.Description,
		space.Location,
		space.PriceCents,
		space.Available,
		utc(space.CreatedAt),
		utc(space.UpdatedAt),
	)
	return mapError(err)
}

// UpdateSpace replaces the mutable fields of a listing. The owner never changes.
func (r *SpaceRepository) UpdateSpace(ctx context.Context, space persistence.Space) error {
	const query = `
		UPDATE spaces
		SET title = $1, description = $2, location = $3, price_cents = $4, is_available = $5, updated_at = $6
		WHERE id = $7`
	tag, err := r.pool.Exec(ctx, query,
		space.Title,
		space.Description,
		space.Location,
		space.PriceCents,
		space.Available,
		utc(space.UpdatedAt),
		space.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(tag)
}

// GetSpace retrieves a listing by ID.
func (r *SpaceRepository) GetSpace(ctx context.Context, id string) (persistence.Space, error) {
	if id == "" {
		return persistence.Space{}, persistence.ErrNotFound
	}
	return scanSpace(r.pool.QueryRow(ctx, `SELECT `+spaceColumns+` FROM spaces WHERE id = $1`, id))
}

// ListSpaces returns listings matching filter, newest first.
func (r *SpaceRepository) ListSpaces(ctx context.Context, filter persistence.SpaceFilter) ([]persistence.Space, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.AvailableOnly {
		clauses = append(clauses, "is_available")
	}

	query := `SELECT ` + spaceColumns + ` FROM spaces`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	spaces := make([]persistence.Space, 0)
	for rows.Next() {
		space, err := scanSpace(rows)
		if err != nil {
			return nil, err
		}
		spaces = append(spaces, space)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return spaces, nil
}

// DeleteSpace removes a listing with its bookings and images in one transaction.
func (r *SpaceRepository) DeleteSpace(ctx context.Context, id string) error {
	return withTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM bookings WHERE space_id = $1`, id); err != nil {
			return mapError(err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM space_images WHERE space_id = $1`, id); err != nil {
			return mapError(err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM spaces WHERE id = $1`, id)
		if err != nil {
			return mapError(err)
		}
		return requireAffected(tag)
	})
}

// AddSpaceImage attaches an image reference to a listing.
func (r *SpaceRepository) AddSpaceImage(ctx context.Context, image persistence.SpaceImage) error {
	if image.ID == "" || image.SpaceID == "" || strings.TrimSpace(image.Path) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO space_images (id, space_id, path, created_at) VALUES ($1, $2, $3, $4)`,
		image.ID, image.SpaceID, image.Path, utc(image.CreatedAt),
	)
	return mapError(err)
}

// ListSpaceImages returns the images of a listing in upload order.
func (r *SpaceRepository) ListSpaceImages(ctx context.Context, spaceID string) ([]persistence.SpaceImage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, space_id, path, created_at FROM space_images WHERE space_id = $1 ORDER BY created_at ASC, id ASC`,
		spaceID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	images := make([]persistence.SpaceImage, 0)
	for rows.Next() {
		var image persistence.SpaceImage
		if err := rows.Scan(&image.ID, &image.SpaceID, &image.Path, &image.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		image.CreatedAt = utc(image.CreatedAt)
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return images, nil
}

func scanSpace(row pgx.Row) (persistence.Space, error) {
	var space persistence.Space
	if err := row.Scan(
		&space.ID,
		&space.OwnerID,
		&space.Title,
		&space.Description,
		&space.Location,
		&space.PriceCents,
		&space.Available,
		&space.CreatedAt,
		&space.UpdatedAt,
	); err != nil {
		return persistence.Space{}, mapError(err)
	}
	space.CreatedAt = utc(space.CreatedAt)
	space.UpdatedAt = utc(space.UpdatedAt)
	return space, nil
}
