package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/parkshare/internal/persistence"
)

// SpaceRepository implements persistence.SpaceRepository using SQLite.
type SpaceRepository struct {
	pool *ConnectionPool
}

// NewSpaceRepository creates a new SQLite space repository.
func NewSpaceRepository(pool *ConnectionPool) *SpaceRepository {
	return &SpaceRepository{pool: pool}
}

const spaceColumns = `id, owner_id, title, description, location, price_cents, is_available, created_at, updated_at`

// CreateSpace inserts a new listing.
func (r *SpaceRepository) CreateSpace(ctx context.Context, space persistence.Space) error {
	if space.ID == "" || space.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}

	const query = `INSERT INTO spaces (` + spaceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.pool.DB().ExecContext(ctx, query,
		space.ID,
		space.OwnerID,
		space.Title,
		space.Description,
		space.Location,
		space.PriceCents,
		space.Available,
		formatTime(space.CreatedAt),
		formatTime(space.UpdatedAt),
	)
	return mapError(err)
}

// UpdateSpace replaces the mutable fields of a listing. The owner never changes.
func (r *SpaceRepository) UpdateSpace(ctx context.Context, space persistence.Space) error {
	const query = `
		UPDATE spaces
		SET title = ?, description = ?, location = ?, price_cents = ?, is_available = ?, updated_at = ?
		WHERE id = ?`
	result, err := r.pool.DB().ExecContext(ctx, query,
		space.Title,
		space.Description,
		space.Location,
		space.PriceCents,
		space.Available,
		formatTime(space.UpdatedAt),
		space.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// GetSpace retrieves a listing by ID.
func (r *SpaceRepository) GetSpace(ctx context.Context, id string) (persistence.Space, error) {
	if id == "" {
		return persistence.Space{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+spaceColumns+` FROM spaces WHERE id = ?`, id)
	return scanSpace(row)
}

// ListSpaces returns listings matching filter, newest first.
func (r *SpaceRepository) ListSpaces(ctx context.Context, filter persistence.SpaceFilter) ([]persistence.Space, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.AvailableOnly {
		clauses = append(clauses, "is_available = 1")
	}

	query := `SELECT ` + spaceColumns + ` FROM spaces`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
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
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE space_id = ?`, id); err != nil {
			return mapError(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM space_images WHERE space_id = ?`, id); err != nil {
			return mapError(err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM spaces WHERE id = ?`, id)
		if err != nil {
			return mapError(err)
		}
		return requireAffected(result)
	})
}

// AddSpaceImage attaches an image reference to a listing.
func (r *SpaceRepository) AddSpaceImage(ctx context.Context, image persistence.SpaceImage) error {
	if image.ID == "" || image.SpaceID == "" || strings.TrimSpace(image.Path) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.DB().ExecContext(ctx,
		`INSERT INTO space_images (id, space_id, path, created_at) VALUES (?, ?, ?, ?)`,
		image.ID, image.SpaceID, image.Path, formatTime(image.CreatedAt),
	)
	return mapError(err)
}

// ListSpaceImages returns the images of a listing in upload order.
func (r *SpaceRepository) ListSpaceImages(ctx context.Context, spaceID string) ([]persistence.SpaceImage, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT id, space_id, path, created_at FROM space_images WHERE space_id = ? ORDER BY created_at ASC, id ASC`,
		spaceID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	images := make([]persistence.SpaceImage, 0)
	for rows.Next() {
		var (
			image     persistence.SpaceImage
			createdAt string
		)
		if err := rows.Scan(&image.ID, &image.SpaceID, &image.Path, &createdAt); err != nil {
			return nil, mapError(err)
		}
		if image.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return images, nil
}

func scanSpace(row rowScanner) (persistence.Space, error) {
	var (
		space                persistence.Space
		createdAt, updatedAt string
		err                  error
	)
	if err = row.Scan(
		&space.ID,
		&space.OwnerID,
		&space.Title,
		&space.Description,
		&space.Location,
		&space.PriceCents,
		&space.Available,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Space{}, mapError(err)
	}
	if space.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Space{}, err
	}
	if space.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Space{}, err
	}
	return space, nil
}
