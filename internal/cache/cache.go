// Package cache stores the public listing of available spaces outside the
// database. Entries expire after a TTL and are invalidated on every listing
// mutation.
package cache

import (
	"encoding/json"
	"time"

	"github.com/example/parkshare/internal/application"
)

// DefaultTTL bounds how stale a cached listing may become if an invalidation
// is lost.
const DefaultTTL = 5 * time.Minute

type cachedSpace struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	PriceCents  int64     `json:"price_cents"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func encodeSpaces(spaces []application.Space) ([]byte, error) {
	out := make([]cachedSpace, 0, len(spaces))
	for _, s := range spaces {
		out = append(out, cachedSpace{
			ID:          s.ID,
			OwnerID:     s.OwnerID,
			Title:       s.Title,
			Description: s.Description,
			Location:    s.Location,
			PriceCents:  int64(s.PricePerHour),
			Available:   s.Available,
			CreatedAt:   s.CreatedAt,
			UpdatedAt:   s.UpdatedAt,
		})
	}
	return json.Marshal(out)
}

func decodeSpaces(data []byte) ([]application.Space, error) {
	var in []cachedSpace
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	spaces := make([]application.Space, 0, len(in))
	for _, s := range in {
		spaces = append(spaces, application.Space{
			ID:           s.ID,
			OwnerID:      s.OwnerID,
			Title:        s.Title,
			Description:  s.Description,
			Location:     s.Location,
			PricePerHour: application.Cents(s.PriceCents),
			Available:    s.Available,
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
		})
	}
	return spaces, nil
}
