package route

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mertsyildirim/tasiapp-last-sub003/internal/db"
)

// GeocodeCache memoizes resolved addresses so repeated shipments between the
// same endpoints do not keep hitting the provider. Routes themselves are
// never cached; only the address -> point mapping is.
type GeocodeCache struct {
	db db.Querier
}

func NewGeocodeCache(q db.Querier) *GeocodeCache {
	return &GeocodeCache{db: q}
}

// normalizeKey collapses whitespace so cache keys are stable.
func normalizeKey(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// Get returns the cached point for an address, or nil on a miss.
func (c *GeocodeCache) Get(ctx context.Context, address string) (*LatLng, error) {
	var p LatLng
	err := c.db.QueryRow(ctx, `
		SELECT lat, lng FROM geocode_cache WHERE address=$1
	`, normalizeKey(address)).Scan(&p.Lat, &p.Lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("geocode cache get: %w", err)
	}
	return &p, nil
}

// Put stores or refreshes the point for an address.
func (c *GeocodeCache) Put(ctx context.Context, address string, p LatLng) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO geocode_cache (address, lat, lng, resolved_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (address) DO UPDATE SET lat=$2, lng=$3, resolved_at=now()
	`, normalizeKey(address), p.Lat, p.Lng)
	if err != nil {
		return fmt.Errorf("geocode cache put: %w", err)
	}
	return nil
}
