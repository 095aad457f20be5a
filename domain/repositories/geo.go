package repositories

import "context"

// Coordinates is a lat/lng pair from a best-effort location lookup.
type Coordinates struct {
	Lat float64
	Lng float64
}

// Locator fetches the user's approximate coordinates. Implementations must
// honor the context deadline; failure is expected and never blocks startup.
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}
