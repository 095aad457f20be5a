package entities

// DefaultRegion seeds the session when location lookup fails or times out.
const DefaultRegion = "Andhra Pradesh"

// RegionForCoordinates maps rough coordinates to a covered state. Coarse
// latitude banding is good enough to seed scheme filtering until the user
// picks a state manually.
func RegionForCoordinates(lat, lng float64) string {
	switch {
	case lat > 28:
		return "Delhi"
	case lat > 25:
		return "Uttar Pradesh"
	case lat > 21:
		return "West Bengal"
	case lat > 18.5:
		return "Maharashtra"
	case lat > 17:
		return "Telangana"
	default:
		return DefaultRegion
	}
}
