package aprs

import (
	"fmt"
	"strings"
)

// GridSquareToLatLon converts a Maidenhead locator ("JO21" or "JO21ce") to the
// longitude and latitude of its center.
func GridSquareToLatLon(grid string) (float64, float64, error) {
	grid = strings.ToUpper(strings.TrimSpace(grid))
	if len(grid) != 4 && len(grid) != 6 {
		return 0, 0, fmt.Errorf("gridsquare must be 4 or 6 characters: %q", grid)
	}
	if grid[0] < 'A' || grid[0] > 'R' || grid[1] < 'A' || grid[1] > 'R' {
		return 0, 0, fmt.Errorf("invalid gridsquare field: %q", grid)
	}
	if grid[2] < '0' || grid[2] > '9' || grid[3] < '0' || grid[3] > '9' {
		return 0, 0, fmt.Errorf("invalid gridsquare square: %q", grid)
	}

	// field: 20° x 10°
	lon := float64(grid[0]-'A')*20.0 - 180.0
	lat := float64(grid[1]-'A')*10.0 - 90.0

	// square: 2° x 1°
	lon += float64(grid[2]-'0') * 2.0
	lat += float64(grid[3]-'0') * 1.0

	if len(grid) == 4 {
		return lon + 1.0, lat + 0.5, nil
	}

	if grid[4] < 'A' || grid[4] > 'X' || grid[5] < 'A' || grid[5] > 'X' {
		return 0, 0, fmt.Errorf("invalid gridsquare subsquare: %q", grid)
	}
	// subsquare: 5' x 2.5', then its center
	lon += float64(grid[4]-'A')*(2.0/24.0) + 1.0/24.0
	lat += float64(grid[5]-'A')*(1.0/24.0) + 0.5/24.0

	return lon, lat, nil
}
