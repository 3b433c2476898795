package rawdatadal

import (
	"math"
	"strconv"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/paulmach/osm"
)

const maxZoomLevel = 24

// ParseTile parses a slippy map tile given as "z/x/y" into the bounds it covers
func ParseTile(tileStr string) (osm.Bounds, errorsx.Error) {
	fragments := strings.Split(strings.Trim(tileStr, "/"), "/")
	if len(fragments) != 3 {
		return osm.Bounds{}, errorsx.Errorf("expected a tile in the format 'z/x/y', but got %q", tileStr)
	}

	var ints []int
	for _, fragment := range fragments {
		i, err := strconv.Atoi(fragment)
		if err != nil {
			return osm.Bounds{}, errorsx.Wrap(err, "tile", tileStr)
		}
		ints = append(ints, i)
	}

	z, x, y := ints[0], ints[1], ints[2]
	if z < 0 || z > maxZoomLevel {
		return osm.Bounds{}, errorsx.Errorf("zoom level must be between 0 and %d, but got %d", maxZoomLevel, z)
	}

	tilesPerSide := 1 << uint(z)
	if x < 0 || x >= tilesPerSide || y < 0 || y >= tilesPerSide {
		return osm.Bounds{}, errorsx.Errorf("tile %q is outside of the zoom level (0-%d)", tileStr, tilesPerSide-1)
	}

	return TileToBounds(x, y, z), nil
}

func TileToBounds(x, y, zoomLevel int) osm.Bounds {
	n := math.Exp2(float64(zoomLevel))

	return osm.Bounds{
		MinLat: tileLat(y+1, n),
		MaxLat: tileLat(y, n),
		MinLon: float64(x)/n*360 - 180,
		MaxLon: float64(x+1)/n*360 - 180,
	}
}

func tileLat(y int, n float64) float64 {
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(y)/n)))
	return latRad * 180 / math.Pi
}
