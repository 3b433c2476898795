package rawdatadal

import (
	"strconv"
	"strings"

	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// LoadBoundary reads a GeoJSON file with the area of interest. See rawdata.GeometryFromGeoJSON for the accepted shapes.
func LoadBoundary(fs gofs.Fs, path string) (orb.Geometry, errorsx.Error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, errorsx.Wrap(err, "path", path)
	}

	geometry, geomErr := rawdata.GeometryFromGeoJSON(data)
	if geomErr != nil {
		return nil, errorsx.Wrap(geomErr, "path", path)
	}

	switch geometry.(type) {
	case orb.Polygon, orb.MultiPolygon, orb.Bound:
		return geometry, nil
	default:
		return nil, errorsx.Errorf("boundary in %q must be a polygon or multipolygon, but got %s", path, geometry.GeoJSONType())
	}
}

// ParseBounds parses a bounding box given as "W,N,E,S"
func ParseBounds(boundsStr string) (osm.Bounds, errorsx.Error) {
	bounds := osm.Bounds{}

	fragments := strings.Split(boundsStr, ",")
	if len(fragments) != 4 {
		return bounds, errorsx.Errorf("expected 4 bounds, but got %d. Bounds should be in the format 'W,N,E,S'", len(fragments))
	}

	for idx, fragment := range fragments {
		coordinate, err := strconv.ParseFloat(strings.TrimSpace(fragment), 64)
		if err != nil {
			return bounds, errorsx.Wrap(err)
		}
		switch idx {
		case 0:
			bounds.MinLon = coordinate
		case 1:
			bounds.MaxLat = coordinate
		case 2:
			bounds.MaxLon = coordinate
		case 3:
			bounds.MinLat = coordinate
		}
	}

	if bounds.MinLon > bounds.MaxLon || bounds.MinLat > bounds.MaxLat {
		return bounds, errorsx.Errorf("invalid bounds %q: west must not be greater than east, and south must not be greater than north", boundsStr)
	}

	if !isTotallyInside(WholeWorldBounds(), bounds) {
		return bounds, errorsx.Errorf("bounds %q are outside of the world", boundsStr)
	}

	return bounds, nil
}

func WholeWorldBounds() osm.Bounds {
	return osm.Bounds{
		MaxLat: 90,
		MinLat: -90,
		MaxLon: 180,
		MinLon: -180,
	}
}

func isTotallyInside(container osm.Bounds, item osm.Bounds) bool {
	return item.MaxLat <= container.MaxLat && item.MaxLon <= container.MaxLon && item.MinLat >= container.MinLat && item.MinLon >= container.MinLon
}

// BoundaryFromBounds turns a bounding box into a boundary polygon
func BoundaryFromBounds(bounds osm.Bounds) orb.Polygon {
	return orb.Bound{
		Min: orb.Point{bounds.MinLon, bounds.MinLat},
		Max: orb.Point{bounds.MaxLon, bounds.MaxLat},
	}.ToPolygon()
}
