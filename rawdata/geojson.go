package rawdata

import (
	"encoding/json"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeometryFromGeoJSON decodes a GeoJSON geometry, Feature or FeatureCollection.
// The polygons of a FeatureCollection are merged into one MultiPolygon.
func GeometryFromGeoJSON(data []byte) (orb.Geometry, errorsx.Error) {
	var header struct {
		Type string `json:"type"`
	}
	err := json.Unmarshal(data, &header)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	switch header.Type {
	case "Feature":
		feature, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
		if feature.Geometry == nil {
			return nil, errorsx.Errorf("feature has no geometry")
		}
		return feature.Geometry, nil
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
		return mergeFeatureGeometries(fc)
	default:
		geometry, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
		if geometry.Geometry() == nil {
			return nil, errorsx.Errorf("unsupported geometry type %q", header.Type)
		}
		return geometry.Geometry(), nil
	}
}

func mergeFeatureGeometries(fc *geojson.FeatureCollection) (orb.Geometry, errorsx.Error) {
	switch len(fc.Features) {
	case 0:
		return nil, errorsx.Errorf("feature collection has no features")
	case 1:
		if fc.Features[0].Geometry == nil {
			return nil, errorsx.Errorf("feature has no geometry")
		}
		return fc.Features[0].Geometry, nil
	}

	var multiPolygon orb.MultiPolygon
	for i, feature := range fc.Features {
		switch g := feature.Geometry.(type) {
		case orb.Polygon:
			multiPolygon = append(multiPolygon, g)
		case orb.MultiPolygon:
			multiPolygon = append(multiPolygon, g...)
		case orb.Bound:
			multiPolygon = append(multiPolygon, g.ToPolygon())
		default:
			return nil, errorsx.Errorf("feature %d: expected a polygon but got %T", i, feature.Geometry)
		}
	}

	return multiPolygon, nil
}
