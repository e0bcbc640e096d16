package report

import (
	"time"

	"github.com/golang/geo/s2"
	geojson "github.com/paulmach/go.geojson"
)

const (
	DefaultZoom = 13
	FocusZoom   = 16
)

// DefaultCenter is where the map opens before any report is selected.
var DefaultCenter = Location{Lon: 9.7, Lat: 4.05}

// LayerConfig tells the map layer how to style markers. It is built by the
// caller and handed to FeatureCollection; nothing here is global.
type LayerConfig struct {
	ClassFor     map[Status]string
	DefaultClass string
}

func DefaultLayerConfig() LayerConfig {
	return LayerConfig{
		ClassFor: map[Status]string{
			StatusVerified: "marker-verified",
			StatusPending:  "marker-pending",
			StatusRejected: "marker-rejected",
		},
		DefaultClass: "marker-pending",
	}
}

func (c LayerConfig) class(s Status) string {
	if class, ok := c.ClassFor[s]; ok {
		return class
	}
	return c.DefaultClass
}

// FeatureCollection builds the marker layer. Reports without a position are
// skipped.
func FeatureCollection(reports []Report, cfg LayerConfig) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range reports {
		if !r.HasLocation {
			continue
		}
		f := geojson.NewPointFeature([]float64{r.Location.Lon, r.Location.Lat})
		f.ID = r.ID
		f.SetProperty("id", r.ID)
		f.SetProperty("incident_type", r.IncidentType)
		f.SetProperty("description", r.Description)
		f.SetProperty("status", string(r.Status))
		f.SetProperty("status_label", r.Status.Label())
		f.SetProperty("class", cfg.class(r.Status))
		f.SetProperty("h3_index", r.H3Index)
		if !r.CreatedAt.IsZero() {
			f.SetProperty("created_at", r.CreatedAt.UTC().Format(time.RFC3339))
		}
		fc.AddFeature(f)
	}
	return fc
}

// Bounds is the smallest rectangle holding every located report. It is empty
// when none has a position.
func Bounds(reports []Report) s2.Rect {
	rect := s2.EmptyRect()
	for _, r := range reports {
		if r.HasLocation {
			rect = rect.AddPoint(r.Location.LatLng())
		}
	}
	return rect
}
