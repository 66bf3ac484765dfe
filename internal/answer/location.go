package answer

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"survey-flow-service/internal/domain"
)

// coordinateEpsilon is roughly 0.1 m at the equator.
const coordinateEpsilon = 1e-6

// Location is a geographic point shared by the respondent.
type Location struct {
	latitude  float64
	longitude float64
	accuracy  *float64
	timestamp *time.Time
}

// NewLocation range-checks coordinates and accuracy. Errors wrap domain.ErrInvalidLocation.
func NewLocation(latitude, longitude float64, accuracy *float64, timestamp *time.Time) (Location, error) {
	if math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		return Location{}, fmt.Errorf("%w: latitude %v is outside [-90, 90]", domain.ErrInvalidLocation, latitude)
	}
	if math.IsNaN(longitude) || longitude < -180 || longitude > 180 {
		return Location{}, fmt.Errorf("%w: longitude %v is outside [-180, 180]", domain.ErrInvalidLocation, longitude)
	}
	loc := Location{latitude: latitude, longitude: longitude}
	if accuracy != nil {
		if math.IsNaN(*accuracy) || *accuracy < 0 {
			return Location{}, fmt.Errorf("%w: accuracy %v is negative", domain.ErrInvalidLocation, *accuracy)
		}
		a := *accuracy
		loc.accuracy = &a
	}
	if timestamp != nil {
		ts := timestamp.UTC()
		loc.timestamp = &ts
	}
	return loc, nil
}

func (l Location) Latitude() float64 { return l.latitude }

func (l Location) Longitude() float64 { return l.longitude }

func (l Location) Accuracy() (float64, bool) {
	if l.accuracy == nil {
		return 0, false
	}
	return *l.accuracy, true
}

func (l Location) Timestamp() (time.Time, bool) {
	if l.timestamp == nil {
		return time.Time{}, false
	}
	return *l.timestamp, true
}

func (Location) Type() domain.QuestionType { return domain.QuestionLocation }

func (l Location) DisplayValue() string {
	return fmt.Sprintf("%.6f, %.6f", l.latitude, l.longitude)
}

func (l Location) IsValidFor(q domain.Question) bool {
	return q.Type == domain.QuestionLocation
}

func (l Location) Equal(other Value) bool {
	o, ok := other.(Location)
	if !ok {
		return false
	}
	if math.Abs(l.latitude-o.latitude) > coordinateEpsilon || math.Abs(l.longitude-o.longitude) > coordinateEpsilon {
		return false
	}
	if (l.accuracy == nil) != (o.accuracy == nil) {
		return false
	}
	if l.accuracy != nil && math.Abs(*l.accuracy-*o.accuracy) > coordinateEpsilon {
		return false
	}
	if (l.timestamp == nil) != (o.timestamp == nil) {
		return false
	}
	return l.timestamp == nil || l.timestamp.Equal(*o.timestamp)
}

func (Location) sealed() {}

type locationJSON struct {
	Type      domain.QuestionType `json:"$type"`
	Latitude  *float64            `json:"latitude"`
	Longitude *float64            `json:"longitude"`
	Accuracy  *float64            `json:"accuracy,omitempty"`
	Timestamp *time.Time          `json:"timestamp,omitempty"`
}

func (l Location) MarshalJSON() ([]byte, error) {
	lat, lon := l.latitude, l.longitude
	return json.Marshal(locationJSON{
		Type:      domain.QuestionLocation,
		Latitude:  &lat,
		Longitude: &lon,
		Accuracy:  l.accuracy,
		Timestamp: l.timestamp,
	})
}

func decodeLocation(data []byte) (Value, error) {
	var in locationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, invalidf("location answer: %v", err)
	}
	if in.Latitude == nil || in.Longitude == nil {
		return nil, fmt.Errorf("%w: latitude and longitude are required", domain.ErrInvalidLocation)
	}
	return NewLocation(*in.Latitude, *in.Longitude, in.Accuracy, in.Timestamp)
}
