// Package planning implements the facial planning board: a fixed set of
// facial landmarks positioned over the patient's photo and a set of named
// adjustment sliders. One plan per patient, saved as a whole.
package planning

import (
	"time"

	"github.com/google/uuid"
)

// Landmark is a named point in photo-relative coordinates (0..1 on both
// axes, origin at the top-left).
type Landmark struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Adjustment bounds. Sliders move in whole steps.
const (
	AdjustmentMin = -20
	AdjustmentMax = 20
)

// AdjustmentNames are the sliders on the planning board, in display order.
var AdjustmentNames = []string{
	"jaw_width",
	"cheekbone_width",
	"nose_projection",
	"lip_fullness",
	"chin_projection",
}

// DefaultLandmarks returns the starting landmark layout. Positions are the
// anatomical priors the user drags into place.
func DefaultLandmarks() []Landmark {
	return []Landmark{
		{Name: "jaw_left", X: 0.2, Y: 0.8},
		{Name: "jaw_right", X: 0.8, Y: 0.8},
		{Name: "nose_tip", X: 0.5, Y: 0.5},
		{Name: "left_cheek", X: 0.3, Y: 0.5},
		{Name: "right_cheek", X: 0.7, Y: 0.5},
	}
}

// DefaultAdjustments returns all sliders at the neutral position.
func DefaultAdjustments() map[string]int {
	out := make(map[string]int, len(AdjustmentNames))
	for _, name := range AdjustmentNames {
		out[name] = 0
	}
	return out
}

// Plan is a patient's saved planning state.
type Plan struct {
	ID          uuid.UUID      `json:"id"`
	PatientID   uuid.UUID      `json:"patient_id"`
	ClinicID    uuid.UUID      `json:"clinic_id"`
	Landmarks   []Landmark     `json:"landmarks"`
	Adjustments map[string]int `json:"adjustments"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Input is the writable portion of a plan.
type Input struct {
	Landmarks   []Landmark     `json:"landmarks"`
	Adjustments map[string]int `json:"adjustments"`
}

// adjustmentScale converts one slider step into a photo-relative offset, so
// a slider at its limit moves a point by 5% of the photo.
const adjustmentScale = 0.0025

// Projected returns the landmark layout with the adjustment offsets applied.
// Width sliders push their pair of points apart, projection sliders shift
// along the vertical axis. Sliders without an anchored landmark
// (lip_fullness) only affect the rendered morph, not the points.
func (p *Plan) Projected() []Landmark {
	out := make([]Landmark, len(p.Landmarks))
	copy(out, p.Landmarks)

	idx := make(map[string]*Landmark, len(out))
	for i := range out {
		idx[out[i].Name] = &out[i]
	}
	shift := func(name string, dx, dy float64) {
		l, ok := idx[name]
		if !ok {
			return
		}
		l.X = clamp01(l.X + dx)
		l.Y = clamp01(l.Y + dy)
	}

	for name, v := range p.Adjustments {
		d := float64(v) * adjustmentScale
		switch name {
		case "jaw_width":
			shift("jaw_left", -d, 0)
			shift("jaw_right", d, 0)
		case "cheekbone_width":
			shift("left_cheek", -d, 0)
			shift("right_cheek", d, 0)
		case "nose_projection":
			shift("nose_tip", 0, -d)
		case "chin_projection":
			shift("jaw_left", 0, d)
			shift("jaw_right", 0, d)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
