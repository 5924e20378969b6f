package mission

import "github.com/tiiuae/backyardflyer/internal/types"

const (
	squareSide     = 1.0
	squareAltitude = 0.5
)

// GenerateWaypoints returns the four corners of the box flown from p. The
// start altitude is flattened so every corner shares one altitude.
func GenerateWaypoints(p types.Vec3) []types.Vec3 {
	start := types.Vec3{X: p.X, Y: p.Y}
	offsets := []types.Vec3{
		{X: squareSide, Y: 0, Z: squareAltitude},
		{X: squareSide, Y: squareSide, Z: squareAltitude},
		{X: 0, Y: squareSide, Z: squareAltitude},
		{X: 0, Y: 0, Z: squareAltitude},
	}

	waypoints := make([]types.Vec3, 0, len(offsets))
	for _, o := range offsets {
		waypoints = append(waypoints, start.Add(o))
	}

	return waypoints
}
