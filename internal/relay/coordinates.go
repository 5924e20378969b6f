package relay

import (
	"math"

	"github.com/tiiuae/backyardflyer/internal/types"
)

const earthRadiusMetres float64 = 6371000

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// groundDistance is the haversine distance in metres along the surface.
// Alt is ignored: DistanceFromHome is horizontal, AltitudeFromHome comes
// from the local NED z.
func groundDistance(from types.GlobalPosition, to types.GlobalPosition) float64 {
	dLat := radians(to.Lat - from.Lat)
	dLon := radians(to.Lon - from.Lon)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(from.Lat))*math.Cos(radians(to.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMetres * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
