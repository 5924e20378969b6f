package types

import (
	"fmt"
	"math"
	"time"
)

// Vec3 is a position or velocity. Local values are NED metres, global
// values are latitude, longitude and altitude.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Horizontal returns the length of the X/Y component.
func (v Vec3) Horizontal() float64 {
	return math.Hypot(v.X, v.Y)
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z)
}

type ModeChanged struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type WaypointTargeted struct {
	Target    Vec3 `json:"target"`
	Remaining int  `json:"remaining"`
}

type MissionCompleted struct{}

type StallDetected struct {
	Mode  string        `json:"mode"`
	Since time.Time     `json:"since"`
	After time.Duration `json:"after"`
}

type VehicleState struct {
	Armed bool `json:"armed"`
}

type GlobalPosition struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

type LocalPosition struct {
	Position Vec3 `json:"position"`
	Velocity Vec3 `json:"velocity"`
}
