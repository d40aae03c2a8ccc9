package traffic

import (
	"fmt"
	"math"
	"time"
)

// VehicleType is the category of an observed vehicle.
type VehicleType string

const (
	// VehicleCar is a passenger car.
	VehicleCar VehicleType = "car"

	// VehicleTruck is a goods vehicle. Trucks usually carry a lower speed limit.
	VehicleTruck VehicleType = "truck"

	// VehicleBus is a passenger bus.
	VehicleBus VehicleType = "bus"

	// VehicleMotorcycle is a two-wheeler.
	VehicleMotorcycle VehicleType = "motorcycle"
)

// DefaultLocation is the sensor identifier stamped on vehicles that do not carry one.
const DefaultLocation = "Highway-Sensor-001"

// Vehicle is one observation taken by a roadside sensor.
type Vehicle struct {
	ID           string      `json:"id"`
	LicensePlate string      `json:"license_plate"`
	Speed        float64     `json:"speed"` // km/h
	Type         VehicleType `json:"vehicle_type"`
	STNKActive   bool        `json:"stnk_active"` // registration document valid
	SIMActive    bool        `json:"sim_active"`  // driver licence valid
	Timestamp    time.Time   `json:"timestamp"`
	Location     string      `json:"location,omitempty"`
}

// Validate checks that the observation can be evaluated. Only the id and
// the speed are required; a missing type falls back to the general limit.
func (v *Vehicle) Validate() error {
	switch {
	case v.ID == "":
		return fmt.Errorf("vehicle id is required")
	case math.IsNaN(v.Speed) || math.IsInf(v.Speed, 0):
		return fmt.Errorf("vehicle %s: speed must be finite", v.ID)
	case v.Speed < 0:
		return fmt.Errorf("vehicle %s: speed must be non-negative, got %.1f", v.ID, v.Speed)
	}
	return nil
}

// Summary is the compact vehicle view shown on the status board.
type Summary struct {
	ID           string      `json:"id"`
	LicensePlate string      `json:"license_plate"`
	Speed        float64     `json:"speed"`
	Type         VehicleType `json:"vehicle_type"`
}

// Summarize returns the board view of the vehicle.
func (v *Vehicle) Summarize() Summary {
	return Summary{
		ID:           v.ID,
		LicensePlate: v.LicensePlate,
		Speed:        v.Speed,
		Type:         v.Type,
	}
}
