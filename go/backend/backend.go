// Package backend is the client of the remote kegbot HTTP API.
package backend

import (
	"context"
	"encoding/json"
	"time"
)

// TapDescriptor is the backend's description of a configured tap.
type TapDescriptor struct {
	MeterName string  `json:"meter_name"`
	MLPerTick float64 `json:"ml_per_tick"`
	RelayName string  `json:"relay_name,omitempty"`
}

// DrinkRequest is a completed pour to be recorded.
type DrinkRequest struct {
	MeterName string    `json:"-"`
	Ticks     int64     `json:"ticks"`
	Username  string    `json:"username,omitempty"`
	PourTime  time.Time `json:"pour_time"`
	// Duration of the pour, in seconds.
	Duration  int64  `json:"duration"`
	AuthToken string `json:"auth_token,omitempty"`
	Spilled   bool   `json:"spilled"`
	Shout     string `json:"shout,omitempty"`
}

// Drink is a recorded drink, as returned by the backend.
type Drink struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Ticks    int64     `json:"ticks"`
	VolumeML float64   `json:"volume_ml"`
	KegID    string    `json:"keg_id,omitempty"`
	UserID   string    `json:"user_id,omitempty"`
}

// AuthToken is an authentication token record held by the backend.
type AuthToken struct {
	AuthDevice string `json:"auth_device"`
	TokenValue string `json:"token_value"`
	Enabled    bool   `json:"enabled"`
	Username   string `json:"username,omitempty"`
}

// Controller is a registered hardware controller.
type Controller struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Backend is the interface consumed by the core managers. Implementations
// classify their failures with the Error type of this package.
type Backend interface {
	// GetStatus returns the full system status document. The core treats
	// it as opaque, forwarding it in SyncEvents.
	GetStatus(ctx context.Context) (json.RawMessage, error)
	// GetAllTaps returns all configured taps.
	GetAllTaps(ctx context.Context) ([]TapDescriptor, error)
	// RecordDrink posts a completed pour as a drink.
	RecordDrink(ctx context.Context, req DrinkRequest) (*Drink, error)
	// CancelDrink cancels a previously recorded drink.
	CancelDrink(ctx context.Context, drinkID string, spilled bool) error
	// LogSensorReading records a temperature reading.
	LogSensorReading(ctx context.Context, sensorName string, value float64, when time.Time) error
	// GetAuthToken fetches a token record. A token unknown to the backend
	// surfaces as a KindNotFound error.
	GetAuthToken(ctx context.Context, authDevice, tokenValue string) (*AuthToken, error)
	// CreateController registers a newly connected controller, along with
	// its default flow meters.
	CreateController(ctx context.Context, name string) (*Controller, error)
}
