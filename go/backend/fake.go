package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Fake is an in-memory Backend for tests. All mutators record their calls,
// and every operation can be failed by setting its error field.
type Fake struct {
	mu sync.Mutex

	Status json.RawMessage
	Taps   []TapDescriptor
	// Tokens maps "device|value" to a token record.
	Tokens map[string]*AuthToken

	// Errors returned by the corresponding operations, when set.
	StatusErr      error
	RecordErr      error
	LogSensorErr   error
	GetTokenErr    error
	ControllerErr  error
	CancelDrinkErr error

	RecordedDrinks  []DrinkRequest
	CanceledDrinks  []string
	SensorReadings  []FakeSensorReading
	ControllerNames []string

	nextDrinkID int
}

// FakeSensorReading is one recorded LogSensorReading call.
type FakeSensorReading struct {
	SensorName string
	Value      float64
	When       time.Time
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{Tokens: make(map[string]*AuthToken)}
}

// AddToken installs a token record for GetAuthToken lookups.
func (f *Fake) AddToken(authDevice, tokenValue, username string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tokens[authDevice+"|"+tokenValue] = &AuthToken{
		AuthDevice: authDevice,
		TokenValue: tokenValue,
		Username:   username,
		Enabled:    enabled,
	}
}

func (f *Fake) GetStatus(context.Context) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StatusErr != nil {
		return nil, f.StatusErr
	}
	return f.Status, nil
}

func (f *Fake) GetAllTaps(context.Context) ([]TapDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TapDescriptor(nil), f.Taps...), nil
}

func (f *Fake) RecordDrink(_ context.Context, req DrinkRequest) (*Drink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RecordErr != nil {
		return nil, f.RecordErr
	}
	f.RecordedDrinks = append(f.RecordedDrinks, req)
	f.nextDrinkID++
	return &Drink{
		ID:     fmt.Sprintf("drink-%d", f.nextDrinkID),
		Time:   req.PourTime,
		Ticks:  req.Ticks,
		UserID: req.Username,
	}, nil
}

func (f *Fake) CancelDrink(_ context.Context, drinkID string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CancelDrinkErr != nil {
		return f.CancelDrinkErr
	}
	f.CanceledDrinks = append(f.CanceledDrinks, drinkID)
	return nil
}

func (f *Fake) LogSensorReading(_ context.Context, sensorName string, value float64, when time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LogSensorErr != nil {
		return f.LogSensorErr
	}
	f.SensorReadings = append(f.SensorReadings, FakeSensorReading{
		SensorName: sensorName,
		Value:      value,
		When:       when,
	})
	return nil
}

func (f *Fake) GetAuthToken(_ context.Context, authDevice, tokenValue string) (*AuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetTokenErr != nil {
		return nil, f.GetTokenErr
	}
	var token, ok = f.Tokens[authDevice+"|"+tokenValue]
	if !ok {
		return nil, &Error{Kind: KindNotFound, Op: "get-token",
			Err: fmt.Errorf("no token %s on device %s", tokenValue, authDevice)}
	}
	var copied = *token
	return &copied, nil
}

func (f *Fake) CreateController(_ context.Context, name string) (*Controller, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ControllerErr != nil {
		return nil, f.ControllerErr
	}
	f.ControllerNames = append(f.ControllerNames, name)
	return &Controller{ID: "controller-" + name, Name: name}, nil
}
