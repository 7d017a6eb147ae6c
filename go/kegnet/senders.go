package kegnet

import (
	"context"

	"github.com/kegbot/kegcore/go/kbevent"
)

// Convenience senders, used by device daemons and tests to drive the
// kegnet channel.

func (c *Client) SendControllerConnectedEvent(ctx context.Context, controllerName string) error {
	return c.Send(ctx, &kbevent.ControllerConnectedEvent{ControllerName: controllerName})
}

func (c *Client) SendMeterUpdate(ctx context.Context, meterName string, reading uint64) error {
	return c.Send(ctx, &kbevent.MeterUpdate{MeterName: meterName, Reading: reading})
}

func (c *Client) SendFlowStart(ctx context.Context, meterName string) error {
	return c.Send(ctx, &kbevent.FlowRequest{
		MeterName: meterName,
		Request:   kbevent.RequestStartFlow,
	})
}

func (c *Client) SendFlowStop(ctx context.Context, meterName string) error {
	return c.Send(ctx, &kbevent.FlowRequest{
		MeterName: meterName,
		Request:   kbevent.RequestStopFlow,
	})
}

func (c *Client) SendThermoUpdate(ctx context.Context, sensorName string, sensorValue float64) error {
	return c.Send(ctx, &kbevent.ThermoEvent{
		SensorName:  sensorName,
		SensorValue: sensorValue,
	})
}

func (c *Client) SendAuthTokenAdd(ctx context.Context, meterName, authDeviceName, tokenValue string) error {
	return c.Send(ctx, &kbevent.TokenAuthEvent{
		MeterName:      meterName,
		AuthDeviceName: authDeviceName,
		TokenValue:     tokenValue,
		Status:         kbevent.TokenAdded,
	})
}

func (c *Client) SendAuthTokenRemove(ctx context.Context, meterName, authDeviceName, tokenValue string) error {
	return c.Send(ctx, &kbevent.TokenAuthEvent{
		MeterName:      meterName,
		AuthDeviceName: authDeviceName,
		TokenValue:     tokenValue,
		Status:         kbevent.TokenRemoved,
	})
}

func (c *Client) SendRelayEvent(ctx context.Context, outputName string, mode kbevent.RelayMode) error {
	return c.Send(ctx, &kbevent.SetRelayOutputEvent{
		OutputName: outputName,
		OutputMode: mode,
	})
}
