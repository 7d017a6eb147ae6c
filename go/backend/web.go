package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// requestTimeout bounds every backend call so that telemetry losses on a
// stalled backend stay contained to one dispatch tick.
const requestTimeout = 10 * time.Second

// WebClient is the HTTP implementation of Backend.
type WebClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
}

// NewWebClient builds a WebClient against |apiURL|, authenticating with
// |apiKey| when non-empty.
func NewWebClient(apiURL, apiKey string) (*WebClient, error) {
	var base, err = url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("parsing API URL: %w", err)
	}
	return &WebClient{
		baseURL: base,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout},
	}, nil
}

// objectEnvelope is the backend's response framing for single resources.
type objectEnvelope struct {
	Object json.RawMessage `json:"object"`
}

// objectsEnvelope is the backend's response framing for resource lists.
type objectsEnvelope struct {
	Objects json.RawMessage `json:"objects"`
}

func (c *WebClient) do(ctx context.Context, op, method, resource string, request, response interface{}) error {
	var u = *c.baseURL
	u.Path = path.Join(u.Path, resource) + "/"

	var body io.Reader
	if request != nil {
		var b, err = json.Marshal(request)
		if err != nil {
			return &Error{Kind: KindOther, Op: op, Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return &Error{Kind: KindOther, Op: op, Err: err}
	}
	if request != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Kegbot-Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}

	switch sc := resp.StatusCode; {
	case sc == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("%s", resp.Status)}
	case sc >= 500:
		return &Error{Kind: KindServer, Op: op, Err: fmt.Errorf("%s", resp.Status)}
	case sc < 200 || sc >= 300:
		return &Error{Kind: KindOther, Op: op, Err: fmt.Errorf("%s: %s", resp.Status, string(respBody))}
	}

	if response == nil {
		return nil
	}
	if raw, ok := response.(*json.RawMessage); ok {
		*raw = respBody
		return nil
	}
	if err = json.Unmarshal(respBody, response); err != nil {
		return &Error{Kind: KindOther, Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (c *WebClient) GetStatus(ctx context.Context) (json.RawMessage, error) {
	var status json.RawMessage
	if err := c.do(ctx, "status", "GET", "status", nil, &status); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *WebClient) GetAllTaps(ctx context.Context) ([]TapDescriptor, error) {
	var env objectsEnvelope
	if err := c.do(ctx, "taps", "GET", "taps", nil, &env); err != nil {
		return nil, err
	}
	var taps []TapDescriptor
	if err := json.Unmarshal(env.Objects, &taps); err != nil {
		return nil, &Error{Kind: KindOther, Op: "taps", Err: err}
	}
	return taps, nil
}

func (c *WebClient) RecordDrink(ctx context.Context, req DrinkRequest) (*Drink, error) {
	var env objectEnvelope
	var resource = path.Join("taps", req.MeterName, "record-drink")
	if err := c.do(ctx, "record-drink", "POST", resource, &req, &env); err != nil {
		return nil, err
	}
	var drink Drink
	if err := json.Unmarshal(env.Object, &drink); err != nil {
		return nil, &Error{Kind: KindOther, Op: "record-drink", Err: err}
	}
	return &drink, nil
}

func (c *WebClient) CancelDrink(ctx context.Context, drinkID string, spilled bool) error {
	var req = struct {
		Spilled bool `json:"spilled"`
	}{Spilled: spilled}
	return c.do(ctx, "cancel-drink", "POST", path.Join("drinks", drinkID, "cancel"), &req, nil)
}

func (c *WebClient) LogSensorReading(ctx context.Context, sensorName string, value float64, when time.Time) error {
	var req = struct {
		TempC      float64   `json:"temp_c"`
		RecordTime time.Time `json:"record_time"`
	}{TempC: value, RecordTime: when}
	return c.do(ctx, "log-sensor-reading", "POST",
		path.Join("thermo-sensors", sensorName), &req, nil)
}

func (c *WebClient) GetAuthToken(ctx context.Context, authDevice, tokenValue string) (*AuthToken, error) {
	var env objectEnvelope
	var resource = path.Join("auth-tokens", authDevice, tokenValue)
	if err := c.do(ctx, "get-token", "GET", resource, nil, &env); err != nil {
		return nil, err
	}
	var token AuthToken
	if err := json.Unmarshal(env.Object, &token); err != nil {
		return nil, &Error{Kind: KindOther, Op: "get-token", Err: err}
	}
	return &token, nil
}

// defaultMeterNames are created on every new controller.
var defaultMeterNames = []string{"flow0", "flow1"}

func (c *WebClient) CreateController(ctx context.Context, name string) (*Controller, error) {
	var env objectEnvelope
	var req = struct {
		Name string `json:"name"`
	}{Name: name}
	if err := c.do(ctx, "create-controller", "POST", "controllers", &req, &env); err != nil {
		return nil, err
	}
	var controller Controller
	if err := json.Unmarshal(env.Object, &controller); err != nil {
		return nil, &Error{Kind: KindOther, Op: "create-controller", Err: err}
	}

	for _, meter := range defaultMeterNames {
		var meterReq = struct {
			Name string `json:"name"`
		}{Name: meter}
		var resource = path.Join("controllers", controller.ID, "flow-meters")
		if err := c.do(ctx, "create-flow-meter", "POST", resource, &meterReq, nil); err != nil {
			return nil, err
		}
	}
	return &controller, nil
}
