package amp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoData is returned when a request produced no usable response
var ErrNoData = errors.New("amp: no data")

// MaxKeypads bounds the keypad count accepted from AmpState
const MaxKeypads = 64

// Gateway talks to the amplifier's local HTTP API. It holds the last
// successfully assembled snapshot and never panics or retries on failure.
type Gateway struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
	readOnly bool
	now      func() time.Time

	mu       sync.RWMutex
	snapshot *Snapshot
}

// Option customizes a Gateway
type Option func(*Gateway)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithReadOnly makes commands log instead of reaching the device
func WithReadOnly(readOnly bool) Option {
	return func(g *Gateway) {
		g.readOnly = readOnly
	}
}

// WithNow sets the time source used to stamp snapshots
func WithNow(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// NewGateway creates a gateway for the API rooted at endpoint (e.g. http://amp:50230/api).
// timeout bounds every request.
func NewGateway(endpoint string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.Named("amp"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the display name of the gateway device
func (g *Gateway) Name() string {
	return "MonoAmp Gateway"
}

// Snapshot returns the last successfully assembled snapshot, or nil
func (g *Gateway) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot
}

// Refresh fetches the amplifier summary and then every keypad in order.
// On any failure the whole tick is abandoned: the previously held snapshot
// is returned unchanged together with the error.
func (g *Gateway) Refresh(ctx context.Context) (*Snapshot, error) {
	var state ampStateReport
	if err := g.fetchJSON(ctx, "AmpState", nil, &state); err != nil {
		return g.Snapshot(), fmt.Errorf("failed to fetch amp state: %w", err)
	}

	if state.KeypadCount < 0 || state.KeypadCount > MaxKeypads {
		g.logger.Error("Amplifier reported an invalid keypad count",
			zap.Int("keypad_count", state.KeypadCount))
		return g.Snapshot(), fmt.Errorf("%w: keypad count %d out of range", ErrNoData, state.KeypadCount)
	}

	zones := make([]Zone, 0, state.KeypadCount)
	for kp := 0; kp < state.KeypadCount; kp++ {
		var report keypadReport
		args := url.Values{"chan": []string{strconv.Itoa(kp)}}
		if err := g.fetchJSON(ctx, "keypad", args, &report); err != nil {
			return g.Snapshot(), fmt.Errorf("failed to fetch keypad %d: %w", kp, err)
		}
		zones = append(zones, zoneFromReport(report))
	}

	sources := make([]string, len(state.Sources))
	copy(sources, state.Sources)

	snapshot := &Snapshot{
		KeypadCount: state.KeypadCount,
		Zones:       zones,
		Sources:     sources,
		FetchedAt:   g.now(),
	}

	g.mu.Lock()
	g.snapshot = snapshot
	g.mu.Unlock()

	g.logger.Debug("Amplifier state refreshed",
		zap.Int("keypads", state.KeypadCount),
		zap.Int("sources", len(sources)))
	return snapshot, nil
}

// Command sets a property on a channel and returns the raw device response.
// On failure it returns "" and the error; deciding whether that matters is
// up to the caller.
func (g *Gateway) Command(ctx context.Context, channel int, prop Property, value int) (string, error) {
	args := url.Values{
		"Channel":  []string{strconv.Itoa(channel)},
		"Property": []string{string(prop)},
		"Value":    []string{strconv.Itoa(value)},
	}
	return g.command(ctx, "Value", args)
}

// Step nudges a property one unit up or down (ValueUp / ValueDn)
func (g *Gateway) Step(ctx context.Context, channel int, prop Property, up bool) (string, error) {
	requestID := "ValueDn"
	if up {
		requestID = "ValueUp"
	}
	args := url.Values{
		"Channel":  []string{strconv.Itoa(channel)},
		"Property": []string{string(prop)},
	}
	return g.command(ctx, requestID, args)
}

func (g *Gateway) command(ctx context.Context, requestID string, args url.Values) (string, error) {
	if g.readOnly {
		g.logger.Info("READ-ONLY: would send amplifier command",
			zap.String("request", requestID),
			zap.String("args", args.Encode()))
		return "", nil
	}

	body, err := g.request(ctx, requestID, args)
	if err != nil {
		return "", err
	}

	g.logger.Debug("Amplifier command sent",
		zap.String("request", requestID),
		zap.String("args", args.Encode()),
		zap.String("response", string(body)))
	return string(body), nil
}

func (g *Gateway) fetchJSON(ctx context.Context, requestID string, args url.Values, target interface{}) error {
	body, err := g.request(ctx, requestID, args)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		g.logger.Error("Failed to decode amplifier response",
			zap.String("request", requestID),
			zap.Error(err))
		return fmt.Errorf("%w: decode %s: %v", ErrNoData, requestID, err)
	}
	return nil
}

// request performs one GET against the API. Every failure is logged here.
func (g *Gateway) request(ctx context.Context, requestID string, args url.Values) ([]byte, error) {
	target := g.endpoint + "/" + requestID
	if len(args) > 0 {
		target += "?" + args.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request %s: %w", requestID, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("Amplifier request failed",
			zap.String("request", requestID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrNoData, requestID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.Error("Failed to read amplifier response",
			zap.String("request", requestID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: read %s: %v", ErrNoData, requestID, err)
	}

	if resp.StatusCode != http.StatusOK {
		g.logger.Error("Amplifier returned error status",
			zap.String("request", requestID),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: %s: status %d", ErrNoData, requestID, resp.StatusCode)
	}

	return body, nil
}
