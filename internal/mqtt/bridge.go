package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"monoamp/internal/amp"
	"monoamp/internal/clock"
	"monoamp/internal/config"
	"monoamp/internal/coordinator"
	"monoamp/internal/entity"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"
)

const (
	// commandQueueSize bounds the commands waiting for the worker
	commandQueueSize = 32
	// commandTimeout bounds the device I/O of one command
	commandTimeout = 15 * time.Second
)

// Publisher is the subset of the connection manager the bridge publishes through
type Publisher interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

// Ticker delivers coordinator ticks to the bridge
type Ticker interface {
	Subscribe(listener coordinator.Listener) coordinator.Subscription
}

type inboundCommand struct {
	topic   string
	payload []byte
}

// Bridge exposes the entities to Home Assistant through MQTT discovery.
// Discovery configs are published on every (re-)connect, states on every
// coordinator tick, and Pandora players are polled on the scan interval.
// Select discovery is republished whenever its options change.
type Bridge struct {
	cfg          config.MQTTConfig
	scanInterval time.Duration
	device       DeviceInfo
	ticker       Ticker
	clock        clock.Clock
	logger       *zap.Logger

	objects  []*object
	byID     map[string]*object
	pandora  []*entity.PandoraPlayer
	commands chan inboundCommand

	mu  sync.RWMutex
	pub Publisher
	cm  *autopaho.ConnectionManager

	// options last advertised per select object
	optionsMu sync.Mutex
	published map[string][]string
}

// New creates a bridge but does not connect. Call Start to connect.
func New(cfg config.MQTTConfig, scanInterval time.Duration, instanceID string, entities []entity.Entity, ticker Ticker, clk clock.Clock, logger *zap.Logger) *Bridge {
	gateway := entity.DeviceInfo{Name: "MonoAmp Gateway", Manufacturer: "MonoPrice", Model: "MA1000"}
	if len(entities) > 0 {
		gateway = entities[0].Device()
	}

	b := &Bridge{
		cfg:          cfg,
		scanInterval: scanInterval,
		device:       NewDeviceInfo(instanceID, gateway),
		ticker:       ticker,
		clock:        clk,
		logger:       logger.Named("mqtt"),
		byID:         make(map[string]*object),
		commands:     make(chan inboundCommand, commandQueueSize),
		published:    make(map[string][]string),
	}

	b.objects = b.buildObjects(entities)
	for _, obj := range b.objects {
		b.byID[obj.id] = obj
	}
	for _, e := range entities {
		if p, ok := e.(*entity.PandoraPlayer); ok {
			b.pandora = append(b.pandora, p)
		}
	}
	return b
}

// Start connects to the broker and runs until ctx is cancelled. On every
// (re-)connect it publishes discovery, availability and current states.
func (b *Bridge) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(b.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: b.cfg.Username,
		ConnectPassword: []byte(b.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   b.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			b.logger.Info("Connected to MQTT broker", zap.String("broker", b.cfg.Broker))
			b.setPublisher(cm)
			b.publishDiscovery(ctx)
			b.publishAvailability(ctx, "online")
			b.publishStates(ctx)

			if _, err := cm.Subscribe(ctx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{{Topic: b.baseTopic() + "/+/set", QoS: 1}},
			}); err != nil {
				b.logger.Warn("MQTT command subscription failed", zap.Error(err))
			}
		},
		OnConnectError: func(err error) {
			b.logger.Warn("MQTT connection error", zap.Error(err))
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "monoamp-" + b.cfg.DeviceName,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					b.enqueue(pr.Packet.Topic, pr.Packet.Payload)
					return true, nil
				},
			},
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	b.mu.Lock()
	b.cm = cm
	b.mu.Unlock()

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		b.logger.Warn("MQTT initial connection timed out, will retry in background", zap.Error(err))
	}

	b.run(ctx)
	return nil
}

// Stop publishes offline availability and disconnects
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.RLock()
	cm := b.cm
	b.mu.RUnlock()

	if cm == nil {
		return nil
	}
	b.publishAvailability(ctx, "offline")
	return cm.Disconnect(ctx)
}

// run handles commands, republishes states on every coordinator tick and
// polls the Pandora players until ctx is cancelled
func (b *Bridge) run(ctx context.Context) {
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		b.processCommands(ctx)
	}()
	defer func() { <-workerDone }()

	sub := b.ticker.Subscribe(func(*amp.Snapshot) {
		b.refreshSelects(ctx, "zone_")
		b.publishStates(ctx)
	})
	defer sub.Unsubscribe()

	if len(b.pandora) == 0 || b.scanInterval <= 0 {
		<-ctx.Done()
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.clock.After(b.scanInterval):
			b.scanPandora(ctx)
		}
	}
}

// scanPandora updates every Pandora player and republishes its objects
func (b *Bridge) scanPandora(ctx context.Context) {
	for _, p := range b.pandora {
		if err := p.Update(ctx); err != nil {
			b.logger.Debug("Pandora update failed", zap.Int("player", p.Index()), zap.Error(err))
		}
	}
	b.refreshSelects(ctx, "pandora_")
	b.publishStatesWithPrefix(ctx, "pandora_")
}

// --- Topic helpers ---

func (b *Bridge) baseTopic() string {
	return "monoamp/" + b.cfg.DeviceName
}

func (b *Bridge) availabilityTopic() string {
	return b.baseTopic() + "/availability"
}

func (b *Bridge) entityAvailabilityTopic(id string) string {
	return b.baseTopic() + "/" + id + "/availability"
}

func (b *Bridge) stateTopic(id string) string {
	return b.baseTopic() + "/" + id + "/state"
}

func (b *Bridge) commandTopic(id string) string {
	return b.baseTopic() + "/" + id + "/set"
}

func (b *Bridge) discoveryTopic(component, id string) string {
	return b.cfg.DiscoveryPrefix + "/" + component + "/" + b.cfg.DeviceName + "/" + id + "/config"
}

// --- Publishing ---

func (b *Bridge) setPublisher(pub Publisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pub = pub
}

func (b *Bridge) publisher() Publisher {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pub
}

func (b *Bridge) publish(ctx context.Context, topic string, payload []byte, qos byte) error {
	pub := b.publisher()
	if pub == nil {
		return fmt.Errorf("mqtt bridge not connected")
	}
	_, err := pub.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  true,
	})
	return err
}

func (b *Bridge) publishDiscovery(ctx context.Context) {
	published := 0
	for _, obj := range b.objects {
		if b.publishObjectDiscovery(ctx, obj) {
			published++
		}
	}
	b.logger.Debug("MQTT discovery published", zap.Int("objects", published))
}

// publishObjectDiscovery publishes one discovery config with the current
// select options. A select without options is held back until it has some.
func (b *Bridge) publishObjectDiscovery(ctx context.Context, obj *object) bool {
	cfg := obj.config
	var options []string
	if obj.options != nil {
		options = obj.options()
		if len(options) == 0 {
			b.logger.Debug("Select has no options yet, discovery deferred", zap.String("object", obj.id))
			return false
		}
		cfg.Options = options
	}

	topic := b.discoveryTopic(obj.component, obj.id)
	payload, err := json.Marshal(cfg)
	if err != nil {
		b.logger.Error("Failed to marshal discovery payload", zap.String("object", obj.id), zap.Error(err))
		return false
	}

	if err := b.publish(ctx, topic, payload, 1); err != nil {
		b.logger.Warn("MQTT discovery publish failed",
			zap.String("object", obj.id),
			zap.String("topic", topic),
			zap.Error(err))
		return false
	}

	if obj.options != nil {
		b.optionsMu.Lock()
		b.published[obj.id] = options
		b.optionsMu.Unlock()
	}
	return true
}

// refreshSelects republishes the discovery config of every select whose
// options differ from the ones last advertised
func (b *Bridge) refreshSelects(ctx context.Context, prefix string) {
	if b.publisher() == nil {
		return
	}

	for _, obj := range b.objects {
		if obj.options == nil || !strings.HasPrefix(obj.id, prefix) {
			continue
		}

		b.optionsMu.Lock()
		last, ok := b.published[obj.id]
		b.optionsMu.Unlock()

		if ok && slices.Equal(last, obj.options()) {
			continue
		}
		if b.publishObjectDiscovery(ctx, obj) {
			b.logger.Info("Select options changed, discovery republished", zap.String("object", obj.id))
		}
	}
}

func (b *Bridge) publishAvailability(ctx context.Context, status string) {
	if err := b.publish(ctx, b.availabilityTopic(), []byte(status), 1); err != nil {
		b.logger.Warn("MQTT availability publish failed", zap.String("status", status), zap.Error(err))
		return
	}
	b.logger.Info("MQTT availability published", zap.String("status", status))
}

func (b *Bridge) publishStates(ctx context.Context) {
	b.publishStatesWithPrefix(ctx, "")
}

func (b *Bridge) publishStatesWithPrefix(ctx context.Context, prefix string) {
	if b.publisher() == nil {
		return
	}

	published := 0
	for _, obj := range b.objects {
		if !strings.HasPrefix(obj.id, prefix) {
			continue
		}

		if obj.available != nil {
			status := "offline"
			if obj.available() {
				status = "online"
			}
			if err := b.publish(ctx, b.entityAvailabilityTopic(obj.id), []byte(status), 0); err != nil {
				b.logger.Debug("MQTT availability publish failed", zap.String("object", obj.id), zap.Error(err))
			}
		}

		if obj.state == nil {
			continue
		}
		if err := b.publish(ctx, b.stateTopic(obj.id), []byte(obj.state()), 0); err != nil {
			b.logger.Debug("MQTT state publish failed", zap.String("object", obj.id), zap.Error(err))
			continue
		}
		published++
	}

	b.logger.Debug("MQTT states published", zap.Int("objects", published))
}

// --- Commands ---

// enqueue hands a received command to the worker. It never blocks the
// MQTT client; commands arriving while the queue is full are dropped.
func (b *Bridge) enqueue(topic string, payload []byte) {
	cmd := inboundCommand{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case b.commands <- cmd:
	default:
		b.logger.Warn("MQTT command queue full, dropping command", zap.String("topic", topic))
	}
}

// processCommands runs queued commands one at a time until ctx is cancelled
func (b *Bridge) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-b.commands:
			cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
			b.handleMessage(cmdCtx, cmd.topic, cmd.payload)
			cancel()
		}
	}
}

// handleMessage routes a command topic payload to the owning entity.
// Failures are logged; the host sees the result on the next state publish.
func (b *Bridge) handleMessage(ctx context.Context, topic string, payload []byte) error {
	id, ok := b.objectIDFromTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected topic %s", topic)
	}

	obj, ok := b.byID[id]
	if !ok || obj.command == nil {
		b.logger.Debug("Ignoring command for unknown object", zap.String("topic", topic))
		return fmt.Errorf("no command handler for %s", id)
	}

	if err := obj.command(ctx, string(payload)); err != nil {
		b.logger.Warn("MQTT command failed",
			zap.String("object", id),
			zap.String("payload", string(payload)),
			zap.Error(err))
		return err
	}

	b.logger.Debug("MQTT command handled", zap.String("object", id), zap.String("payload", string(payload)))
	return nil
}

func (b *Bridge) objectIDFromTopic(topic string) (string, bool) {
	prefix := b.baseTopic() + "/"
	if !strings.HasPrefix(topic, prefix) || !strings.HasSuffix(topic, "/set") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(topic, prefix), "/set")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
