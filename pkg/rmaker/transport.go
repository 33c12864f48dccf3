package rmaker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// MessageHandler receives a message published on topic.
type MessageHandler func(topic string, payload []byte)

// Transport is a publish/subscribe connection.
type Transport interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, fn MessageHandler) error
	Unsubscribe(topic string) error
	Close() error
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker   string
	Username string
	Password string

	// ClientID defaults to "homectl-" plus a random suffix.
	ClientID string

	ConnectTimeout time.Duration
	QoS            byte

	LoggerFactory logging.LoggerFactory
}

// PahoTransport is a Transport backed by an MQTT broker.
type PahoTransport struct {
	client pahomqtt.Client
	qos    byte
	log    logging.LeveledLogger
}

// DialMQTT connects to the configured broker.
func DialMQTT(cfg MQTTConfig) (*PahoTransport, error) {
	if cfg.Broker == "" {
		return nil, errors.New("rmaker: broker address required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "homectl-" + uuid.NewString()[:8]
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	t := &PahoTransport{qos: cfg.QoS, log: lf.NewLogger("rmaker")}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			t.log.Infof("connected to %s", cfg.Broker)
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			t.log.Warnf("connection lost: %v", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("rmaker: mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("rmaker: mqtt connect: %w", err)
	}
	t.client = client
	return t, nil
}

func wait(token pahomqtt.Token) error {
	token.Wait()
	return token.Error()
}

// Publish implements Transport.
func (t *PahoTransport) Publish(topic string, payload []byte) error {
	return wait(t.client.Publish(topic, t.qos, false, payload))
}

// Subscribe implements Transport.
func (t *PahoTransport) Subscribe(topic string, fn MessageHandler) error {
	return wait(t.client.Subscribe(topic, t.qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		fn(msg.Topic(), msg.Payload())
	}))
}

// Unsubscribe implements Transport.
func (t *PahoTransport) Unsubscribe(topic string) error {
	return wait(t.client.Unsubscribe(topic))
}

// Close disconnects from the broker.
func (t *PahoTransport) Close() error {
	t.client.Disconnect(250)
	return nil
}

// MemoryBroker is an in-process broker. Handlers run synchronously on the
// publishing goroutine. Topics match exactly.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[string]map[int]MessageHandler
	nextID int
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[int]MessageHandler)}
}

// Client returns a new connection to the broker.
func (b *MemoryBroker) Client() Transport {
	return &memoryClient{broker: b, own: make(map[string]int)}
}

func (b *MemoryBroker) publish(topic string, payload []byte) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs[topic]))
	for id := range b.subs[topic] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]MessageHandler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subs[topic][id])
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(topic, append([]byte(nil), payload...))
	}
}

type memoryClient struct {
	broker *MemoryBroker

	mu     sync.Mutex
	own    map[string]int
	closed bool
}

func (c *memoryClient) Publish(topic string, payload []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	c.broker.publish(topic, payload)
	return nil
}

func (c *memoryClient) Subscribe(topic string, fn MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := c.own[topic]; ok {
		b.subs[topic][id] = fn
		return nil
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]MessageHandler)
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = fn
	c.own[topic] = id
	return nil
}

func (c *memoryClient) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribeLocked(topic)
	return nil
}

func (c *memoryClient) unsubscribeLocked(topic string) {
	id, ok := c.own[topic]
	if !ok {
		return
	}
	delete(c.own, topic)
	b := c.broker
	b.mu.Lock()
	delete(b.subs[topic], id)
	b.mu.Unlock()
}

func (c *memoryClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic := range c.own {
		c.unsubscribeLocked(topic)
	}
	c.closed = true
	return nil
}
