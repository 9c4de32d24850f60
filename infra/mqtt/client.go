package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/sampler/core/command"
	coremqtt "github.com/kilianp07/sampler/core/mqtt"
	"github.com/kilianp07/sampler/infra/logger"
)

// QoS keys understood in Config.QoS.
const (
	QoSCommand  = "command"
	QoSResponse = "response"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker        string          `json:"broker"`
	ClientID      string          `json:"client_id"`
	Username      string          `json:"username"`
	Password      string          `json:"password"`
	CommandTopic  string          `json:"command_topic"`
	ResponseTopic string          `json:"response_topic"`
	UseTLS        bool            `json:"use_tls"`
	ClientCert    string          `json:"client_cert"`
	ClientKey     string          `json:"client_key"`
	CABundle      string          `json:"ca_bundle"`
	AuthMethod    string          `json:"auth_method"`
	QoS           map[string]byte `json:"qos"`
	LWTTopic      string          `json:"lwt_topic"`
	LWTPayload    string          `json:"lwt_payload"`
	LWTQoS        byte            `json:"lwt_qos"`
	LWTRetain     bool            `json:"lwt_retain"`
	// OnlinePayload is published on LWTTopic after every successful connect.
	OnlinePayload string      `json:"online_payload"`
	MaxRetries    int         `json:"max_retries"`
	BackoffMS     int         `json:"backoff_ms"`
	TLSConfig     *tls.Config `json:"-"`
}

// SetDefaults fills the topics, QoS levels and retry policy.
func (c *Config) SetDefaults() {
	if c.Broker == "" {
		c.Broker = "tcp://localhost:1883"
	}
	if c.ClientID == "" {
		c.ClientID = "sampler-" + uuid.NewString()[:8]
	}
	if c.CommandTopic == "" {
		c.CommandTopic = "sensor/command"
	}
	if c.ResponseTopic == "" {
		c.ResponseTopic = "sensor/response"
	}
	if c.QoS == nil {
		c.QoS = map[string]byte{}
	}
	if _, ok := c.QoS[QoSCommand]; !ok {
		c.QoS[QoSCommand] = 0
	}
	if _, ok := c.QoS[QoSResponse]; !ok {
		c.QoS[QoSResponse] = 1
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return errors.New("mqtt: broker is required")
	}
	if c.CommandTopic == "" || c.ResponseTopic == "" {
		return errors.New("mqtt: command_topic and response_topic are required")
	}
	if c.CommandTopic == c.ResponseTopic {
		return fmt.Errorf("mqtt: command and response topics must differ, both are %q", c.CommandTopic)
	}
	for k, q := range c.QoS {
		if q > 2 {
			return fmt.Errorf("mqtt: qos %s must be 0, 1 or 2, got %d", k, q)
		}
	}
	switch c.AuthMethod {
	case "", "username_password", "certificate", "both":
	default:
		return fmt.Errorf("mqtt: unknown auth_method %q", c.AuthMethod)
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// MessageFunc receives the topic and payload of an inbound message.
type MessageFunc func(topic string, payload []byte)

type subscription struct {
	qos     byte
	handler paho.MessageHandler
}

// PahoClient subscribes to the command topic and publishes sample lines on
// the response topic using Eclipse Paho.
type PahoClient struct {
	cli pahoClient
	cfg Config

	mu     sync.Mutex
	subs   map[string]subscription
	logger logger.Logger

	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the broker. When handler is not nil every message
// on the command topic is passed to it. Subscriptions are restored after a
// reconnect.
func NewPahoClient(cfg Config, handler coremqtt.CommandHandler) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		cfg:        cfg,
		subs:       make(map[string]subscription),
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if handler != nil {
		pc.subs[cfg.CommandTopic] = subscription{qos: pc.qos(QoSCommand), handler: CommandMessageHandler(handler)}
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected to %s as %s", cfg.Broker, cfg.ClientID)
		pc.mu.Lock()
		subs := make(map[string]subscription, len(pc.subs))
		for topic, s := range pc.subs {
			subs[topic] = s
		}
		pc.mu.Unlock()
		for topic, s := range subs {
			if token := c.Subscribe(topic, s.qos, s.handler); token.Wait() && token.Error() != nil {
				log.Errorf("subscribe %s: %v", topic, token.Error())
			}
		}
		if cfg.LWTTopic != "" && cfg.OnlinePayload != "" {
			if token := c.Publish(cfg.LWTTopic, cfg.LWTQoS, cfg.LWTRetain, cfg.OnlinePayload); token.Wait() && token.Error() != nil {
				log.Warnf("status publish: %v", token.Error())
			}
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	pc.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, token.Error())
	}
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("ca bundle %s holds no certificate", c.CABundle)
	}
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PahoClient) qos(key string) byte {
	if q, ok := p.cfg.QoS[key]; ok {
		return q
	}
	return 0
}

// Publish sends payload to the response topic.
func (p *PahoClient) Publish(ctx context.Context, payload []byte) error {
	return p.publish(ctx, p.cfg.ResponseTopic, p.qos(QoSResponse), payload)
}

// SendCommand publishes cmd in its wire form on the command topic.
func (p *PahoClient) SendCommand(ctx context.Context, cmd command.Command) error {
	return p.publish(ctx, p.cfg.CommandTopic, p.qos(QoSCommand), []byte(cmd.String()))
}

// publish retries failed attempts with an exponential backoff. The returned
// error wraps coremqtt.ErrRetriesExhausted and the last transport error.
func (p *PahoClient) publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if !p.cli.IsConnected() {
			publishErr = coremqtt.ErrNotConnected
		} else {
			token := p.cli.Publish(topic, qos, false, payload)
			token.Wait()
			publishErr = token.Error()
		}
		if publishErr == nil {
			p.logger.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		case <-ctx.Done():
			return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", coremqtt.ErrRetriesExhausted, topic, p.maxRetries+1, publishErr)
}

// Subscribe registers fn for topic. The subscription survives reconnects.
func (p *PahoClient) Subscribe(topic string, qos byte, fn MessageFunc) error {
	handler := func(_ paho.Client, msg paho.Message) { fn(msg.Topic(), msg.Payload()) }
	p.mu.Lock()
	p.subs[topic] = subscription{qos: qos, handler: handler}
	p.mu.Unlock()
	if token := p.cli.Subscribe(topic, qos, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

// Config returns the effective configuration after defaults.
func (p *PahoClient) Config() Config { return p.cfg }

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
