package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/sampler/core/command"
	coremqtt "github.com/kilianp07/sampler/core/mqtt"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func useMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.CommandTopic != "sensor/command" || cfg.ResponseTopic != "sensor/response" {
		t.Fatalf("topics not defaulted: %+v", cfg)
	}
	if cfg.QoS[QoSCommand] != 0 || cfg.QoS[QoSResponse] != 1 {
		t.Fatalf("qos not defaulted: %v", cfg.QoS)
	}
	if cfg.MaxRetries != 3 || cfg.BackoffMS != 100 {
		t.Fatalf("retry policy not defaulted")
	}
	if !strings.HasPrefix(cfg.ClientID, "sampler-") {
		t.Fatalf("client id %q", cfg.ClientID)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{}
	base.SetDefaults()

	same := base
	same.ResponseTopic = same.CommandTopic
	if same.Validate() == nil {
		t.Fatalf("expected error for identical topics")
	}
	badQoS := base
	badQoS.QoS = map[string]byte{QoSResponse: 3}
	if badQoS.Validate() == nil {
		t.Fatalf("expected error for qos 3")
	}
	badAuth := base
	badAuth.AuthMethod = "kerberos"
	if badAuth.Validate() == nil {
		t.Fatalf("expected error for auth method")
	}
}

func TestQoSSettings(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", CommandTopic: "c", ResponseTopic: "r", QoS: map[string]byte{"command": 1, "response": 2}}
	handler := coremqtt.CommandHandlerFunc(func(string, []byte) {})
	cli, err := NewPahoClient(cfg, handler)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if len(mc.subscribed) != 1 || mc.subscribed[0].topic != "c" || mc.subscribed[0].qos != 1 {
		t.Fatalf("command subscription not applied: %+v", mc.subscribed)
	}
	if err := cli.Publish(context.Background(), []byte("2,25,10")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 1 || mc.published[0].topic != "r" || mc.published[0].qos != 2 {
		t.Fatalf("publish qos not applied: %+v", mc.published)
	}
	if string(mc.published[0].payload.([]byte)) != "2,25,10" {
		t.Fatalf("payload mismatch")
	}
}

func TestCommandsReachHandler(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	var got []string
	handler := coremqtt.CommandHandlerFunc(func(topic string, payload []byte) {
		got = append(got, topic+"|"+string(payload))
	})
	if _, err := NewPahoClient(Config{CommandTopic: "sensor/command", ResponseTopic: "sensor/response"}, handler); err != nil {
		t.Fatalf("client: %v", err)
	}
	mc.deliver("sensor/command", []byte("measure:3,50"))
	if len(got) != 1 || got[0] != "sensor/command|measure:3,50" {
		t.Fatalf("handler got %v", got)
	}
}

func TestNoHandlerNoSubscription(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	if _, err := NewPahoClient(Config{}, nil); err != nil {
		t.Fatalf("client: %v", err)
	}
	if len(mc.subscribed) != 0 {
		t.Fatalf("unexpected subscription %+v", mc.subscribed)
	}
}

func TestSubscribeSurvivesReconnect(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{}, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	var lines []string
	if err := cli.Subscribe("sensor/response", 1, func(_ string, p []byte) { lines = append(lines, string(p)) }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	mc.Connect()
	if len(mc.subscribed) != 2 {
		t.Fatalf("expected resubscribe, got %+v", mc.subscribed)
	}
	mc.deliver("sensor/response", []byte("0,21.5,100"))
	if len(lines) != 1 || lines[0] != "0,21.5,100" {
		t.Fatalf("lines %v", lines)
	}
}

func TestSendCommand(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{CommandTopic: "cmd", ResponseTopic: "resp"}, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := cli.SendCommand(context.Background(), command.Command{NumMeasurements: 3, IntervalMS: 50}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mc.published) != 1 || mc.published[0].topic != "cmd" || string(mc.published[0].payload.([]byte)) != "measure:3,50" {
		t.Fatalf("published %+v", mc.published)
	}
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "sensor/status", LWTPayload: "offline", LWTQoS: 1, LWTRetain: true, OnlinePayload: "online"}
	cli, err := NewPahoClient(cfg, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "sensor/status" || string(mc.opts.WillPayload) != "offline" {
		t.Fatalf("will options incorrect")
	}
	if len(mc.published) != 1 || mc.published[0].topic != "sensor/status" || mc.published[0].payload != "online" {
		t.Fatalf("online status not announced: %+v", mc.published)
	}
	cli.Disconnect()
	if len(mc.published) != 1 {
		t.Fatalf("unexpected publish on disconnect")
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	useMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}
	cli, err := NewPahoClient(cfg, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := cli.Publish(context.Background(), []byte("x")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries")
	}
}

func TestRetriesExhausted(t *testing.T) {
	netErr := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{netErr, netErr, netErr}}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{MaxRetries: 2, BackoffMS: 1}, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	err = cli.Publish(context.Background(), []byte("x"))
	if !errors.Is(err, coremqtt.ErrRetriesExhausted) || !errors.Is(err, netErr) {
		t.Fatalf("unexpected error %v", err)
	}
	if len(mc.published) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(mc.published))
	}
}

func TestPublishNotConnected(t *testing.T) {
	mc := &mockClient{disconnected: true}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{MaxRetries: 1, BackoffMS: 1}, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	err = cli.Publish(context.Background(), []byte("x"))
	if !errors.Is(err, coremqtt.ErrNotConnected) {
		t.Fatalf("unexpected error %v", err)
	}
	if len(mc.published) != 0 {
		t.Fatalf("published while disconnected")
	}
}

func TestPublishBackoffHonoursContext(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail")}}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{MaxRetries: 3, BackoffMS: 60000}, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = cli.Publish(ctx, []byte("x"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected error %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("backoff ignored the context")
	}
}

func TestConnectError(t *testing.T) {
	mc := &mockClient{connectErr: errors.New("refused")}
	useMock(t, mc)
	if _, err := NewPahoClient(Config{}, nil); err == nil || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("expected connect error, got %v", err)
	}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	handlers  map[string]paho.MessageHandler
	published []struct {
		topic   string
		qos     byte
		payload interface{}
	}
	publishErrs  []error
	connectErr   error
	disconnected bool
}

func (m *mockClient) IsConnected() bool { return !m.disconnected }
func (m *mockClient) Connect() paho.Token {
	if m.connectErr != nil {
		return &dummyToken{err: m.connectErr}
	}
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	m.published = append(m.published, struct {
		topic   string
		qos     byte
		payload interface{}
	}{topic, qos, payload})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	if m.handlers == nil {
		m.handlers = map[string]paho.MessageHandler{}
	}
	m.handlers[topic] = h
	return &dummyToken{}
}
func (m *mockClient) deliver(topic string, payload []byte) {
	if h := m.handlers[topic]; h != nil {
		h(m, mockMessage{topic: topic, p: payload})
	}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return !m.disconnected }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
