// Package bus wraps the paho MQTT client for the bridge: one command
// subscription feeding a buffered channel, plus plain publishes for
// responses, status, heartbeat and link quality.
package bus

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cyberglitchlabs/owon-xdm-remote/internal/clock"
)

const (
	keepAlive             = 60 * time.Second
	pingTimeout           = 10 * time.Second
	connectRetryInterval  = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second

	// commandBuffer holds commands arriving while the loop is mid-exchange.
	commandBuffer = 16
)

// Message is one command as delivered by the broker. ReceivedAt is stamped
// in the subscription callback, not when the bridge gets around to it, so
// the dedup window measures broker delivery spacing.
type Message struct {
	Text       string
	ReceivedAt time.Time
}

// Options configures the broker connection.
type Options struct {
	Broker         string
	Port           int
	ClientID       string
	Username       string
	Password       string
	WillTopic      string
	WillPayload    string
	ConnectTimeout time.Duration
}

// Client wraps a connected paho client.
type Client struct {
	inner paho.Client
}

// Connect dials the broker and blocks until the session is up or the
// timeout passes. Reconnects after that are handled by paho.
func Connect(opts Options) (*Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	p := paho.NewClientOptions().
		AddBroker(brokerURL(opts.Broker, opts.Port)).
		SetClientID(clientID(opts.ClientID)).
		SetCleanSession(true).
		SetKeepAlive(keepAlive).
		SetPingTimeout(pingTimeout).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval).
		SetConnectTimeout(opts.ConnectTimeout).
		SetAutoReconnect(true)
	if opts.WillTopic != "" {
		p.SetWill(opts.WillTopic, opts.WillPayload, 0, true)
	}
	if opts.Username != "" {
		p.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		p.SetPassword(opts.Password)
	}

	c := &Client{inner: paho.NewClient(p)}
	tok := c.inner.Connect()
	if !tok.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect timeout after %s", opts.ConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	log.Info().Str("broker", brokerURL(opts.Broker, opts.Port)).Msg("mqtt connected")
	return c, nil
}

// Publish sends payload at QoS 0 and waits for the client to accept it.
func (c *Client) Publish(topic string, payload []byte, retain bool) error {
	tok := c.inner.Publish(topic, 0, retain, payload)
	tok.Wait()
	return tok.Error()
}

// SubscribeCommands subscribes to the command topic and returns the channel
// the bridge loop drains. Commands that arrive faster than the loop can
// take them fill the buffer; beyond that they are dropped with a warning.
func (c *Client) SubscribeCommands(topic string, clk clock.Clock) (<-chan Message, error) {
	ch := make(chan Message, commandBuffer)
	tok := c.inner.Subscribe(topic, 0, func(_ paho.Client, m paho.Message) {
		forward(ch, topic, Message{Text: string(m.Payload()), ReceivedAt: clk.Now()})
	})
	tok.Wait()
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	log.Info().Str("topic", topic).Msg("subscribed to command topic")
	return ch, nil
}

func (c *Client) Disconnect(quiesce uint) {
	c.inner.Disconnect(quiesce)
}

func forward(ch chan Message, topic string, msg Message) {
	select {
	case ch <- msg:
	default:
		log.Warn().Str("topic", topic).Str("cmd", msg.Text).Msg("command buffer full, dropping message")
	}
}

func brokerURL(broker string, port int) string {
	return fmt.Sprintf("tcp://%s:%d", broker, port)
}

// clientID appends a random suffix so a stale session on the broker never
// kicks the fresh one off.
func clientID(base string) string {
	return base + "-" + uuid.NewString()[:8]
}
