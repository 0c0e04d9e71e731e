// Package notify publishes forecast change notifications over MQTT.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/windforecast/windforecast/internal/forecast"
)

// Defaults for Config.
const (
	DefaultTopicPrefix    = "windforecast/stations"
	DefaultClientID       = "windforecast-worker"
	DefaultPublishTimeout = 5 * time.Second
)

// ErrNotConnected is returned when publishing before the broker connection is up.
var ErrNotConnected = errors.New("mqtt client not connected")

// Config holds configuration for the MQTT publisher.
type Config struct {
	// BrokerURL is the broker address, e.g. tcp://mosquitto:1883.
	BrokerURL string

	ClientID    string
	Username    string
	Password    string
	TopicPrefix string

	// PublishTimeout bounds each publish. Default: 5s.
	PublishTimeout time.Duration

	// Client replaces the paho client built from BrokerURL (optional).
	Client mqtt.Client

	Logger zerolog.Logger
}

// ForecastUpdate is the retained message published after a record is saved.
type ForecastUpdate struct {
	StationID   string `json:"stationId"`
	LastUpdate  int64  `json:"lastUpdate"`
	Source      string `json:"source"`
	HourlyCount int    `json:"hourlyCount"`
	WeeklyCount int    `json:"weeklyCount"`
}

// NewForecastUpdate summarizes a saved record.
func NewForecastUpdate(stationID string, record forecast.Record) ForecastUpdate {
	return ForecastUpdate{
		StationID:   stationID,
		LastUpdate:  record.LastUpdate,
		Source:      record.Source,
		HourlyCount: len(record.Data.Hourly),
		WeeklyCount: len(record.Data.Weekly),
	}
}

// Topic returns the forecast topic for a station.
func Topic(prefix, stationID string) string {
	return fmt.Sprintf("%s/%s/forecast", strings.TrimRight(prefix, "/"), stationID)
}

// Publisher sends ForecastUpdate messages to an MQTT broker.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	timeout     time.Duration
	logger      zerolog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPublisher creates a publisher. Call Connect before publishing.
func NewPublisher(cfg Config) *Publisher {
	p := &Publisher{
		topicPrefix: cfg.TopicPrefix,
		timeout:     cfg.PublishTimeout,
		logger:      cfg.Logger,
		stopCh:      make(chan struct{}),
	}
	if p.topicPrefix == "" {
		p.topicPrefix = DefaultTopicPrefix
	}
	if p.timeout <= 0 {
		p.timeout = DefaultPublishTimeout
	}

	if cfg.Client != nil {
		p.client = cfg.Client
		return p
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.logger.Info().Str("broker", cfg.BrokerURL).Msg("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// Connect waits for the initial broker connection, honouring ctx and Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return errors.New("mqtt publisher stopped")
	default:
	}

	if p.client.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return errors.New("mqtt publisher stopped")
		default:
		}
	}
}

// ForecastUpdated publishes a retained QoS 1 update for a saved record.
func (p *Publisher) ForecastUpdated(ctx context.Context, stationID string, record forecast.Record) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(NewForecastUpdate(stationID, record))
	if err != nil {
		return fmt.Errorf("marshal forecast update: %w", err)
	}

	topic := Topic(p.topicPrefix, stationID)
	token := p.client.Publish(topic, 1, true, payload)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish forecast update: %w", err)
	}

	p.logger.Debug().Str("topic", topic).Str("station_id", stationID).Msg("published forecast update")
	return nil
}

// Disconnect closes the broker connection. Safe to call more than once.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.client.Disconnect(250)
	p.logger.Info().Msg("mqtt disconnected")
}
