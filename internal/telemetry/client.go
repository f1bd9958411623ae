package telemetry

import (
	"io"
	"runtime"
	"time"

	"github.com/posthog/posthog-go"
)

// Client reports finished pipeline operations.
type Client interface {
	Report(op Operation)
	Close() error
}

// Properties are event properties.
type Properties = map[string]any

// capturer is the part of the PostHog SDK the client uses.
type capturer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// ClientConfig configures NewPostHogClient.
type ClientConfig struct {
	APIKey  string
	Version string
	// Config carries the opt-in flag and the anonymous id.
	Config *Config
	// Endpoint overrides the PostHog cloud endpoint for self-hosted instances.
	Endpoint string
}

// PostHogClient sends operation events to PostHog in batches.
type PostHogClient struct {
	sink        capturer
	anonymousID string
	base        Properties
}

// NewPostHogClient returns a PostHog backed client, or a NoopClient when the
// user has not opted in or no API key is configured.
func NewPostHogClient(cfg ClientConfig) (Client, error) {
	if cfg.APIKey == "" || !cfg.Config.IsEnabled() {
		return NewNoopClient(), nil
	}

	phConfig := posthog.Config{
		BatchSize: 10,
		Interval:  time.Second,
		Endpoint:  cfg.Endpoint,
		Logger:    silentLogger{},
	}
	sink, err := posthog.NewWithConfig(cfg.APIKey, phConfig)
	if err != nil {
		return nil, err
	}
	return newPostHogClient(sink, cfg.Config.AnonymousID, cfg.Version), nil
}

func newPostHogClient(sink capturer, anonymousID, version string) *PostHogClient {
	return &PostHogClient{
		sink:        sink,
		anonymousID: anonymousID,
		base: Properties{
			"os":      runtime.GOOS,
			"arch":    runtime.GOARCH,
			"version": version,
			// anonymous events only, no person profiles
			"$process_person_profile": false,
		},
	}
}

// Report enqueues op. Delivery errors are dropped.
func (c *PostHogClient) Report(op Operation) {
	props := posthog.NewProperties()
	for k, v := range op.Properties() {
		props.Set(k, v)
	}
	for k, v := range c.base {
		props.Set(k, v)
	}
	_ = c.sink.Enqueue(posthog.Capture{
		DistinctId: c.anonymousID,
		Event:      op.EventName(),
		Properties: props,
	})
}

// Close flushes queued events.
func (c *PostHogClient) Close() error {
	return c.sink.Close()
}

// NoopClient drops every event.
type NoopClient struct{}

func NewNoopClient() *NoopClient { return &NoopClient{} }

func (*NoopClient) Report(Operation) {}

func (*NoopClient) Close() error { return nil }

type silentLogger struct{}

func (silentLogger) Debugf(string, ...any) {}
func (silentLogger) Logf(string, ...any)   {}
func (silentLogger) Warnf(string, ...any)  {}
func (silentLogger) Errorf(string, ...any) {}
