package internal

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Relay owns the HTTP surface, the Gemini client, the WebSocket hub,
// and the optional audit exchange. No state survives a request.
type Relay struct {
	cfg    Config
	gemini *GeminiClient
	hub    *Hub
	broker *Broker // nil when AMQP_URL is unset
}

func NewRelay(cfg Config) (*Relay, error) {
	rl := &Relay{
		cfg:    cfg,
		gemini: NewGeminiClient(cfg.GeminiURL, cfg.GeminiModel, cfg.GeminiKey),
		hub:    NewHub(),
	}
	if cfg.AMQPURL != "" {
		broker, err := NewBroker(cfg.AMQPURL)
		if err != nil {
			return nil, fmt.Errorf("mq connect: %w", err)
		}
		rl.broker = broker
	}
	return rl, nil
}

func (rl *Relay) Close() {
	if rl.broker != nil {
		rl.broker.Close()
	}
}

// Run starts the hub, the API server, and, when the audit exchange is
// enabled, a consumer that relays prompt.# deliveries to the hub.
func (rl *Relay) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return rl.hub.Run(ctx) })
	g.Go(func() error { return rl.serveAPI(ctx) })

	if rl.broker != nil {
		deliveries, err := rl.broker.Subscribe("relay.feed", "prompt.#")
		if err != nil {
			return fmt.Errorf("subscribe relay.feed: %w", err)
		}
		g.Go(func() error { return rl.consumeFeed(ctx, deliveries) })
	}

	return g.Wait()
}

func (rl *Relay) consumeFeed(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			rl.hub.BroadcastRaw(d.Body)
			d.Ack(false)
		}
	}
}

// emit wraps a payload in an envelope and hands it to the audit
// exchange when enabled, or straight to the WebSocket hub otherwise.
// The feed consumer brings published events back to the hub. Emission
// is best effort and never fails the request.
func (rl *Relay) emit(ctx context.Context, routingKey string, payload any) {
	b, err := Wrap(routingKey, payload)
	if err != nil {
		return
	}
	if rl.broker != nil {
		if err := rl.broker.Publish(ctx, routingKey, b); err != nil {
			log.Warn().Err(err).Str("key", routingKey).Msg("audit publish failed")
		}
		return
	}
	rl.hub.BroadcastRaw(b)
}
