// Package kegnet bridges the in-process EventHub to the external kegnet
// pub/sub channel: a single redis channel carrying JSON event envelopes.
package kegnet

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/kegbot/kegcore/go/kbevent"
)

// DefaultChannel is the conventional kegnet channel name.
const DefaultChannel = "kegnet"

// reconnectDelay is the pause between subscribe attempts after a broker
// connection failure.
const reconnectDelay = 5 * time.Second

// Client publishes and consumes kegnet events over one redis channel.
type Client struct {
	redis   *redis.Client
	channel string
	logger  *log.Entry
}

// NewClient connects a Client to the redis service at |redisURL|,
// using |channel| (or DefaultChannel when empty).
func NewClient(redisURL, channel string) (*Client, error) {
	var opts, err = redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if channel == "" {
		channel = DefaultChannel
	}
	log.WithField("url", redisURL).Info("connecting to redis")

	return &Client{
		redis:   redis.NewClient(opts),
		channel: channel,
		logger:  log.WithField("component", "kegnet"),
	}, nil
}

// Ping tests the liveness of the redis connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close releases the underlying redis connection.
func (c *Client) Close() error {
	return c.redis.Close()
}

// Send encodes |ev| and publishes it on the kegnet channel.
func (c *Client) Send(ctx context.Context, ev kbevent.Event) error {
	var payload, err = kbevent.Encode(ev)
	if err != nil {
		return err
	}
	return c.redis.Publish(ctx, c.channel, payload).Err()
}

// Listen subscribes to the kegnet channel and invokes |fn| with each
// decoded event, reconnecting with a fixed backoff on connection failure.
// It returns nil once |ctx| is done. Messages dropped across reconnects
// are tolerated; upstream is expected to be at-least-once.
func (c *Client) Listen(ctx context.Context, fn func(kbevent.Event)) error {
	var op = func() error {
		if err := c.listenOnce(ctx, fn); err != nil {
			c.logger.WithField("err", err).Warn("error listening")
			return err
		}
		return nil
	}
	var err = backoff.Retry(op, backoff.WithContext(
		backoff.NewConstantBackOff(reconnectDelay), ctx))
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// listenOnce runs a single subscribe session. It returns nil when |ctx|
// is done, and the connection error otherwise.
func (c *Client) listenOnce(ctx context.Context, fn func(kbevent.Event)) error {
	var pubsub = c.redis.Subscribe(ctx, c.channel)
	defer pubsub.Close()

	c.logger.WithField("channel", c.channel).Info("listening on kegnet channel")

	for {
		var msg, err = pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		messagesReceived.Inc()

		ev, err := kbevent.Decode([]byte(msg.Payload))
		if err != nil {
			// Forward-compatibility: ignore unknown or malformed events.
			c.logger.WithField("err", err).Debug("ignoring inbound message")
			messagesDropped.WithLabelValues("decode").Inc()
			continue
		}
		fn(ev)
	}
}
