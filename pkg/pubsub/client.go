package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
)

const subscriptionAckDeadlineSeconds = 60

var errProjectIDRequired = errors.New("gcp project id is required")

// Client owns the Pub/Sub connection used by the outbox publisher and the
// alert worker. Stock events are published with ordering keys, so every
// publisher it hands out has message ordering enabled.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	logg      *logger.Logger
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: psClient, projectID: gcp.ProjectID, cfg: cfg, logg: logg}
	if err := c.ensure(ctx, cfg.CreateMissing); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "project_id", gcp.ProjectID), "pubsub client initialized")
	}
	return c, nil
}

// credentials prefers inline JSON over a key file; with neither the library
// falls back to application default credentials or PUBSUB_EMULATOR_HOST.
func credentials(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// ensure checks every configured topic and subscription and reports all
// missing ones together.
func (c *Client) ensure(ctx context.Context, create bool) error {
	var errs error
	for _, topic := range topicNames(c.cfg) {
		errs = multierr.Append(errs, c.ensureTopic(ctx, topic, create))
	}
	for _, b := range bindings(c.cfg) {
		errs = multierr.Append(errs, c.ensureSubscription(ctx, b, create))
	}
	return errs
}

func (c *Client) ensureTopic(ctx context.Context, name string, create bool) error {
	full := resourceName(c.projectID, kindTopic, name)
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	switch {
	case err == nil:
		return nil
	case status.Code(err) != codes.NotFound:
		return fmt.Errorf("checking topic %q: %w", name, err)
	case !create:
		return fmt.Errorf("topic %q does not exist", name)
	}
	if _, err := c.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: full}); err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating topic %q: %w", name, err)
	}
	c.created(ctx, "topic", full)
	return nil
}

func (c *Client) ensureSubscription(ctx context.Context, b binding, create bool) error {
	full := resourceName(c.projectID, kindSubscription, b.subscription)
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	switch {
	case err == nil:
		return nil
	case status.Code(err) != codes.NotFound:
		return fmt.Errorf("checking subscription %q: %w", b.subscription, err)
	case !create:
		return fmt.Errorf("subscription %q does not exist", b.subscription)
	}
	_, err = c.client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:                  full,
		Topic:                 resourceName(c.projectID, kindTopic, b.topic),
		AckDeadlineSeconds:    subscriptionAckDeadlineSeconds,
		EnableMessageOrdering: true,
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating subscription %q: %w", b.subscription, err)
	}
	c.created(ctx, "subscription", full)
	return nil
}

func (c *Client) created(ctx context.Context, kind, name string) {
	if c.logg != nil {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"kind": kind, "name": name}), "pubsub resource created")
	}
}

// Subscription returns a subscriber for a short id or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.projectID, kindSubscription, name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

func (c *Client) StockSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.StockSubscription)
}

// Publisher returns an ordering-enabled publisher for a topic.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.projectID, kindTopic, name)
	if full == "" {
		return nil
	}
	p := c.client.Publisher(full)
	p.EnableMessageOrdering = true
	return p
}

// Ping re-runs the existence checks without creating anything.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.ensure(ctx, false)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
