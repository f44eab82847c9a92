package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

// Client owns the Pub/Sub connection for one project and resolves the short
// topic and subscription IDs from config into resource names.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotConnected      = errors.New("pubsub client not initialized")
)

// NewClient connects to Pub/Sub and fails when a configured topic or
// subscription is missing. Resources are provisioned by infrastructure, never
// created here.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	conn, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: conn, projectID: projectID, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "project", projectID), "pubsub client initialized")
	}
	return c, nil
}

// Ping confirms every configured topic and subscription still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotConnected
	}
	for _, topic := range nonBlank(c.cfg.OrdersTopic, c.cfg.AuthTopic, c.cfg.PaymentsTopic) {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topicResourceName(topic)})
		if err := describeLookup("topic", topic, err); err != nil {
			return err
		}
	}
	for _, sub := range nonBlank(c.cfg.PaymentsSubscription) {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.subscriptionResourceName(sub)})
		if err := describeLookup("subscription", sub, err); err != nil {
			return err
		}
	}
	return nil
}

func describeLookup(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// Subscription returns a subscriber for a subscription ID or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.subscriptionResourceName(name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

// Publisher returns a publisher for a topic ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.topicResourceName(name)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) topicResourceName(name string) string {
	return c.resourceName("topics", name)
}

func (c *Client) subscriptionResourceName(name string) string {
	return c.resourceName("subscriptions", name)
}

// resourceName expands an ID into projects/<project>/<kind>/<id>. Names that
// are already fully qualified pass through.
func (c *Client) resourceName(kind, name string) string {
	name = strings.TrimSpace(name)
	if c == nil || name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	if c.projectID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", c.projectID, kind, name)
}

func nonBlank(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
