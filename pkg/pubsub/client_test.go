package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
)

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/retail-dev/topics/stock-events", resourceName("retail-dev", kindTopic, "stock-events"))
	assert.Equal(t, "projects/retail-dev/subscriptions/alerts", resourceName("retail-dev", kindSubscription, " alerts "))
	assert.Equal(t, "projects/other/topics/x", resourceName("retail-dev", kindTopic, "projects/other/topics/x"))
	assert.Empty(t, resourceName("retail-dev", kindTopic, ""))
	assert.Empty(t, resourceName("", kindTopic, "stock-events"))

	// a subscription path is not a topic path
	assert.Equal(t,
		"projects/retail-dev/topics/projects/other/subscriptions/x",
		resourceName("retail-dev", kindTopic, "projects/other/subscriptions/x"))
}

func TestConfiguredResources(t *testing.T) {
	cfg := config.PubSubConfig{StockTopic: "stock", PurchasingTopic: " ", StockSubscription: "alerts"}
	assert.Equal(t, []string{"stock"}, topicNames(cfg))
	assert.Equal(t, []binding{{subscription: "alerts", topic: "stock"}}, bindings(cfg))
	assert.Empty(t, bindings(config.PubSubConfig{StockTopic: "stock"}))
}

func TestCredentialsPreference(t *testing.T) {
	assert.Empty(t, credentials(config.GCPConfig{}))
	assert.Len(t, credentials(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/keys/sa.json"}), 1)
	assert.Len(t, credentials(config.GCPConfig{ApplicationCredentials: "/keys/sa.json"}), 1)
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("stock"))
	assert.Nil(t, c.Subscription("alerts"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
