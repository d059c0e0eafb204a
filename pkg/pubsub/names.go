package pubsub

import (
	"fmt"
	"strings"

	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
)

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

// resourceName expands a short id into projects/<p>/<kind>/<id>. Fully
// qualified names of the same kind pass through unchanged.
func resourceName(projectID string, kind resourceKind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+string(kind)+"/") {
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", projectID, kind, name)
}

// binding pairs a subscription with the topic it reads.
type binding struct {
	subscription string
	topic        string
}

func topicNames(cfg config.PubSubConfig) []string {
	var names []string
	for _, name := range []string{cfg.StockTopic, cfg.PurchasingTopic} {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

func bindings(cfg config.PubSubConfig) []binding {
	if strings.TrimSpace(cfg.StockSubscription) == "" {
		return nil
	}
	return []binding{{subscription: strings.TrimSpace(cfg.StockSubscription), topic: strings.TrimSpace(cfg.StockTopic)}}
}
