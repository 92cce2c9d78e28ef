package gestixsync

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"bitbucket.org/grafimark/shopfloor_backend/config"
	"bitbucket.org/grafimark/shopfloor_backend/utils"
	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
)

const (
	AlertArticleAutoCreated   = "article_auto_created"
	AlertOrderUnlinkedArticle = "order_unlinked_article"
)

// emitAlert logs the event and, when an alert topic is configured,
// publishes it to Pub/Sub in the background. Nobody waits for the
// publish and a failed publish only gets logged.
func emitAlert(ctx context.Context, event string, fields logrus.Fields) {
	logger := config.GetLogger()
	logger.WithFields(fields).Warn(event)

	topicName := strings.TrimSpace(os.Getenv("GESTIX_ALERT_TOPIC"))
	if topicName == "" {
		return
	}

	payload := map[string]interface{}{"event": event, "at": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range fields {
		payload[k] = v
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		payload["correlation_id"] = cid
	}
	data, _ := json.Marshal(payload)

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client, err := config.GetClient(pubCtx)
		if err != nil {
			config.LogError(logger, "gestixsync", "emitAlert", "pubsub client", event, err)
			return
		}
		topic := client.Topic(topicName)
		if utils.BoolFromEnv("GESTIX_ALERT_CREATE_TOPIC", false) {
			topic, err = config.CreateTopicIfNotExists(client, topicName)
			if err != nil {
				config.LogError(logger, "gestixsync", "emitAlert", "create topic", topicName, err)
				return
			}
		}
		res := topic.Publish(pubCtx, &pubsub.Message{Data: data})
		if _, err := res.Get(pubCtx); err != nil {
			config.LogError(logger, "gestixsync", "emitAlert", "publish", event, err)
		}
	}()
}

// seenSet deduplicates repeat alerts within one cycle. It is created by
// the orchestrator per run and handed into the persister explicitly so
// no alert state outlives the cycle.
type seenSet struct {
	m map[string]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{m: make(map[string]struct{})}
}

// first reports whether key is new, marking it seen.
func (s *seenSet) first(key string) bool {
	if _, ok := s.m[key]; ok {
		return false
	}
	s.m[key] = struct{}{}
	return true
}
