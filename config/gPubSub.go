package config

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// PubSubPublisher publishes outbox events to PUBSUB_TOPIC.
type PubSubPublisher struct {
	topicName string

	mu     sync.Mutex
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPubSubPublisher() (*PubSubPublisher, error) {
	topicName := os.Getenv("PUBSUB_TOPIC")
	if topicName == "" {
		return nil, errors.New("PUBSUB_TOPIC is required")
	}
	if getPubSubProjectID() == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}
	return &PubSubPublisher{topicName: topicName}, nil
}

func getPubSubProjectID() string {
	// Prefer explicit override.
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run sets this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return os.Getenv("GCP_PROJECT")
}

// getTopic lazily creates the client. Uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is set.
func (p *PubSubPublisher) getTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}

	projectID := getPubSubProjectID()
	var opts []option.ClientOption
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	c, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, err
	}
	logg.WithFields(logrus.Fields{"project_id": projectID, "topic": p.topicName}).Info("pubsub client ready")
	p.client = c
	p.topic = c.Topic(p.topicName)
	return p.topic, nil
}

// Publish returns the server-assigned message id. The key travels as the "key" attribute.
func (p *PubSubPublisher) Publish(ctx context.Context, key string, payload []byte) (string, error) {
	t, err := p.getTopic(ctx)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result := t.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"key": key},
	})
	return result.Get(ctx)
}

func (p *PubSubPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
