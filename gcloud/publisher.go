package gcloud

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"
)

// Publisher announces finished uploads on a Pub/Sub topic so the merge
// process can pick them up.
type Publisher struct {
	topic   *pubsub.Topic
	timeout time.Duration
}

func NewPublisher(client *pubsub.Client, topicID string, timeout time.Duration) *Publisher {
	return &Publisher{topic: client.Topic(topicID), timeout: timeout}
}

// UploadCompleted publishes the job id and waits for the server to
// acknowledge it.
func (p *Publisher) UploadCompleted(ctx context.Context, jobID uint) error {
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data:       []byte(strconv.FormatUint(uint64(jobID), 10)),
		Attributes: map[string]string{"event": "upload-completed"},
	})

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publishing upload of job %d: %w", jobID, err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *Publisher) Stop() {
	p.topic.Stop()
}
