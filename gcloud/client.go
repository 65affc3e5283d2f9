package gcloud

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
)

// Clients bundles the Google Cloud clients the service talks to.
type Clients struct {
	Storage *storage.Client
	PubSub  *pubsub.Client
}

// NewClients connects to Cloud Storage and Pub/Sub using the ambient
// application default credentials.
func NewClients(ctx context.Context, project string) (*Clients, error) {
	st, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &Clients{Storage: st, PubSub: ps}, nil
}

func (c *Clients) Close() error {
	var first error
	if err := c.PubSub.Close(); err != nil {
		first = fmt.Errorf("closing pubsub client: %w", err)
	}
	if err := c.Storage.Close(); err != nil && first == nil {
		first = fmt.Errorf("closing storage client: %w", err)
	}
	return first
}
