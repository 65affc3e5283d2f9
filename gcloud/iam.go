package gcloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cidc/logutils"

	"cloud.google.com/go/iam"
	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// PolicyHandle reads and writes a bucket's IAM policy. *iam.Handle
// satisfies it.
type PolicyHandle interface {
	Policy(ctx context.Context) (*iam.Policy, error)
	SetPolicy(ctx context.Context, policy *iam.Policy) error
}

// Concurrent policy writers make SetPolicy fail on a stale etag. Those
// attempts are retried from a fresh read.
const maxPolicyAttempts = 3

// IAMGrants gives users write access to buckets by editing bucket IAM
// policies. Grants have no expiry and stay until revoked.
type IAMGrants struct {
	handle  func(bucket string) PolicyHandle
	role    iam.RoleName
	timeout time.Duration
}

func NewIAMGrants(client *storage.Client, role string, timeout time.Duration) *IAMGrants {
	return &IAMGrants{
		handle:  func(bucket string) PolicyHandle { return client.Bucket(bucket).IAM() },
		role:    iam.RoleName(role),
		timeout: timeout,
	}
}

func member(email string) string { return "user:" + email }

// Grant binds email to the upload role on bucket. Granting twice is a no-op.
func (g *IAMGrants) Grant(ctx context.Context, bucket, email string) error {
	return g.update(ctx, bucket, func(p *iam.Policy) bool {
		if p.HasRole(member(email), g.role) {
			return false
		}
		p.Add(member(email), g.role)
		return true
	})
}

// Revoke removes email's upload role binding on bucket. Revoking a grant
// that does not exist is not an error.
func (g *IAMGrants) Revoke(ctx context.Context, bucket, email string) error {
	return g.update(ctx, bucket, func(p *iam.Policy) bool {
		if !p.HasRole(member(email), g.role) {
			return false
		}
		p.Remove(member(email), g.role)
		return true
	})
}

// update applies change to the bucket policy and writes it back if change
// reports a modification.
func (g *IAMGrants) update(ctx context.Context, bucket string, change func(*iam.Policy) bool) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	h := g.handle(bucket)
	for attempt := 1; ; attempt++ {
		policy, err := h.Policy(ctx)
		if err != nil {
			return fmt.Errorf("reading IAM policy of %s: %w", bucket, err)
		}
		if !change(policy) {
			return nil
		}
		err = h.SetPolicy(ctx, policy)
		if err == nil {
			return nil
		}
		if !conflict(err) || attempt == maxPolicyAttempts {
			return fmt.Errorf("writing IAM policy of %s: %w", bucket, err)
		}
		logutils.Log.Warnf("IAM policy of %s changed concurrently, retrying (attempt %d)", bucket, attempt)
	}
}

func conflict(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusPreconditionFailed || gerr.Code == http.StatusConflict
}
