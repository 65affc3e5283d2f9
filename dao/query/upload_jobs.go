package query

import (
	"context"
	"fmt"

	"cidc/dao/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStore persists upload jobs. Every write issues a fresh etag, and
// status updates only apply when the caller presents the current one.
type JobStore struct {
	db *gorm.DB
}

func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

func newETag() string {
	return uuid.NewString()
}

// Create inserts job with a fresh etag.
func (s *JobStore) Create(ctx context.Context, job *model.UploadJob) error {
	job.ETag = newETag()
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create upload job: %w", err)
	}
	return nil
}

// Get returns the job with id owned by owner.
func (s *JobStore) Get(ctx context.Context, id uint, owner string) (*model.UploadJob, error) {
	var job model.UploadJob
	err := s.db.WithContext(ctx).
		Where("id = ? AND uploader_email = ?", id, owner).
		First(&job).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// UpdateStatus moves the job to status if etag is still current and returns
// the updated row.
func (s *JobStore) UpdateStatus(ctx context.Context, id uint, owner, etag string,
	status model.JobStatus, details *string) (*model.UploadJob, error) {
	updates := map[string]any{
		"status": status,
		"etag":   newETag(),
	}
	if details != nil {
		updates["status_details"] = *details
	}
	res := s.db.WithContext(ctx).
		Model(&model.UploadJob{}).
		Where("id = ? AND uploader_email = ? AND etag = ?", id, owner, etag).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update upload job %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the job is not there or someone updated it first.
		if _, err := s.Get(ctx, id, owner); err != nil {
			return nil, err
		}
		return nil, ErrPreconditionFailed
	}
	return s.Get(ctx, id, owner)
}

// CountStarted returns how many of owner's jobs are still in the started state.
func (s *JobStore) CountStarted(ctx context.Context, owner string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&model.UploadJob{}).
		Where("uploader_email = ? AND status = ?", owner, model.JobStarted).
		Count(&n).Error
	return n, err
}
