package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"cidc/dao/model"
	"cidc/dao/query"
	"cidc/logutils"
	"cidc/template"

	"gorm.io/datatypes"
)

// MomentLayout formats upload moments. Every file of one job shares the
// same moment, so two uploads of the same local path never collide.
const MomentLayout = "2006-01-02T15:04:05.000000"

// MergeRetrySeconds is how long clients should wait before polling a job
// whose merge has not finished.
const MergeRetrySeconds = 5

type SchemaRegistry interface {
	Path(id string) (string, bool)
}

type TemplateValidator interface {
	Validate(xlsx []byte, schemaPath string) ([]string, error)
}

type MetadataExtractor interface {
	Extract(xlsx []byte, schemaPath, schemaHint string) (json.RawMessage, []template.FileInfo, error)
}

// GrantStore manages write access to buckets. Both calls must be safe to
// repeat.
type GrantStore interface {
	Grant(ctx context.Context, bucket, email string) error
	Revoke(ctx context.Context, bucket, email string) error
}

type JobStore interface {
	Create(ctx context.Context, job *model.UploadJob) error
	Get(ctx context.Context, id uint, owner string) (*model.UploadJob, error)
	UpdateStatus(ctx context.Context, id uint, owner, etag string, status model.JobStatus, details *string) (*model.UploadJob, error)
	CountStarted(ctx context.Context, owner string) (int64, error)
}

type Notifier interface {
	UploadCompleted(ctx context.Context, jobID uint) error
}

type Archiver interface {
	Archive(ctx context.Context, schemaHint, moment string, xlsx []byte) (string, error)
}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Schemas   SchemaRegistry
	Validator TemplateValidator
	Extractor MetadataExtractor
	Grants    GrantStore
	Jobs      JobStore
	Notifier  Notifier
	Archive   Archiver

	Bucket string
	// RevokeWhenIdle keeps a user's grant while they still have jobs in
	// the started state.
	RevokeWhenIdle bool
}

// Coordinator drives upload jobs from template submission until the
// client reports the upload result.
type Coordinator struct {
	Deps
	now func() time.Time
}

func New(deps Deps) *Coordinator {
	return &Coordinator{Deps: deps, now: time.Now}
}

// ValidationResult lists template problems. Empty means valid.
type ValidationResult struct {
	Errors []string `json:"errors"`
}

// UploadResult is what a client needs to transfer its files.
type UploadResult struct {
	JobID      uint             `json:"job_id"`
	JobETag    string           `json:"job_etag"`
	URLMapping model.URLMapping `json:"url_mapping"`
	GCSBucket  string           `json:"gcs_bucket"`
}

// MergeStatus answers a poll: either the final merge status or how long to
// wait before asking again.
type MergeStatus struct {
	Status        *model.JobStatus `json:"status,omitempty"`
	StatusDetails *string          `json:"status_details,omitempty"`
	RetryIn       *int             `json:"retry_in,omitempty"`
}

func (c *Coordinator) schemaPath(schemaID string) (string, error) {
	if schemaID == "" {
		return "", badRequest("Expected a value for form field 'schema'")
	}
	p, ok := c.Schemas.Path(schemaID)
	if !ok {
		return "", badRequest("No known schema with id %s", schemaID)
	}
	return p, nil
}

// ValidateTemplate checks xlsx against the schema named schemaID. Template
// problems are returned as data; only an unknown schema or a broken
// validator is an error.
func (c *Coordinator) ValidateTemplate(ctx context.Context, schemaID string, xlsx []byte) (*ValidationResult, error) {
	p, err := c.schemaPath(schemaID)
	if err != nil {
		return nil, err
	}
	return c.validate(xlsx, p)
}

func (c *Coordinator) validate(xlsx []byte, schemaPath string) (*ValidationResult, error) {
	problems, err := c.Validator.Validate(xlsx, schemaPath)
	if err != nil {
		return nil, fmt.Errorf("validating template against %s: %w", schemaPath, err)
	}
	if problems == nil {
		problems = []string{}
	}
	return &ValidationResult{Errors: problems}, nil
}

// UploadMoment formats t as an upload moment.
func UploadMoment(t time.Time) string {
	return t.UTC().Format(MomentLayout)
}

// BuildURLMapping places every file under its destination directory and
// the upload moment. The result has exactly one entry per local path.
// Paths that are absolute, climb out with ".." or are not clean are
// rejected so that every object name stays under {dir}/{moment}/.
func BuildURLMapping(files []template.FileInfo, moment string) (model.URLMapping, error) {
	mapping := make(model.URLMapping, len(files))
	for _, f := range files {
		if err := template.CheckPath(f.LocalPath); err != nil {
			return nil, badRequest("local file: %v", err)
		}
		if err := template.CheckPath(f.DestinationDir); err != nil {
			return nil, badRequest("destination of %s: %v", f.LocalPath, err)
		}
		key := path.Clean(f.LocalPath)
		if _, dup := mapping[key]; dup {
			return nil, badRequest("local file %s is listed more than once", f.LocalPath)
		}
		mapping[key] = path.Join(f.DestinationDir, moment, key)
	}
	return mapping, nil
}

// InitiateUpload validates the template, records a started job for email
// and grants email write access to the upload bucket.
//
// An invalid template yields a nil result and the validation problems. If
// the grant fails the job stays recorded: the result is returned together
// with a *GrantError.
func (c *Coordinator) InitiateUpload(ctx context.Context, schemaID string, xlsx []byte, email string) (*UploadResult, *ValidationResult, error) {
	schemaPath, err := c.schemaPath(schemaID)
	if err != nil {
		return nil, nil, err
	}
	vr, err := c.validate(xlsx, schemaPath)
	if err != nil {
		return nil, nil, err
	}
	if len(vr.Errors) > 0 {
		return nil, vr, nil
	}

	metadata, files, err := c.Extractor.Extract(xlsx, schemaPath, schemaID)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting metadata: %w", err)
	}
	moment := UploadMoment(c.now())
	mapping, err := BuildURLMapping(files, moment)
	if err != nil {
		return nil, nil, err
	}

	xlsxURI, err := c.Archive.Archive(ctx, schemaID, moment, xlsx)
	if err != nil {
		return nil, nil, fmt.Errorf("archiving template: %w", err)
	}

	job := &model.UploadJob{
		UploaderEmail: email,
		UploadType:    schemaID,
		Status:        model.JobStarted,
		GCSXlsxURI:    xlsxURI,
		GCSFileMap:    datatypes.NewJSONType(mapping),
		Metadata:      datatypes.JSON(metadata),
	}
	if err := c.Jobs.Create(ctx, job); err != nil {
		return nil, nil, err
	}
	log := logutils.Log.WithFields(logutils.Fields{"job": job.ID, "email": email, "type": schemaID})
	log.Infof("created upload job with %d files", len(mapping))

	res := &UploadResult{
		JobID:      job.ID,
		JobETag:    job.ETag,
		URLMapping: mapping,
		GCSBucket:  c.Bucket,
	}
	if err := c.Grants.Grant(ctx, c.Bucket, email); err != nil {
		log.Errorf("granting upload access: %v", err)
		return res, nil, &GrantError{JobID: job.ID, Email: email, Err: err}
	}
	return res, nil, nil
}

// GetJob returns one of email's jobs.
func (c *Coordinator) GetJob(ctx context.Context, id uint, email string) (*model.UploadJob, error) {
	job, err := c.Jobs.Get(ctx, id, email)
	if errors.Is(err, query.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// UpdateJobStatus moves one of email's jobs to status, provided etag is
// current and the transition is allowed, then runs OnJobUpdated.
//
// When OnJobUpdated fails the status change has already been stored; the
// updated job is returned together with the error.
func (c *Coordinator) UpdateJobStatus(ctx context.Context, id uint, email, etag string,
	status model.JobStatus, details *string) (*model.UploadJob, error) {
	job, err := c.GetJob(ctx, id, email)
	if err != nil {
		return nil, err
	}
	if job.ETag != etag {
		return nil, ErrStaleETag
	}
	if !job.Status.CanTransition(status) {
		return nil, &detailed{
			base: ErrInvalidTransition,
			msg:  fmt.Sprintf("cannot move upload job %d from %s to %s", id, job.Status, status),
		}
	}

	updated, err := c.Jobs.UpdateStatus(ctx, id, email, etag, status, details)
	switch {
	case errors.Is(err, query.ErrPreconditionFailed):
		return nil, ErrStaleETag
	case errors.Is(err, query.ErrNotFound):
		return nil, ErrJobNotFound
	case err != nil:
		return nil, err
	}
	logutils.Log.WithFields(logutils.Fields{"job": id, "email": email}).
		Infof("upload job moved from %s to %s", job.Status, status)

	return updated, c.OnJobUpdated(ctx, updated, email)
}

// OnJobUpdated reacts to a stored status change made by email. Once the
// client has reported any upload result, email's write access is revoked.
// A completed upload is also announced to the merge process.
func (c *Coordinator) OnJobUpdated(ctx context.Context, job *model.UploadJob, email string) error {
	if job.Status == model.JobStarted {
		return nil
	}

	// The status change is already stored. A client that goes away now must
	// not cancel the revoke or the announcement; the IAM and Pub/Sub calls
	// carry their own timeouts.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	if err := c.revoke(ctx, email); err != nil {
		errs = append(errs, err)
	}
	if job.Status == model.JobUploadCompleted {
		if err := c.Notifier.UploadCompleted(ctx, job.ID); err != nil {
			errs = append(errs, fmt.Errorf("announcing upload of job %d: %w", job.ID, err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		logutils.Log.WithField("job", job.ID).Errorf("post-update hook: %v", err)
	}
	return err
}

func (c *Coordinator) revoke(ctx context.Context, email string) error {
	if c.RevokeWhenIdle {
		n, err := c.Jobs.CountStarted(ctx, email)
		if err != nil {
			return &RevokeError{Email: email, Err: fmt.Errorf("counting open jobs: %w", err)}
		}
		if n > 0 {
			logutils.Log.WithField("email", email).Infof("keeping upload access, %d jobs still open", n)
			return nil
		}
	}
	if err := c.Grants.Revoke(ctx, c.Bucket, email); err != nil {
		return &RevokeError{Email: email, Err: err}
	}
	return nil
}

// PollMergeStatus reports the merge result of one of email's jobs, or how
// long to wait if the merge has not finished.
func (c *Coordinator) PollMergeStatus(ctx context.Context, id uint, email string) (*MergeStatus, error) {
	job, err := c.GetJob(ctx, id, email)
	if err != nil {
		return nil, err
	}
	if !job.Status.IsMergeState() {
		retry := MergeRetrySeconds
		return &MergeStatus{RetryIn: &retry}, nil
	}
	status := job.Status
	return &MergeStatus{Status: &status, StatusDetails: job.StatusDetails}, nil
}
