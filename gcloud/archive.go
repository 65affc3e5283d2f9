package gcloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"cidc/logutils"

	"cloud.google.com/go/storage"
)

// TemplateArchive keeps a copy of every submitted template in the upload
// bucket.
type TemplateArchive struct {
	bucket  string
	timeout time.Duration
	writer  func(ctx context.Context, bucket, name string) io.WriteCloser
}

func NewTemplateArchive(client *storage.Client, bucket string, timeout time.Duration) *TemplateArchive {
	return &TemplateArchive{
		bucket:  bucket,
		timeout: timeout,
		writer: func(ctx context.Context, bucket, name string) io.WriteCloser {
			w := client.Bucket(bucket).Object(name).NewWriter(ctx)
			w.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
			return w
		},
	}
}

// ArchiveObjectName is where a template submitted at moment is stored.
func ArchiveObjectName(schemaHint, moment string) string {
	return path.Join("xlsx", schemaHint, moment+".xlsx")
}

// Archive stores xlsx and returns its gs:// URI.
func (a *TemplateArchive) Archive(ctx context.Context, schemaHint, moment string, xlsx []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	name := ArchiveObjectName(schemaHint, moment)
	w := a.writer(ctx, a.bucket, name)
	if _, err := io.Copy(w, bytes.NewReader(xlsx)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("uploading template: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing uploader: %w", err)
	}
	logutils.Log.Debugf("archived template as %s in %s", name, a.bucket)
	return "gs://" + a.bucket + "/" + name, nil
}
