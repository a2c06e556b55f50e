// Package archive stores original uploads in Google Cloud Storage. Archival
// is optional and best effort; the service works fully without it.
package archive

import (
	"context"
	"fmt"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS writes uploads under <bucket>/uploads/<job-id>/<filename>.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS builds the archiver. credentialsFile may be empty, in which case
// Application Default Credentials apply.
func NewGCS(ctx context.Context, bucket, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Archive uploads the PDF and returns its gs:// URI. The object name uses
// only the base of the caller-supplied filename.
func (g *GCS) Archive(ctx context.Context, jobID, filename string, pdf []byte) (string, error) {
	object := fmt.Sprintf("uploads/%s/%s", jobID, path.Base(filename))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/pdf"
	if _, err := w.Write(pdf); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("archive: write object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("archive: finalize upload %s: %w", object, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, object), nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}
