package persistence

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

type Archiver struct {
	bucket     string
	s3Uploader s3manageriface.UploaderAPI
}

func NewArchiver(sess *session.Session, bucket string) *Archiver {
	return &Archiver{bucket, s3manager.NewUploader(sess)}
}

// Copy a completed upload to the remote AWS S3 storage and return its location.
func (a *Archiver) Archive(ctx context.Context, key, path, contentType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open completed upload: %w", err)
	}
	defer f.Close()
	in := &s3manager.UploadInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	out, err := a.s3Uploader.UploadWithContext(ctx, in)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}
	return out.Location, nil
}
