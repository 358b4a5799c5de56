package archive

import (
	"bytes"
	"context"
	"scootspot/internal/types"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"
)

const imageContentType = "image/jpeg"

// S3Archiver implements ports.Archiver with one PutObject per upload.
type S3Archiver struct {
	bucket string
	cli    *s3.Client
	now    func() time.Time
}

func NewS3Archiver(bucket string, cli *s3.Client) *S3Archiver {
	return &S3Archiver{bucket: bucket, cli: cli, now: time.Now}
}

func (a *S3Archiver) Archive(ctx context.Context, locationID string, image []byte) (string, error) {
	key := Key(locationID, a.now())
	_, err := a.cli.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(image),
		ContentLength: aws.Int64(int64(len(image))),
		ContentType:   aws.String(imageContentType),
	})
	if err != nil {
		return "", types.Err(types.ErrArchive, err, "put s3://%s/%s", a.bucket, key)
	}
	log.WithFields(log.Fields{
		"bucket": a.bucket,
		"key":    key,
		"bytes":  len(image),
	}).Debug("Archived upload")
	return key, nil
}
