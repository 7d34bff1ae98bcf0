package storage

import (
	"bytes"
	"context"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	replyerrors "github.com/customeros/replydesk/errors"
	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/tracing"
	"github.com/customeros/replydesk/services/storage/aws_client"
)

// ObjectStorageService keeps attachments as flat objects under a key prefix.
type ObjectStorageService struct {
	client     aws_client.S3Client
	bucketName string
	prefix     string
}

type StorageConfig struct {
	BucketName string
	Prefix     string
}

func NewStorageService(client aws_client.S3Client, config StorageConfig) interfaces.AttachmentStorage {
	prefix := strings.TrimPrefix(config.Prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ObjectStorageService{
		client:     client,
		bucketName: config.BucketName,
		prefix:     prefix,
	}
}

// ValidateName rejects anything that is not a plain file name.
func ValidateName(name string) error {
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return errors.Wrapf(replyerrors.ErrInvalidAttachment, "%q", name)
	}
	return nil
}

func (s *ObjectStorageService) key(name string) string {
	return s.prefix + name
}

// ListFiles returns attachment names, sorted, without the key prefix.
func (s *ObjectStorageService) ListFiles(ctx context.Context) ([]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.ListFiles")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	keys, err := s.client.ListFiles(ctx, s.bucketName, s.prefix)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to list attachments")
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, s.prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	span.LogFields(tracingLog.Int("result.count", len(names)))
	return names, nil
}

func (s *ObjectStorageService) ReadFile(ctx context.Context, name string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.ReadFile")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(tracingLog.String("name", name))

	if err := ValidateName(name); err != nil {
		return nil, err
	}

	content, err := s.client.Download(ctx, s.bucketName, s.key(name))
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Wrapf(replyerrors.ErrAttachmentNotFound, "%q", name)
		}
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to download attachment %q", name)
	}
	return content, nil
}

func (s *ObjectStorageService) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(tracingLog.String("name", name), tracingLog.Int("size", len(data)))

	if err := ValidateName(name); err != nil {
		return err
	}

	uploadInput := s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if err := s.client.Upload(ctx, uploadInput); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to upload attachment %q", name)
	}
	return nil
}

// Delete is idempotent: removing a missing attachment succeeds.
func (s *ObjectStorageService) Delete(ctx context.Context, name string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(tracingLog.String("name", name))

	if err := ValidateName(name); err != nil {
		return err
	}

	if err := s.client.Delete(ctx, s.bucketName, s.key(name)); err != nil && !isNotFound(err) {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to delete attachment %q", name)
	}
	return nil
}

func isNotFound(err error) bool {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
