package aws_client

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/replydesk/internal/tracing"
)

type S3Client interface {
	Upload(ctx context.Context, uploadContainer s3manager.UploadInput) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	ListFiles(ctx context.Context, bucket, prefix string) ([]string, error)
	Delete(ctx context.Context, bucket, key string) error
}

type s3Client struct {
	Uploader   *s3manager.Uploader
	Downloader *s3manager.Downloader
	Service    *s3.S3
}

func NewS3Client(config *aws.Config) S3Client {
	s := session.Must(session.NewSession(config))
	return &s3Client{
		Uploader:   s3manager.NewUploader(s),
		Downloader: s3manager.NewDownloader(s),
		Service:    s3.New(s),
	}
}

func (s *s3Client) Upload(ctx context.Context, uploadContainer s3manager.UploadInput) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "s3Client.Upload")
	defer span.Finish()
	tracing.SetDefaultProviderSpanTags(ctx, span)

	_, err := s.Uploader.UploadWithContext(ctx, &uploadContainer)
	return err
}

func (s *s3Client) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "s3Client.Download")
	defer span.Finish()
	tracing.SetDefaultProviderSpanTags(ctx, span)

	buffer := &aws.WriteAtBuffer{}
	_, err := s.Downloader.DownloadWithContext(ctx, buffer,
		&s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
	if err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

func (s *s3Client) ListFiles(ctx context.Context, bucket, prefix string) ([]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "s3Client.ListFiles")
	defer span.Finish()
	tracing.SetDefaultProviderSpanTags(ctx, span)

	var files []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	err := s.Service.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			if obj.Key != nil {
				files = append(files, *obj.Key)
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

func (s *s3Client) Delete(ctx context.Context, bucket, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "s3Client.Delete")
	defer span.Finish()
	tracing.SetDefaultProviderSpanTags(ctx, span)

	_, err := s.Service.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}
