package storage

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"

	"github.com/customeros/replydesk/config"
	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/services/storage/aws_client"
)

// NewAttachmentStorage picks Cloudflare R2 when an account id is configured and AWS S3 otherwise.
func NewAttachmentStorage(cfg *config.StorageConfig) interfaces.AttachmentStorage {
	if cfg.R2AccountID != "" {
		return NewR2StorageService(cfg.R2AccountID, cfg.AccessKeyID, cfg.AccessKeySecret, cfg.BucketName, cfg.Prefix)
	}
	return NewS3StorageService(cfg.AwsRegion, cfg.AccessKeyID, cfg.AccessKeySecret, cfg.BucketName, cfg.Prefix)
}

// NewS3StorageService creates attachment storage backed by AWS S3
func NewS3StorageService(awsRegion, accessKeyID, accessKeySecret, bucketName, prefix string) interfaces.AttachmentStorage {
	s3Client := aws_client.NewS3Client(&aws.Config{
		Region:      aws.String(awsRegion),
		Credentials: credentials.NewStaticCredentials(accessKeyID, accessKeySecret, ""),
	})

	return NewStorageService(s3Client, StorageConfig{
		BucketName: bucketName,
		Prefix:     prefix,
	})
}

// NewR2StorageService creates attachment storage backed by Cloudflare R2
func NewR2StorageService(accountID, accessKeyID, accessKeySecret, bucketName, prefix string) interfaces.AttachmentStorage {
	r2Client := aws_client.NewR2Client(aws_client.R2Config{
		AccountID:       accountID,
		AccessKeyID:     accessKeyID,
		AccessKeySecret: accessKeySecret,
	})

	return NewStorageService(r2Client, StorageConfig{
		BucketName: bucketName,
		Prefix:     prefix,
	})
}
