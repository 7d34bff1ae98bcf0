package aws_client

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
)

// R2Config holds configuration specific to Cloudflare R2
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
}

// NewR2Client creates an S3Client against the account's R2 endpoint.
func NewR2Client(config R2Config) S3Client {
	return NewS3Client(&aws.Config{
		Endpoint:    aws.String("https://" + config.AccountID + ".r2.cloudflarestorage.com"),
		Region:      aws.String("auto"),
		Credentials: credentials.NewStaticCredentials(config.AccessKeyID, config.AccessKeySecret, ""),
		// R2 only supports path-style addressing
		S3ForcePathStyle: aws.Bool(true),
	})
}
