package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// UploaderArguments is for construction of Uploader.
type UploaderArguments struct {
	AwsRegion       string
	AwsS3Bucket     string
	AwsS3Prefix     string
	AwsS3AddTimeKey bool
}

type s3Uploader interface {
	Upload(*s3manager.UploadInput, ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

var newS3Uploader = func(awsRegion string) s3Uploader {
	ssn := session.Must(session.NewSession(&aws.Config{
		Region: aws.String(awsRegion),
	}))
	return s3manager.NewUploader(ssn)
}

// Uploader puts a finished capture file to S3.
type Uploader struct {
	Argument UploaderArguments
	now      func() time.Time
}

// NewUploader is constructor of Uploader. AwsRegion and AwsS3Bucket are required.
func NewUploader(args UploaderArguments) (*Uploader, error) {
	if args.AwsRegion == "" {
		return nil, fmt.Errorf("AwsRegion is not set for S3 uploader")
	}
	if args.AwsS3Bucket == "" {
		return nil, fmt.Errorf("AwsS3Bucket is not set for S3 uploader")
	}

	Logger.WithFields(logrus.Fields{
		"region":     args.AwsRegion,
		"S3Bucket":   args.AwsS3Bucket,
		"S3Prefix":   args.AwsS3Prefix,
		"addTimeKey": args.AwsS3AddTimeKey,
	}).Info("Configured AWS S3 Uploader")

	return &Uploader{Argument: args, now: time.Now}, nil
}

func (x *Uploader) objectKey(ext string) string {
	s3Key := x.Argument.AwsS3Prefix
	now := x.now().UTC()
	if x.Argument.AwsS3AddTimeKey {
		s3Key += now.Format("2006/01/02/15/")
	}
	s3Key += now.Format("20060102_150405_") +
		strings.Replace(uuid.New().String(), "-", "", -1) + ext

	return s3Key
}

// Upload sends the file at path and returns its object key.
func (x *Uploader) Upload(path string) (string, error) {
	fd, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "Fail to open capture file for upload: %s", path)
	}
	defer fd.Close()

	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".pcap"
	}
	s3Key := x.objectKey(ext)

	uploader := newS3Uploader(x.Argument.AwsRegion)
	resp, err := uploader.Upload(&s3manager.UploadInput{
		Body:   fd,
		Bucket: aws.String(x.Argument.AwsS3Bucket),
		Key:    aws.String(s3Key),
	})
	if err != nil {
		return "", errors.Wrap(err, "Fail to upload capture file to S3")
	}

	Logger.WithFields(logrus.Fields{
		"s3resp": resp,
		"bucket": x.Argument.AwsS3Bucket,
		"key":    s3Key,
	}).Debug("Uploaded capture file to S3")

	return s3Key, nil
}
