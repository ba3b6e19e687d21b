//nolint
package capture

import (
	"time"

	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

var (
	ParseVXLAN = parseVXLAN
)

type InspectRecord inspectRecord

type UploadFunc func(*s3manager.UploadInput) (*s3manager.UploadOutput, error)

type fakeS3Uploader struct {
	fn UploadFunc
}

func (x *fakeS3Uploader) Upload(input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return x.fn(input)
}

// ReplaceS3Uploader swaps S3 client and returns a function to restore it.
func ReplaceS3Uploader(fn UploadFunc) func() {
	orig := newS3Uploader
	newS3Uploader = func(string) s3Uploader { return &fakeS3Uploader{fn: fn} }
	return func() { newS3Uploader = orig }
}

func SetUploaderClock(u *Uploader, now time.Time) {
	u.now = func() time.Time { return now }
}

func ObjectKey(u *Uploader, ext string) string {
	return u.objectKey(ext)
}
