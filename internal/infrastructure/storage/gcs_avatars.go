package storage

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/artztall/user-service/internal/application"
	"github.com/artztall/user-service/pkg/helpers"
)

// MaxAvatarBytes caps a single upload.
const MaxAvatarBytes = 5 << 20

// GCSAvatars stores profile pictures under avatars/<account id>/ in one bucket.
type GCSAvatars struct {
	client *storage.Client
	bucket string
}

var _ application.AvatarStorage = (*GCSAvatars)(nil)

func NewGCSAvatars(client *storage.Client, bucket string) *GCSAvatars {
	return &GCSAvatars{client: client, bucket: bucket}
}

func (g *GCSAvatars) Upload(ctx context.Context, accountID, filename, contentType string, r io.Reader) (string, error) {
	return helpers.UploadObject(ctx, g.client, g.bucket, AvatarPath(accountID, filename), contentType, io.LimitReader(r, MaxAvatarBytes))
}

// AvatarPath is the object name for a new upload. Every upload gets a fresh name so
// cached copies of the previous picture are never served for the new one.
func AvatarPath(accountID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join("avatars", accountID, uuid.NewString()+ext)
}
