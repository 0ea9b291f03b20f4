package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"
)

const DefaultBucket = "avatars"

// AvatarStore keeps profile pictures. Profiles store the returned path,
// never the URL.
type AvatarStore interface {
	Upload(ctx context.Context, userID uuid.UUID, filename, contentType string, data io.Reader) (string, error)
	PublicURL(path string) string
}

// AvatarPath returns "<uid>/<uid>-<unix millis>.<ext>" for an uploaded
// file name. Files without an extension are rejected.
func AvatarPath(userID uuid.UUID, filename string, now time.Time) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return "", utils.NewValidationError("avatar file name needs an extension")
	}
	id := userID.String()
	return fmt.Sprintf("%s/%s-%d.%s", id, id, now.UnixMilli(), ext), nil
}

// SupabaseAvatars uploads to a Supabase storage bucket. The client is
// looked up per call because it is rebuilt whenever the session changes.
type SupabaseAvatars struct {
	client func() *storage_go.Client
	bucket string
	logger *zap.Logger
	now    func() time.Time

	// storage-go keeps upload headers on the shared transport
	mu sync.Mutex
}

func NewSupabaseAvatars(client func() *storage_go.Client, bucket string, logger *zap.Logger) *SupabaseAvatars {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &SupabaseAvatars{
		client: client,
		bucket: bucket,
		logger: utils.OrNop(logger),
		now:    time.Now,
	}
}

func (s *SupabaseAvatars) Upload(ctx context.Context, userID uuid.UUID, filename, contentType string, data io.Reader) (string, error) {
	path, err := AvatarPath(userID, filename, s.now())
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", utils.NewAppError(utils.ErrRemoteUnavailable, "avatar upload cancelled", err)
	}

	options := storage_go.FileOptions{}
	if contentType != "" {
		options.ContentType = &contentType
	}
	upsert := false
	options.Upsert = &upsert

	s.mu.Lock()
	_, err = s.client().UploadFile(s.bucket, path, data, options)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("avatar upload failed",
			zap.String("user_id", userID.String()),
			zap.String("path", path),
			zap.Error(err))
		return "", classifyStorageError(err)
	}
	return path, nil
}

func (s *SupabaseAvatars) PublicURL(path string) string {
	if path == "" {
		return ""
	}
	return s.client().GetPublicUrl(s.bucket, path).SignedURL
}

func classifyStorageError(err error) error {
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return utils.NewAppError(utils.ErrRemoteUnavailable, "storage unreachable", err)
	}
	var storageErr *storage_go.StorageError
	if errors.As(err, &storageErr) && strings.Contains(strings.ToLower(storageErr.Message), "already exists") {
		return utils.NewAppError(utils.ErrConflict, "avatar already exists", err)
	}
	return utils.NewAppError(utils.ErrRemote, "avatar upload failed", err)
}

// MemoryAvatars keeps uploads in memory for offline runs and tests.
type MemoryAvatars struct {
	baseURL string
	bucket  string
	now     func() time.Time

	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryAvatars(baseURL string) *MemoryAvatars {
	return &MemoryAvatars{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  DefaultBucket,
		now:     time.Now,
		objects: make(map[string][]byte),
	}
}

func (m *MemoryAvatars) Upload(ctx context.Context, userID uuid.UUID, filename, contentType string, data io.Reader) (string, error) {
	path, err := AvatarPath(userID, filename, m.now())
	if err != nil {
		return "", err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return "", utils.NewValidationError("unreadable avatar upload")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[path]; exists {
		return "", utils.NewAppError(utils.ErrConflict, "avatar already exists", nil)
	}
	m.objects[path] = body
	return path, nil
}

func (m *MemoryAvatars) PublicURL(path string) string {
	if path == "" {
		return ""
	}
	return m.baseURL + "/object/public/" + m.bucket + "/" + path
}

// Object returns the stored bytes at path.
func (m *MemoryAvatars) Object(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.objects[path]
	return body, ok
}
