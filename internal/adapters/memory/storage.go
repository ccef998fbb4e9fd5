package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"homeward/internal/domain"
	"homeward/internal/ports"
)

// Object is a stored evidence file.
type Object struct {
	Key         string
	ContentType string
	Body        []byte
}

// Storage keeps evidence files in memory and hands out memory:// URLs.
type Storage struct {
	mu      sync.Mutex
	objects map[string]Object
	clock   ports.Clock
}

// NewStorage stamps presigned URL expiry times from clock.
func NewStorage(clock ports.Clock) *Storage {
	return &Storage{objects: map[string]Object{}, clock: clock}
}

func (s *Storage) Upload(ctx context.Context, in ports.UploadInput) (string, error) {
	if in.Body == nil {
		return "", domain.Validation("upload body is required")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return "", fmt.Errorf("memory storage: read upload: %w", err)
	}
	key := path.Join("cases", in.CaseID, in.EvidenceTypeID, uuid.NewString()+path.Ext(in.FileName))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{Key: key, ContentType: in.ContentType, Body: body}
	return key, nil
}

func (s *Storage) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	_, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		return "", domain.NotFound("evidence object", key)
	}
	q := url.Values{}
	q.Set("expires", s.clock.Now().Add(ttl).UTC().Format(time.RFC3339))
	return "memory://" + key + "?" + q.Encode(), nil
}

// Object returns a copy of the stored file.
func (s *Storage) Object(key string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[key]
	if !ok {
		return Object{}, false
	}
	o.Body = bytes.Clone(o.Body)
	return o, true
}
