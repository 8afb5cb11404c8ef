// Package source is the document inbox: the place uploaded files wait until
// they are ingested.
package source

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"studyrag/internal/config"

	"github.com/google/uuid"
)

type Object struct {
	Key  string
	Size int64
}

// Inbox keys are flat file names without directories.
type Inbox interface {
	List(ctx context.Context) ([]Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
}

func New(ctx context.Context, cfg config.Config) (Inbox, error) {
	switch cfg.InboxType {
	case "", "local":
		return NewLocalInbox(cfg.InboxDir)
	case "s3":
		return NewS3Inbox(ctx, S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown inbox type %q", cfg.InboxType)
	}
}

// ReadAll loads one inbox object into memory.
func ReadAll(ctx context.Context, in Inbox, key string) ([]byte, error) {
	rc, err := in.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read inbox object %s: %w", key, err)
	}
	return data, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// CleanKey reduces a client supplied file name to a safe flat key.
func CleanKey(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeKeyChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "document"
	}
	return base
}

// UploadKey prefixes the cleaned name with a short random id so repeated
// uploads of the same file do not collide.
func UploadKey(name string) string {
	return uuid.NewString()[:8] + "-" + CleanKey(name)
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid inbox key %q", key)
	}
	return nil
}
