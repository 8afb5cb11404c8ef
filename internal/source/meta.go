package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"studyrag/internal/models"
)

var ErrNotFound = errors.New("inbox object not found")

// UploadInfo is what an upload knows about its file beyond the bytes. It is
// kept next to the file so an inbox scan can start the ingest with it.
type UploadInfo struct {
	Name string           `json:"name,omitempty"`
	Meta models.ClassMeta `json:"meta"`
}

// MetaKey is the sidecar key for key. The leading dot keeps it out of List.
func MetaKey(key string) string {
	return "." + key + ".meta.json"
}

func SaveMeta(ctx context.Context, in Inbox, key string, info UploadInfo) error {
	if err := validKey(key); err != nil {
		return err
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode upload info %s: %w", key, err)
	}
	if _, err := in.Save(ctx, MetaKey(key), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save upload info %s: %w", key, err)
	}
	return nil
}

// LoadMeta returns the zero UploadInfo when key has no sidecar.
func LoadMeta(ctx context.Context, in Inbox, key string) (UploadInfo, error) {
	var info UploadInfo
	if err := validKey(key); err != nil {
		return info, err
	}
	data, err := ReadAll(ctx, in, MetaKey(key))
	if errors.Is(err, ErrNotFound) {
		return info, nil
	}
	if err != nil {
		return info, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return info, nil
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return UploadInfo{}, fmt.Errorf("decode upload info %s: %w", key, err)
	}
	return info, nil
}
