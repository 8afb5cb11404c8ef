package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"studyrag/internal/util"
)

type LocalInbox struct {
	dir string
}

func NewLocalInbox(dir string) (*LocalInbox, error) {
	if dir == "" {
		return nil, fmt.Errorf("local inbox dir is required")
	}
	if err := util.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &LocalInbox{dir: dir}, nil
}

// List skips directories and dot files, which include in-flight uploads.
func (l *LocalInbox) List(ctx context.Context) ([]Object, error) {
	_ = ctx
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox dir: %w", err)
	}
	out := make([]Object, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Object{Key: e.Name(), Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (l *LocalInbox) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	_ = ctx
	if err := validKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(l.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open inbox file %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open inbox file %s: %w", key, err)
	}
	return f, nil
}

func (l *LocalInbox) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	_ = ctx
	if err := validKey(key); err != nil {
		return 0, err
	}
	path, err := util.SafeJoin(l.dir, key)
	if err != nil {
		return 0, err
	}
	return util.WriteFileAtomic(path, r)
}
