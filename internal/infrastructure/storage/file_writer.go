// Package storage 提供文档持久化实现
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"z-novel-storygen/pkg/logger"
)

// FileWriter 基于 afero 的文件写入器：先写临时文件再重命名，已存在的同名文件不会被覆盖
type FileWriter struct {
	fs afero.Fs
}

func NewFileWriter(fs afero.Fs) *FileWriter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileWriter{fs: fs}
}

// NewOSFileWriter 写入本地文件系统
func NewOSFileWriter() *FileWriter {
	return NewFileWriter(afero.NewOsFs())
}

// Write 写入 dir/name，返回实际路径；同名文件存在时追加 -1、-2 … 后缀
func (w *FileWriter) Write(ctx context.Context, dir, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("artifact name is required")
	}
	if dir == "" {
		dir = "."
	}
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", dir, err)
	}

	path, err := w.claimPath(dir, name)
	if err != nil {
		return "", err
	}

	tmp, err := afero.TempFile(w.fs, dir, ".storygen-*.tmp")
	if err != nil {
		_ = w.fs.Remove(path)
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = w.fs.Remove(tmpName)
		_ = w.fs.Remove(path)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := w.fs.Rename(tmpName, path); err != nil {
		cleanup()
		return "", fmt.Errorf("rename %s: %w", path, err)
	}

	logger.Info(ctx, "artifact written", "path", path, "bytes", len(data))
	return path, nil
}

// claimPath 以 O_EXCL 创建空占位文件来占用目标名，随后的 Rename 只会替换自己的占位文件
func (w *FileWriter) claimPath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(dir, name)
	for i := 1; i <= 1000; i++ {
		f, err := w.fs.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if err := f.Close(); err != nil {
				_ = w.fs.Remove(candidate)
				return "", fmt.Errorf("close %s: %w", candidate, err)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, i, ext))
	}
	return "", fmt.Errorf("no free file name for %s: %w", name, os.ErrExist)
}
