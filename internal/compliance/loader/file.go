package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FileLoader 本地文件系统 Loader。
type FileLoader struct {
	// MaxFileSize 单文件大小上限，0 表示不限。
	MaxFileSize int64
}

// NewFileLoader 创建本地 Loader。
func NewFileLoader() *FileLoader {
	return &FileLoader{MaxFileSize: 32 << 20}
}

// List 单文件直接返回；目录递归遍历，跳过隐藏目录和不支持的扩展名。
func (l *FileLoader) List(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		if !Supported(root) {
			return nil, fmt.Errorf("unsupported file type: %s", root)
		}
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if p != root && len(d.Name()) > 1 && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Load 读取文件。源文件名取相对 root 的路径，root 是单个文件时取文件名，
// 这样目录名 (例如 us/、brasil/) 也参与辖区推断，且与挂载位置无关。
func (l *FileLoader) Load(_ context.Context, root, item string) (string, string, error) {
	info, err := os.Stat(item)
	if err != nil {
		return "", "", fmt.Errorf("stat %s: %w", item, err)
	}
	if l.MaxFileSize > 0 && info.Size() > l.MaxFileSize {
		return "", "", fmt.Errorf("file %s exceeds %d bytes", item, l.MaxFileSize)
	}

	data, err := os.ReadFile(item)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", item, err)
	}
	return normalizeText(data), sourceName(root, item), nil
}

func sourceName(root, item string) string {
	rel, err := filepath.Rel(root, item)
	if err != nil || rel == "." || rel == "" {
		return filepath.Base(item)
	}
	return filepath.ToSlash(rel)
}
