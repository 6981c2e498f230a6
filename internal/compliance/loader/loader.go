// Package loader 把外部文档源读成纯文本，供归一化器使用。
//
// 二进制格式 (PDF 等) 的文本抽取不在这里做，只接受 .txt 和 .md。
package loader

import (
	"context"
	"path"
	"strings"
)

// SupportedExtensions 可直接读取的纯文本扩展名。
var SupportedExtensions = []string{".txt", ".md"}

// Loader 文档源。
type Loader interface {
	// List 枚举 root 下可读取的文档路径，顺序稳定。root 本身是单个文件时只返回它。
	List(ctx context.Context, root string) ([]string, error)
	// Load 读取单个文档，返回原文和用于辖区推断、文档 ID 的源文件名。
	Load(ctx context.Context, root, item string) (rawText, sourceFilename string, err error)
}

// Supported 判断扩展名是否可读取。
func Supported(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Mux 按路径前缀选择具体 Loader：s3:// 走对象存储，其余走本地文件系统。
type Mux struct {
	File *FileLoader
	S3   *S3Loader
}

// For 返回处理 root 的 Loader。
func (m *Mux) For(root string) (Loader, error) {
	if IsS3URI(root) {
		if m.S3 == nil {
			return nil, errS3Disabled
		}
		return m.S3, nil
	}
	if m.File == nil {
		return NewFileLoader(), nil
	}
	return m.File, nil
}

func normalizeText(b []byte) string {
	s := strings.TrimPrefix(string(b), "\ufeff")
	return strings.ReplaceAll(s, "\r\n", "\n")
}
