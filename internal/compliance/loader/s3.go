package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	storageopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/storage"
)

var errS3Disabled = errors.New("s3 loader is not configured")

// s3API S3Loader 用到的客户端方法子集。
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Loader 从 s3://bucket/prefix 读取文档。
type S3Loader struct {
	client      s3API
	maxFileSize int64
}

// NewS3Loader 根据存储选项创建 S3 客户端。显式提供 access key 时使用静态凭证，
// 否则走默认凭证链 (环境变量、IAM 角色等)。
func NewS3Loader(ctx context.Context, opts *storageopts.Options) (*S3Loader, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return &S3Loader{client: client, maxFileSize: opts.MaxObjectSize}, nil
}

// IsS3URI 判断是否为 s3:// 路径。
func IsS3URI(p string) bool {
	return strings.HasPrefix(p, "s3://")
}

// ParseS3URI 拆分 s3://bucket/prefix。
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	if !IsS3URI(uri) {
		return "", "", fmt.Errorf("not an s3 uri: %s", uri)
	}
	rest := strings.TrimPrefix(uri, "s3://")
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 uri has no bucket: %s", uri)
	}
	return bucket, prefix, nil
}

// List 分页列出前缀下的对象，返回完整 s3:// 路径。
func (l *S3Loader) List(ctx context.Context, root string) ([]string, error) {
	bucket, prefix, err := ParseS3URI(root)
	if err != nil {
		return nil, err
	}

	var out []string
	var token *string
	for {
		resp, err := l.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range resp.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || !Supported(key) {
				continue
			}
			out = append(out, "s3://"+bucket+"/"+key)
		}
		if !aws.ToBool(resp.IsTruncated) || resp.NextContinuationToken == nil {
			break
		}
		token = resp.NextContinuationToken
	}
	sort.Strings(out)
	return out, nil
}

// Load 下载单个对象。
func (l *S3Loader) Load(ctx context.Context, root, item string) (string, string, error) {
	bucket, key, err := ParseS3URI(item)
	if err != nil {
		return "", "", err
	}

	resp, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to download from S3: %w", err)
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	if l.maxFileSize > 0 {
		r = io.LimitReader(resp.Body, l.maxFileSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", "", fmt.Errorf("read s3 object %s: %w", item, err)
	}
	if l.maxFileSize > 0 && int64(len(data)) > l.maxFileSize {
		return "", "", fmt.Errorf("object %s exceeds %d bytes", item, l.maxFileSize)
	}
	return normalizeText(data), s3SourceName(root, key), nil
}

func s3SourceName(root, key string) string {
	_, prefix, err := ParseS3URI(root)
	if err != nil || prefix == "" || prefix == key {
		return path.Base(key)
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
	if rel == "" {
		return path.Base(key)
	}
	return rel
}
