package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/textutil"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/json"
)

// QueryCacheConfig 查询缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// QueryCache 查询结果缓存。只缓存合成成功的答案，降级结果每次重新生成。
type QueryCache struct {
	redis  goredis.UniversalClient
	config *QueryCacheConfig
}

// NewQueryCache 创建查询缓存实例。
func NewQueryCache(redis goredis.UniversalClient, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{
			Enabled:   false,
			TTL:       1 * time.Hour,
			KeyPrefix: "regrag:query:",
		}
	}
	return &QueryCache{
		redis:  redis,
		config: config,
	}
}

// Enabled 缓存是否可用。
func (c *QueryCache) Enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

// CacheKeyInput 参与缓存键计算的查询参数。
type CacheKeyInput struct {
	Query         string
	Jurisdictions []model.Jurisdiction
	TopK          int
	Analyze       bool
}

// cacheKey 规范化问题文本 (小写、去重音、合并空白)，辖区排序后与 top_k 一起做 SHA256。
func (c *QueryCache) cacheKey(in CacheKeyInput) string {
	js := make([]string, len(in.Jurisdictions))
	for i, j := range in.Jurisdictions {
		js[i] = string(j)
	}
	sort.Strings(js)

	parts := []string{
		strings.Join(strings.Fields(textutil.Fold(in.Query)), " "),
		strings.Join(js, ","),
		strconv.Itoa(in.TopK),
		strconv.FormatBool(in.Analyze),
	}
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Get 从缓存获取查询结果。未命中或缓存不可用时返回 nil, nil。
func (c *QueryCache) Get(ctx context.Context, in CacheKeyInput) (*model.StructuredResponse, error) {
	if !c.Enabled() {
		return nil, nil
	}

	key := c.cacheKey(in)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if stderrors.Is(err, goredis.Nil) {
			logger.Debugw("query cache miss", "key", key)
			return nil, nil
		}
		logger.Warnw("failed to get from query cache", "error", err.Error(), "key", key)
		return nil, err
	}

	var resp model.StructuredResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Warnw("failed to unmarshal cached response", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}

	logger.Infow("query cache hit", "key", key, "citations", len(resp.Citations))
	return &resp, nil
}

// Set 写入缓存。非 succeeded 的答案直接跳过。
func (c *QueryCache) Set(ctx context.Context, in CacheKeyInput, resp *model.StructuredResponse) error {
	if !c.Enabled() || resp == nil || resp.SynthesisStatus != model.SynthesisSucceeded {
		return nil
	}

	key := c.cacheKey(in)
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Warnw("failed to marshal response for caching", "error", err.Error())
		return err
	}
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set query cache", "error", err.Error(), "key", key)
		return err
	}

	logger.Debugw("cached query response", "key", key, "ttl", c.config.TTL)
	return nil
}

// Clear 清除全部查询缓存，重新摄取文档后调用。
func (c *QueryCache) Clear(ctx context.Context) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		logger.Warnw("error during cache scan", "error", err.Error())
		return deleted, err
	}

	logger.Infow("cleared query cache", "deleted_count", deleted)
	return deleted, nil
}

// GetStats 获取缓存统计信息。
func (c *QueryCache) GetStats(ctx context.Context) (map[string]interface{}, error) {
	if !c.Enabled() {
		return map[string]interface{}{"enabled": false}, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	keys := 0
	for iter.Next(ctx) {
		keys++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"enabled":    true,
		"key_count":  keys,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
	}, nil
}
