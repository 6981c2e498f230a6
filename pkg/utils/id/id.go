// Package id 生成唯一标识。
//
//   - UUID v4: 请求 ID
//   - ULID: 查询 ID、冲突报告 ID，按时间有序
//
// 用法：
//
//	reqID := id.NewUUID()   // "550e8400-e29b-41d4-a716-446655440000"
//	qid := id.NewULID()     // "01ARZ3NDEKTSV4RRFFQ69G5FAV"
package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator ID 生成器接口。
type Generator interface {
	// Generate 生成一个新 ID。
	Generate() string

	// GenerateN 生成 n 个 ID。
	GenerateN(n int) []string
}

// Type ID 生成策略。
type Type string

const (
	TypeUUID Type = "uuid"
	TypeULID Type = "ulid"
)

var (
	defaultUUID Generator
	defaultULID Generator
	initOnce    sync.Once
)

func initDefaults() {
	initOnce.Do(func() {
		defaultUUID = NewUUIDGenerator()
		defaultULID = NewULIDGenerator()
	})
}

// NewUUID 生成 UUID v4。
func NewUUID() string {
	initDefaults()
	return defaultUUID.Generate()
}

// NewULID 生成 ULID，同一毫秒内单调递增。
func NewULID() string {
	initDefaults()
	return defaultULID.Generate()
}

// New 按类型生成 ID，未知类型回退到 UUID。
func New(t Type) string {
	if t == TypeULID {
		return NewULID()
	}
	return NewUUID()
}

// UUIDGenerator UUID v4 生成器。
type UUIDGenerator struct{}

// NewUUIDGenerator 创建 UUID 生成器。
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Generate 生成 UUID v4。
func (g *UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// GenerateN 生成 n 个 UUID。
func (g *UUIDGenerator) GenerateN(n int) []string {
	return generateN(g, n)
}

// ULIDGenerator 单调 ULID 生成器，并发安全。
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewULIDGenerator 创建 ULID 生成器。
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Generate 生成 ULID。
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// GenerateN 生成 n 个 ULID。
func (g *ULIDGenerator) GenerateN(n int) []string {
	return generateN(g, n)
}

func generateN(g Generator, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = g.Generate()
	}
	return ids
}

// IsValidULID 判断字符串是否为合法 ULID。
func IsValidULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// IsValidUUID 判断字符串是否为合法 UUID。
func IsValidUUID(s string) bool {
	return uuid.Validate(s) == nil
}

// ULIDTime 返回 ULID 中编码的时间。
func ULIDTime(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, ErrInvalidULID
	}
	return ulid.Time(u.Time()), nil
}
