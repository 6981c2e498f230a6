// Package textutil 提供分块、检索与分析共用的文本处理工具函数。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CosineSimilarity 计算两个向量的余弦相似度，范围 [-1, 1]。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeCosineSimilarity 将余弦相似度归一化到 [0, 1]。
func NormalizeCosineSimilarity(similarity float64) float64 {
	s := (similarity + 1) / 2
	return Clamp01(s)
}

// Clamp01 把 v 限制在 [0, 1]。
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// HashString 返回 s 的 SHA-256 十六进制摘要的前 n 个字符，n<=0 时返回完整摘要。
func HashString(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	h := hex.EncodeToString(sum[:])
	if n > 0 && n < len(h) {
		return h[:n]
	}
	return h
}

// TruncateString 截断到 maxLen 个 Unicode 字符。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// TruncateWithEllipsis 超过 maxLen 时截断并追加 "..."，结果总长度不超过 maxLen。
func TruncateWithEllipsis(s string, maxLen int) string {
	if maxLen <= 3 || utf8.RuneCountInString(s) <= maxLen {
		return TruncateString(s, maxLen)
	}
	return strings.TrimSpace(string([]rune(s)[:maxLen-3])) + "..."
}

// Tokens 按空白切分 token。分块预算与重叠都以它为准。
func Tokens(s string) []string {
	return strings.Fields(s)
}

// CountTokens 统计 token 数。
func CountTokens(s string) int {
	return len(strings.Fields(s))
}

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n+`)

// SplitParagraphs 按空行切分段落，去掉空段。
func SplitParagraphs(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	parts := paragraphBreak.Split(s, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitSentences 按句末标点 (. ! ? ;) 加空白或换行切分句子，标点保留在句尾。
func SplitSentences(s string) []string {
	var out []string
	r := []rune(s)
	start := 0
	flush := func(end int) {
		if seg := strings.TrimSpace(string(r[start:end])); seg != "" {
			out = append(out, seg)
		}
		start = end
	}
	for i := 0; i < len(r); i++ {
		switch r[i] {
		case '\n':
			flush(i + 1)
		case '.', '!', '?', ';':
			if i+1 == len(r) || unicode.IsSpace(r[i+1]) {
				flush(i + 1)
			}
		}
	}
	flush(len(r))
	return out
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold 小写并去除重音，用于关键词匹配 (例如 "obrigatório" -> "obrigatorio")。
func Fold(s string) string {
	out, _, err := transform.String(foldTransformer, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Words 返回折叠后的词序列，去掉标点。
func Words(s string) []string {
	return wordRe.FindAllString(Fold(s), -1)
}

// ContainsPhrase 判断折叠后的 text 是否在词边界上包含折叠后的 phrase，
// 允许 phrase 后跟复数后缀 s/es。
func ContainsPhrase(foldedText, phrase string) bool {
	p := Fold(phrase)
	if p == "" {
		return false
	}
	idx := 0
	for {
		i := strings.Index(foldedText[idx:], p)
		if i < 0 {
			return false
		}
		i += idx
		end := i + len(p)
		leftOK := i == 0 || !isWordByte(foldedText[i-1])
		rightOK := boundaryAt(foldedText, end) ||
			(end < len(foldedText) && foldedText[end] == 's' && boundaryAt(foldedText, end+1)) ||
			(end+1 < len(foldedText) && foldedText[end:end+2] == "es" && boundaryAt(foldedText, end+2))
		if leftOK && rightOK {
			return true
		}
		idx = i + 1
	}
}

func boundaryAt(s string, i int) bool {
	return i >= len(s) || !isWordByte(s[i])
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// ContainsString 检查字符串切片是否包含指定元素。
func ContainsString(slice []string, item string) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}
