// Package model 定义合规检索系统的核心数据模型。
package model

import "strings"

// Jurisdiction 监管辖区。
type Jurisdiction string

const (
	JurisdictionUS      Jurisdiction = "US"
	JurisdictionEU      Jurisdiction = "EU"
	JurisdictionBR      Jurisdiction = "BR"
	JurisdictionUnknown Jurisdiction = "unknown"
)

// KnownJurisdictions 按固定顺序列出已知辖区，用于确定性遍历。
var KnownJurisdictions = []Jurisdiction{JurisdictionBR, JurisdictionEU, JurisdictionUS}

// ParseJurisdiction 解析辖区字符串，无法识别时返回 unknown 和 false。
func ParseJurisdiction(s string) (Jurisdiction, bool) {
	switch Jurisdiction(strings.ToUpper(strings.TrimSpace(s))) {
	case JurisdictionUS:
		return JurisdictionUS, true
	case JurisdictionEU:
		return JurisdictionEU, true
	case JurisdictionBR:
		return JurisdictionBR, true
	}
	return JurisdictionUnknown, false
}

// SortKey 返回辖区的排序序号，unknown 排在最后。
func (j Jurisdiction) SortKey() int {
	for i, k := range KnownJurisdictions {
		if k == j {
			return i
		}
	}
	return len(KnownJurisdictions)
}

// Language 文档或查询语言。
type Language string

const (
	LanguageEN Language = "en"
	LanguagePT Language = "pt"
)
