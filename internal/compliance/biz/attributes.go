package biz

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/taxonomy"
	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/textutil"
)

// 千分位可以是 . , 空格、不换行空格 (U+00A0) 或窄不换行空格 (U+202F)，欧盟公报写作 "EUR 10 000"。
const amountPattern = `[0-9]{1,3}(?:[.,\x{00A0}\x{202F} ][0-9]{3})+(?:[.,][0-9]{1,2})?|[0-9]+(?:[.,][0-9]+)?`

const spacePattern = `[\s\x{00A0}\x{202F}]?`

const scalePattern = `(?:` + spacePattern + `(thousand|million|milhões|milhão|milhoes|milhao|mil)\b)?`

var (
	moneyPrefixRe = regexp.MustCompile(`(?i)(US\$|R\$|\$|€|\bUSD|\bEUR|\bBRL)` + spacePattern + `(` + amountPattern + `)` + scalePattern)
	moneySuffixRe = regexp.MustCompile(`(?i)\b(` + amountPattern + `)` + scalePattern + spacePattern + `(USD|EUR|BRL|euros?|reais|dollars?|d[oó]lares)\b`)
	percentRe     = regexp.MustCompile(`(?i)\b([0-9]+(?:[.,][0-9]+)?)\s?(?:%|percent\b|per cent\b|por cento\b)`)
	deadlineRe    = regexp.MustCompile(`\b([0-9]+|` + numberWordAlternation() + `)\)?\s+(?:\([0-9]+\)\s+)?(?:business\s+|calendar\s+|working\s+)?(hours?|days?|months?|years?|horas?|dias?|meses|mes|anos?)\b`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"twelve": 12, "fifteen": 15, "thirty": 30, "sixty": 60, "ninety": 90,
	"um": 1, "uma": 1, "dois": 2, "duas": 2, "tres": 3, "quatro": 4, "cinco": 5, "seis": 6, "sete": 7, "oito": 8,
	"nove": 9, "dez": 10, "doze": 12, "quinze": 15, "trinta": 30, "sessenta": 60, "noventa": 90,
}

func numberWordAlternation() string {
	words := make([]string, 0, len(numberWords))
	for w := range numberWords {
		words = append(words, w)
	}
	// 长词优先，避免 "um" 抢先匹配 "uma"
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	return strings.Join(words, "|")
}

// Quantity 从文本中抽取的数量属性。Unit 为币种、"%" 或 "h"。
type Quantity struct {
	Value float64
	Unit  string
	Raw   string
}

// Attributes 一个分块的可比较属性。
type Attributes struct {
	Thresholds  []Quantity
	Percentages []Quantity
	Deadlines   []Quantity
}

// Count 数量属性总数。
func (a Attributes) Count() int {
	return len(a.Thresholds) + len(a.Percentages) + len(a.Deadlines)
}

// ExtractAttributes 抽取金额门槛、百分比和期限。
func ExtractAttributes(text string) Attributes {
	var a Attributes

	taken := make([][2]int, 0)
	for _, m := range moneyPrefixRe.FindAllStringSubmatchIndex(text, -1) {
		value, ok := parseAmount(text[m[4]:m[5]])
		if !ok {
			continue
		}
		if m[6] >= 0 {
			value *= scaleOf(text[m[6]:m[7]])
		}
		a.Thresholds = append(a.Thresholds, Quantity{Value: value, Unit: normalizeCurrency(text[m[2]:m[3]]), Raw: text[m[0]:m[1]]})
		taken = append(taken, [2]int{m[0], m[1]})
	}
	for _, m := range moneySuffixRe.FindAllStringSubmatchIndex(text, -1) {
		if overlaps(taken, m[0], m[1]) {
			continue
		}
		value, ok := parseAmount(text[m[2]:m[3]])
		if !ok {
			continue
		}
		if m[4] >= 0 {
			value *= scaleOf(text[m[4]:m[5]])
		}
		a.Thresholds = append(a.Thresholds, Quantity{Value: value, Unit: normalizeCurrency(text[m[6]:m[7]]), Raw: text[m[0]:m[1]]})
	}

	for _, m := range percentRe.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil {
			continue
		}
		a.Percentages = append(a.Percentages, Quantity{Value: v, Unit: "%", Raw: m[0]})
	}

	folded := textutil.Fold(text)
	for _, m := range deadlineRe.FindAllStringSubmatch(folded, -1) {
		n, ok := numberWords[m[1]]
		if !ok {
			v, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			n = v
		}
		a.Deadlines = append(a.Deadlines, Quantity{Value: float64(n) * hoursPer(m[2]), Unit: "h", Raw: m[0]})
	}
	return a
}

func overlaps(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

// parseAmount 同时兼容 10,000.50、10.000,50 与 10 000,50 三种写法。
// 空白总是千分位；两种标点都出现时最后一个是小数点；只出现一种且后跟恰好三位数字时视为千分位。
func parseAmount(s string) (float64, bool) {
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' || r == '\u202f' {
			return -1
		}
		return r
	}, s)
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		decimal, group := ".", ","
		if lastComma > lastDot {
			decimal, group = ",", "."
		}
		s = strings.ReplaceAll(s, group, "")
		s = strings.Replace(s, decimal, ".", 1)
	case lastDot >= 0 || lastComma >= 0:
		sep := "."
		if lastComma >= 0 {
			sep = ","
		}
		parts := strings.Split(s, sep)
		if len(parts) > 2 || len(parts[len(parts)-1]) == 3 {
			s = strings.ReplaceAll(s, sep, "")
		} else {
			s = strings.Replace(s, sep, ".", 1)
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func scaleOf(word string) float64 {
	switch textutil.Fold(word) {
	case "thousand", "mil":
		return 1e3
	case "million", "milhao", "milhoes":
		return 1e6
	}
	return 1
}

func normalizeCurrency(token string) string {
	switch t := textutil.Fold(token); {
	case t == "us$" || t == "$" || t == "usd" || strings.HasPrefix(t, "dollar") || strings.HasPrefix(t, "dolar"):
		return "USD"
	case t == "€" || t == "eur" || strings.HasPrefix(t, "euro"):
		return "EUR"
	case t == "r$" || t == "brl" || t == "reais" || t == "real":
		return "BRL"
	}
	return strings.ToUpper(token)
}

func hoursPer(unit string) float64 {
	switch {
	case strings.HasPrefix(unit, "hour"), strings.HasPrefix(unit, "hora"):
		return 1
	case strings.HasPrefix(unit, "day"), strings.HasPrefix(unit, "dia"):
		return 24
	case strings.HasPrefix(unit, "month"), strings.HasPrefix(unit, "mes"):
		return 720
	default:
		return 8760
	}
}

// definitionPhrase 返回句子中定义短语之后的规范化内容 (去停用词，最多 12 个词)。
// 句子必须同时包含定义提示词和主题关键词。
func definitionPhrase(text string, topic *taxonomy.Topic, profile *taxonomy.LanguageProfile) (string, bool) {
	for _, sent := range textutil.SplitSentences(text) {
		folded := textutil.Fold(sent)
		if !mentionsTopic(folded, topic) {
			continue
		}
		for _, cue := range profile.DefinitionCues {
			idx := strings.Index(folded, cue)
			if idx < 0 || !textutil.ContainsPhrase(folded, cue) {
				continue
			}
			var words []string
			for _, w := range textutil.Words(folded[idx+len(cue):]) {
				if !profile.IsStopword(w) {
					words = append(words, w)
				}
				if len(words) == 12 {
					break
				}
			}
			if len(words) > 0 {
				return strings.Join(words, " "), true
			}
		}
	}
	return "", false
}

func mentionsTopic(folded string, topic *taxonomy.Topic) bool {
	for _, kw := range topic.Keywords {
		if textutil.ContainsPhrase(folded, kw) {
			return true
		}
	}
	return false
}

// formatQuantity 以人类可读的方式展示数量。
func formatQuantity(q Quantity) string {
	switch q.Unit {
	case "%":
		return strconv.FormatFloat(q.Value, 'f', -1, 64) + "%"
	case "h":
		return formatHours(q.Value)
	default:
		return q.Unit + " " + formatMoney(q.Value)
	}
}

func formatMoney(v float64) string {
	whole := int64(v)
	s := strconv.FormatInt(whole, 10)
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	if frac := v - float64(whole); frac > 0.004 {
		fmt.Fprintf(&sb, ".%02d", int(math.Round(frac*100)))
	}
	return sb.String()
}

func formatHours(h float64) string {
	n := int64(h)
	switch {
	case n > 0 && n%8760 == 0:
		return plural(n/8760, "year")
	case n > 0 && n%24 == 0:
		return plural(n/24, "day")
	default:
		return plural(n, "hour")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.FormatInt(n, 10) + " " + unit + "s"
}
