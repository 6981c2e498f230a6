package biz

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/taxonomy"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/textutil"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
)

const (
	maxTitleRunes = 200
	minDocYear    = 1990
	maxDocYear    = 2099
)

var (
	filenameYearRe = regexp.MustCompile(`(?:^|[^0-9])((?:19|20)[0-9]{2})(?:[^0-9]|$)`)
	slashDateRe    = regexp.MustCompile(`\b([0-9]{1,2})/([0-9]{1,2})/([0-9]{4})\b`)
	isoDateRe      = regexp.MustCompile(`\b([0-9]{4})-([0-9]{2})-([0-9]{2})\b`)
	monthFirstRe   = regexp.MustCompile(`\b([a-z]+)\s+([0-9]{1,2}),?\s+([0-9]{4})\b`)
	dayFirstRe     = regexp.MustCompile(`\b([0-9]{1,2})\s+(?:de\s+)?([a-z]+)\s+(?:de\s+)?([0-9]{4})\b`)
)

// Normalizer 把原始文本和源文件名归一化为 Document，无副作用。
type Normalizer struct {
	tax      *taxonomy.Taxonomy
	detector *LanguageDetector
	minWords int
	months   map[string]int
	now      func() time.Time
}

// NewNormalizer 创建归一化器。
func NewNormalizer(tax *taxonomy.Taxonomy, opts *compopts.Options) *Normalizer {
	months := make(map[string]int)
	for _, p := range tax.Profiles() {
		for name, m := range p.Months {
			months[name] = m
		}
	}
	return &Normalizer{
		tax:      tax,
		detector: NewLanguageDetector(tax, opts.SampleChars),
		minWords: opts.MinDetectWords,
		months:   months,
		now:      time.Now,
	}
}

// DocumentID 由规范化后的源文件名生成确定性 ID，同一文件重复摄取会覆盖。
func DocumentID(sourceFilename string) string {
	return textutil.HashString(normalizeSourceName(sourceFilename), 16)
}

func normalizeSourceName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	return strings.ToLower(path.Clean(name))
}

// Normalize 构造 Document。空文本返回 ErrIngestion。
func (n *Normalizer) Normalize(rawText, sourceFilename string) (*model.Document, error) {
	if strings.TrimSpace(sourceFilename) == "" {
		return nil, errors.ErrIngestion.WithMessage("source filename is empty")
	}
	if strings.TrimSpace(rawText) == "" {
		return nil, errors.ErrIngestion.WithMessagef("document %s has no text", sourceFilename)
	}

	doc := &model.Document{
		ID:             DocumentID(sourceFilename),
		Jurisdiction:   n.tax.MatchJurisdiction(sourceFilename),
		Language:       n.detector.Detect(rawText, n.minWords),
		Title:          extractTitle(rawText, sourceFilename),
		SourceFilename: sourceFilename,
		RawText:        rawText,
		IngestedAt:     n.now().UTC(),
	}
	if t, ok := n.publishedAt(rawText, sourceFilename); ok {
		doc.PublishedAt = &t
	}
	return doc, nil
}

func extractTitle(rawText, sourceFilename string) string {
	for _, line := range strings.Split(rawText, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			return textutil.TruncateString(line, maxTitleRunes)
		}
	}
	base := path.Base(strings.ReplaceAll(sourceFilename, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// publishedAt 先看文件名中的年份，再看正文开头的第一个日期短语。
func (n *Normalizer) publishedAt(rawText, sourceFilename string) (time.Time, bool) {
	base := path.Base(strings.ReplaceAll(sourceFilename, "\\", "/"))
	for _, m := range filenameYearRe.FindAllStringSubmatch(base, -1) {
		year, _ := strconv.Atoi(m[1])
		if year >= minDocYear && year <= maxDocYear {
			return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
		}
	}
	return n.firstDate(textutil.Fold(textutil.TruncateString(rawText, n.detector.sampleChars)))
}

type dateMatch struct {
	pos  int
	date time.Time
}

func (n *Normalizer) firstDate(text string) (time.Time, bool) {
	var best *dateMatch
	consider := func(pos, year, month, day int) {
		t, ok := makeDate(year, month, day)
		if !ok {
			return
		}
		if best == nil || pos < best.pos {
			best = &dateMatch{pos: pos, date: t}
		}
	}

	for _, m := range slashDateRe.FindAllStringSubmatchIndex(text, -1) {
		consider(m[0], atoi(text[m[6]:m[7]]), atoi(text[m[4]:m[5]]), atoi(text[m[2]:m[3]]))
	}
	for _, m := range isoDateRe.FindAllStringSubmatchIndex(text, -1) {
		consider(m[0], atoi(text[m[2]:m[3]]), atoi(text[m[4]:m[5]]), atoi(text[m[6]:m[7]]))
	}
	for _, m := range monthFirstRe.FindAllStringSubmatchIndex(text, -1) {
		if month, ok := n.months[text[m[2]:m[3]]]; ok {
			consider(m[0], atoi(text[m[6]:m[7]]), month, atoi(text[m[4]:m[5]]))
		}
	}
	for _, m := range dayFirstRe.FindAllStringSubmatchIndex(text, -1) {
		if month, ok := n.months[text[m[4]:m[5]]]; ok {
			consider(m[0], atoi(text[m[6]:m[7]]), month, atoi(text[m[2]:m[3]]))
		}
	}

	if best == nil {
		return time.Time{}, false
	}
	return best.date, true
}

func makeDate(year, month, day int) (time.Time, bool) {
	if year < minDocYear || year > maxDocYear || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
