// Package taxonomy 定义辖区关键词表、主题分类和语言画像。
//
// Taxonomy 在启动时加载一次，此后只读，通过指针传给各个组件。
// 扩展辖区或主题是数据变更 (修改 YAML)，不需要改代码。
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/textutil"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
)

//go:embed default_taxonomy.yaml
var defaultTaxonomyYAML []byte

// JurisdictionRule 文件名关键词到辖区的映射。
type JurisdictionRule struct {
	Jurisdiction model.Jurisdiction `yaml:"jurisdiction" validate:"required,oneof=US EU BR"`
	Keywords     []string           `yaml:"keywords" validate:"required,min=1,dive,required"`
}

// Procedure 主题下的一个必需流程概念，关键词可跨语言。
type Procedure struct {
	ID       string   `yaml:"id" validate:"required"`
	Keywords []string `yaml:"keywords" validate:"required,min=1,dive,required"`
}

// Topic 主题分类中的一个标签。
type Topic struct {
	ID         string      `yaml:"id" validate:"required"`
	Label      string      `yaml:"label" validate:"required"`
	Keywords   []string    `yaml:"keywords" validate:"required,min=1,dive,required"`
	Procedures []Procedure `yaml:"procedures" validate:"dive"`
}

// LanguageProfile 语言画像。整条流水线只按画像参数化，不为每种语言复制分支。
type LanguageProfile struct {
	Language          model.Language `yaml:"language" validate:"required"`
	Stopwords         []string       `yaml:"stopwords" validate:"required,min=5"`
	RequirementCues   []string       `yaml:"requirement_cues" validate:"required,min=1"`
	DefinitionCues    []string       `yaml:"definition_cues" validate:"required,min=1"`
	Months            map[string]int `yaml:"months" validate:"required,len=12"`
	AnswerInstruction string         `yaml:"answer_instruction" validate:"required"`
	NoEvidenceAnswer  string         `yaml:"no_evidence_answer" validate:"required"`
	FallbackAnswer    string         `yaml:"fallback_answer" validate:"required"`

	stopwordSet map[string]struct{}
}

// IsStopword 判断折叠后的词是否为停用词。
func (p *LanguageProfile) IsStopword(word string) bool {
	_, ok := p.stopwordSet[word]
	return ok
}

// Taxonomy 不可变的分类配置。
type Taxonomy struct {
	DefaultLanguage       model.Language     `yaml:"default_language" validate:"required"`
	Jurisdictions         []JurisdictionRule `yaml:"jurisdictions" validate:"required,min=1,dive"`
	PrimarySourceKeywords []string           `yaml:"primary_source_keywords"`
	Eras                  []model.Era        `yaml:"eras" validate:"required,min=1,dive"`
	Topics                []Topic            `yaml:"topics" validate:"required,min=1,dive"`
	Languages             []LanguageProfile  `yaml:"languages" validate:"required,min=1,dive"`

	profiles map[model.Language]*LanguageProfile
	topics   map[string]*Topic
}

// Default 返回内置分类表。内置 YAML 无效属于构建缺陷，直接 panic。
func Default() *Taxonomy {
	t, err := Parse(defaultTaxonomyYAML)
	if err != nil {
		panic(fmt.Sprintf("taxonomy: invalid built-in taxonomy: %v", err))
	}
	return t
}

// Load 从 YAML 文件加载分类表；path 为空时返回内置分类表。
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ErrTaxonomyMissing.WithCause(err).WithMessagef("taxonomy file %s cannot be read", path)
	}
	return Parse(data)
}

// Parse 解析、校验并建立索引。
func Parse(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.ErrConfiguration.WithCause(err).WithMessage("taxonomy is not valid YAML")
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	t.index()
	return &t, nil
}

func (t *Taxonomy) validate() error {
	if len(t.Jurisdictions) == 0 || len(t.Topics) == 0 {
		return errors.ErrTaxonomyMissing.WithMessage("taxonomy must define jurisdictions and topics")
	}
	if err := validator.New().Struct(t); err != nil {
		return errors.ErrConfiguration.WithCause(err).WithMessage("taxonomy validation failed")
	}

	seen := make(map[string]bool)
	for _, tp := range t.Topics {
		if seen[tp.ID] {
			return errors.ErrConfiguration.WithMessagef("duplicate topic id %q", tp.ID)
		}
		seen[tp.ID] = true
	}

	hasDefault := false
	for _, p := range t.Languages {
		if p.Language == t.DefaultLanguage {
			hasDefault = true
		}
	}
	if !hasDefault {
		return errors.ErrConfiguration.WithMessagef("default language %q has no profile", t.DefaultLanguage)
	}
	return nil
}

// index 把所有关键词折叠一次，之后只读。
func (t *Taxonomy) index() {
	for i := range t.Jurisdictions {
		t.Jurisdictions[i].Keywords = foldAll(t.Jurisdictions[i].Keywords)
	}
	t.PrimarySourceKeywords = foldAll(t.PrimarySourceKeywords)

	t.topics = make(map[string]*Topic, len(t.Topics))
	for i := range t.Topics {
		tp := &t.Topics[i]
		tp.Keywords = foldAll(tp.Keywords)
		for j := range tp.Procedures {
			tp.Procedures[j].Keywords = foldAll(tp.Procedures[j].Keywords)
		}
		t.topics[tp.ID] = tp
	}

	t.profiles = make(map[model.Language]*LanguageProfile, len(t.Languages))
	for i := range t.Languages {
		p := &t.Languages[i]
		p.Stopwords = foldAll(p.Stopwords)
		p.RequirementCues = foldAll(p.RequirementCues)
		p.DefinitionCues = foldAll(p.DefinitionCues)
		months := make(map[string]int, len(p.Months))
		for name, m := range p.Months {
			months[textutil.Fold(name)] = m
		}
		p.Months = months
		p.stopwordSet = make(map[string]struct{}, len(p.Stopwords))
		for _, w := range p.Stopwords {
			p.stopwordSet[w] = struct{}{}
		}
		t.profiles[p.Language] = p
	}
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if f := strings.TrimSpace(textutil.Fold(s)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Profile 返回语言画像，未知语言回退到默认语言。
func (t *Taxonomy) Profile(lang model.Language) *LanguageProfile {
	if p, ok := t.profiles[lang]; ok {
		return p
	}
	return t.profiles[t.DefaultLanguage]
}

// Profiles 按配置顺序返回全部语言画像。
func (t *Taxonomy) Profiles() []*LanguageProfile {
	out := make([]*LanguageProfile, 0, len(t.Languages))
	for i := range t.Languages {
		out = append(out, &t.Languages[i])
	}
	return out
}

// Topic 按 ID 查找主题。
func (t *Taxonomy) Topic(id string) (*Topic, bool) {
	tp, ok := t.topics[id]
	return tp, ok
}

// MatchJurisdiction 根据文件名/路径 token 推断辖区。
// 命中关键词最多的规则胜出，平局取配置顺序靠前者；没有命中返回 unknown。
func (t *Taxonomy) MatchJurisdiction(sourceFilename string) model.Jurisdiction {
	folded := " " + strings.Join(textutil.Words(sourceFilename), " ") + " "

	best, bestHits := model.JurisdictionUnknown, 0
	for _, rule := range t.Jurisdictions {
		hits := 0
		for _, kw := range rule.Keywords {
			if textutil.ContainsPhrase(folded, strings.Join(textutil.Words(kw), " ")) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = rule.Jurisdiction, hits
		}
	}
	return best
}

// TopicsOf 返回文本命中的主题 ID，按配置顺序。
func (t *Taxonomy) TopicsOf(text string) []string {
	folded := textutil.Fold(text)
	var out []string
	for _, tp := range t.Topics {
		for _, kw := range tp.Keywords {
			if textutil.ContainsPhrase(folded, kw) {
				out = append(out, tp.ID)
				break
			}
		}
	}
	return out
}

// ProceduresOf 返回文本在指定主题下命中的流程概念 ID，已排序。
func (tp *Topic) ProceduresOf(text string) []string {
	folded := textutil.Fold(text)
	var out []string
	for _, pr := range tp.Procedures {
		for _, kw := range pr.Keywords {
			if textutil.ContainsPhrase(folded, kw) {
				out = append(out, pr.ID)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// IsPrimarySource 判断文件名是否指向一手法规文本。
func (t *Taxonomy) IsPrimarySource(sourceFilename string) bool {
	folded := " " + strings.Join(textutil.Words(sourceFilename), " ") + " "
	for _, kw := range t.PrimarySourceKeywords {
		if textutil.ContainsPhrase(folded, kw) {
			return true
		}
	}
	return false
}

// EraOf 返回年份所在的时代。
func (t *Taxonomy) EraOf(year int) (model.Era, bool) {
	for _, e := range t.Eras {
		if e.Contains(year) {
			return e, true
		}
	}
	return model.Era{}, false
}

// WithEras 返回替换时代区间后的副本，原对象不变。
func (t *Taxonomy) WithEras(eras []model.Era) *Taxonomy {
	if len(eras) == 0 {
		return t
	}
	c := *t
	c.Eras = append([]model.Era(nil), eras...)
	return &c
}
