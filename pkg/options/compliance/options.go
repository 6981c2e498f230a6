// Package compliance provides options for the retrieval and synthesis pipeline.
package compliance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 向量库后端。
const (
	StoreMemory   = "memory"
	StoreMilvus   = "milvus"
	StorePgVector = "pgvector"
)

// ChunkerOptions 分块配置。
type ChunkerOptions struct {
	MaxChunkSize int `json:"max-chunk-size" mapstructure:"max-chunk-size" validate:"gt=0"`
	OverlapSize  int `json:"overlap-size" mapstructure:"overlap-size" validate:"gte=0,ltfield=MaxChunkSize"`
	// StrictSentences 为 true 时超长句子按空白再切分，否则整句溢出输出。
	StrictSentences bool `json:"strict-sentences" mapstructure:"strict-sentences"`
}

// RetrieverOptions 检索配置。
type RetrieverOptions struct {
	TopK      int           `json:"top-k" mapstructure:"top-k" validate:"gt=0,lte=100"`
	MinScore  float64       `json:"min-score" mapstructure:"min-score" validate:"gte=0,lte=1"`
	OverFetch int           `json:"over-fetch" mapstructure:"over-fetch" validate:"gte=1,lte=10"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

// SynthesizerOptions 答案合成配置。
type SynthesizerOptions struct {
	ExcerptChars   int           `json:"excerpt-chars" mapstructure:"excerpt-chars" validate:"gte=50"`
	LLMTimeout     time.Duration `json:"llm-timeout" mapstructure:"llm-timeout" validate:"gt=0"`
	CoverageTarget int           `json:"coverage-target" mapstructure:"coverage-target" validate:"gt=0"`
}

// IndexerOptions 批量索引配置。
type IndexerOptions struct {
	BatchSize      int           `json:"batch-size" mapstructure:"batch-size" validate:"gt=0"`
	MaxConcurrency int           `json:"max-concurrency" mapstructure:"max-concurrency" validate:"gt=0"`
	EmbedTimeout   time.Duration `json:"embed-timeout" mapstructure:"embed-timeout" validate:"gt=0"`
	StoreTimeout   time.Duration `json:"store-timeout" mapstructure:"store-timeout" validate:"gt=0"`
}

// AnalyzerOptions 跨辖区分析配置。
type AnalyzerOptions struct {
	// DescribeWithLLM 是否让 LLM 润色冲突描述，关闭时只用模板。
	DescribeWithLLM bool          `json:"describe-with-llm" mapstructure:"describe-with-llm"`
	LLMTimeout      time.Duration `json:"llm-timeout" mapstructure:"llm-timeout" validate:"gt=0"`
	// Eras 形如 name:from..to 的时代区间，端点可省略。为空时使用分类表中的默认值。
	Eras []string `json:"eras" mapstructure:"eras"`
}

// Options 合规检索流水线配置。
type Options struct {
	VectorStore     string `json:"vector-store" mapstructure:"vector-store" validate:"oneof=memory milvus pgvector"`
	EmbeddingDim    int    `json:"embedding-dim" mapstructure:"embedding-dim" validate:"gt=0"`
	DefaultLanguage string `json:"default-language" mapstructure:"default-language" validate:"oneof=en pt"`
	TaxonomyFile    string `json:"taxonomy-file" mapstructure:"taxonomy-file"`
	IngestWorkers   int    `json:"ingest-workers" mapstructure:"ingest-workers" validate:"gt=0"`
	// SampleChars 语言检测采样的字符数。
	SampleChars int `json:"sample-chars" mapstructure:"sample-chars" validate:"gt=0"`
	// MinDetectWords 少于该词数时回退到默认语言。
	MinDetectWords int `json:"min-detect-words" mapstructure:"min-detect-words" validate:"gte=0"`

	Chunker     *ChunkerOptions     `json:"chunker" mapstructure:"chunker" validate:"required"`
	Retriever   *RetrieverOptions   `json:"retriever" mapstructure:"retriever" validate:"required"`
	Synthesizer *SynthesizerOptions `json:"synthesizer" mapstructure:"synthesizer" validate:"required"`
	Indexer     *IndexerOptions     `json:"indexer" mapstructure:"indexer" validate:"required"`
	Analyzer    *AnalyzerOptions    `json:"analyzer" mapstructure:"analyzer" validate:"required"`
}

// NewOptions creates options with defaults.
func NewOptions() *Options {
	return &Options{
		VectorStore:     StoreMemory,
		EmbeddingDim:    768,
		DefaultLanguage: string(model.LanguageEN),
		IngestWorkers:   4,
		SampleChars:     2000,
		MinDetectWords:  50,
		Chunker: &ChunkerOptions{
			MaxChunkSize: 400,
			OverlapSize:  50,
		},
		Retriever: &RetrieverOptions{
			TopK:      8,
			MinScore:  0.35,
			OverFetch: 2,
			Timeout:   30 * time.Second,
		},
		Synthesizer: &SynthesizerOptions{
			ExcerptChars:   500,
			LLMTimeout:     60 * time.Second,
			CoverageTarget: 5,
		},
		Indexer: &IndexerOptions{
			BatchSize:      16,
			MaxConcurrency: 4,
			EmbedTimeout:   30 * time.Second,
			StoreTimeout:   30 * time.Second,
		},
		Analyzer: &AnalyzerOptions{
			DescribeWithLLM: true,
			LLMTimeout:      30 * time.Second,
		},
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "compliance."
	fs.StringVar(&o.VectorStore, p+"vector-store", o.VectorStore, "Vector store backend (memory, milvus, pgvector).")
	fs.IntVar(&o.EmbeddingDim, p+"embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.StringVar(&o.DefaultLanguage, p+"default-language", o.DefaultLanguage, "Language used when detection has too little text (en, pt).")
	fs.StringVar(&o.TaxonomyFile, p+"taxonomy-file", o.TaxonomyFile, "YAML file with jurisdictions, topics and language profiles. Empty uses the built-in taxonomy.")
	fs.IntVar(&o.IngestWorkers, p+"ingest-workers", o.IngestWorkers, "Documents processed in parallel during ingestion.")
	fs.IntVar(&o.SampleChars, p+"sample-chars", o.SampleChars, "Characters sampled for language detection.")
	fs.IntVar(&o.MinDetectWords, p+"min-detect-words", o.MinDetectWords, "Minimum sampled words before language detection is trusted.")

	fs.IntVar(&o.Chunker.MaxChunkSize, p+"chunker.max-chunk-size", o.Chunker.MaxChunkSize, "Maximum tokens per chunk.")
	fs.IntVar(&o.Chunker.OverlapSize, p+"chunker.overlap-size", o.Chunker.OverlapSize, "Tokens repeated from the previous chunk.")
	fs.BoolVar(&o.Chunker.StrictSentences, p+"chunker.strict-sentences", o.Chunker.StrictSentences, "Split oversized sentences on whitespace instead of emitting them whole.")

	fs.IntVar(&o.Retriever.TopK, p+"retriever.top-k", o.Retriever.TopK, "Default number of evidence chunks per query.")
	fs.Float64Var(&o.Retriever.MinScore, p+"retriever.min-score", o.Retriever.MinScore, "Similarity floor in [0,1].")
	fs.IntVar(&o.Retriever.OverFetch, p+"retriever.over-fetch", o.Retriever.OverFetch, "Candidate multiplier requested from the vector store.")
	fs.DurationVar(&o.Retriever.Timeout, p+"retriever.timeout", o.Retriever.Timeout, "Timeout for query embedding and vector search.")

	fs.IntVar(&o.Synthesizer.ExcerptChars, p+"synthesizer.excerpt-chars", o.Synthesizer.ExcerptChars, "Maximum citation excerpt length in characters.")
	fs.DurationVar(&o.Synthesizer.LLMTimeout, p+"synthesizer.llm-timeout", o.Synthesizer.LLMTimeout, "Timeout per synthesis LLM call.")
	fs.IntVar(&o.Synthesizer.CoverageTarget, p+"synthesizer.coverage-target", o.Synthesizer.CoverageTarget, "Evidence count for full coverage in the confidence score.")

	fs.IntVar(&o.Indexer.BatchSize, p+"indexer.batch-size", o.Indexer.BatchSize, "Chunks per embedding batch.")
	fs.IntVar(&o.Indexer.MaxConcurrency, p+"indexer.max-concurrency", o.Indexer.MaxConcurrency, "Embedding batches in flight.")
	fs.DurationVar(&o.Indexer.EmbedTimeout, p+"indexer.embed-timeout", o.Indexer.EmbedTimeout, "Timeout per embedding call.")
	fs.DurationVar(&o.Indexer.StoreTimeout, p+"indexer.store-timeout", o.Indexer.StoreTimeout, "Timeout per vector store upsert.")

	fs.BoolVar(&o.Analyzer.DescribeWithLLM, p+"analyzer.describe-with-llm", o.Analyzer.DescribeWithLLM, "Phrase conflict descriptions with the chat model.")
	fs.DurationVar(&o.Analyzer.LLMTimeout, p+"analyzer.llm-timeout", o.Analyzer.LLMTimeout, "Timeout per conflict description call.")
	fs.StringSliceVar(&o.Analyzer.Eras, p+"analyzer.eras", o.Analyzer.Eras, "Regulatory eras as name:from..to, e.g. pre-2015:..2014.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if err := validator.New().Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("compliance.%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}
	if _, err := ParseEras(o.Analyzer.Eras); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*target = v
	}
	return ok
}

// ParseEras 解析 name:from..to 形式的时代区间。
func ParseEras(specs []string) ([]model.Era, error) {
	eras := make([]model.Era, 0, len(specs))
	for _, s := range specs {
		name, rng, ok := strings.Cut(s, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("compliance.analyzer.eras: %q must be name:from..to", s)
		}
		from, to, ok := strings.Cut(rng, "..")
		if !ok {
			return nil, fmt.Errorf("compliance.analyzer.eras: %q has no '..' range", s)
		}
		era := model.Era{Name: name}
		var err error
		if from != "" {
			if era.FromYear, err = strconv.Atoi(from); err != nil {
				return nil, fmt.Errorf("compliance.analyzer.eras: %q: %w", s, err)
			}
		}
		if to != "" {
			if era.ToYear, err = strconv.Atoi(to); err != nil {
				return nil, fmt.Errorf("compliance.analyzer.eras: %q: %w", s, err)
			}
		}
		if era.FromYear != 0 && era.ToYear != 0 && era.FromYear > era.ToYear {
			return nil, fmt.Errorf("compliance.analyzer.eras: %q has from after to", s)
		}
		eras = append(eras, era)
	}
	return eras, nil
}
