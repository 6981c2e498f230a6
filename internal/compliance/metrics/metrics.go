// Package metrics 收集合规检索服务的业务指标，并导出 Prometheus 文本格式。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics 业务指标。每个 Service 持有一个实例，没有全局状态。
type Metrics struct {
	// 查询指标
	queriesTotal       atomic.Uint64
	queriesCacheHits   atomic.Uint64
	queriesCacheMisses atomic.Uint64
	queriesErrors      atomic.Uint64
	queriesNoEvidence  atomic.Uint64
	queriesTruncated   atomic.Uint64
	synthesisDegraded  atomic.Uint64

	// 检索指标
	retrievalTotal  atomic.Uint64
	retrievalErrors atomic.Uint64

	// LLM 调用指标
	llmCallsTotal       atomic.Uint64
	llmCallsErrors      atomic.Uint64
	llmTokensPrompt     atomic.Uint64
	llmTokensCompletion atomic.Uint64

	// 摄取指标
	documentsIngested atomic.Uint64
	documentsFailed   atomic.Uint64
	chunksIndexed     atomic.Uint64
	chunksFailed      atomic.Uint64
	batchesFailed     atomic.Uint64

	conflictsDetected atomic.Uint64

	durationMu        sync.Mutex
	retrievalDuration float64
	llmDuration       float64
	startTime         time.Time
}

// New 创建指标实例。
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordQuery 记录一次查询的结果。
func (m *Metrics) RecordQuery(cacheHit bool, err error) {
	m.queriesTotal.Add(1)
	if err != nil {
		m.queriesErrors.Add(1)
		return
	}
	if cacheHit {
		m.queriesCacheHits.Add(1)
	} else {
		m.queriesCacheMisses.Add(1)
	}
}

// RecordResponse 记录响应状态。
func (m *Metrics) RecordResponse(noEvidence, truncated, degraded bool) {
	if noEvidence {
		m.queriesNoEvidence.Add(1)
	}
	if truncated {
		m.queriesTruncated.Add(1)
	}
	if degraded {
		m.synthesisDegraded.Add(1)
	}
}

// RecordRetrieval 记录检索操作。
func (m *Metrics) RecordRetrieval(duration time.Duration, err error) {
	m.retrievalTotal.Add(1)
	if err != nil {
		m.retrievalErrors.Add(1)
		return
	}
	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMCall 记录 LLM 调用。
func (m *Metrics) RecordLLMCall(duration time.Duration, promptTokens, completionTokens int, err error) {
	m.llmCallsTotal.Add(1)
	if err != nil {
		m.llmCallsErrors.Add(1)
		return
	}

	m.durationMu.Lock()
	m.llmDuration += duration.Seconds()
	m.durationMu.Unlock()

	if promptTokens > 0 {
		m.llmTokensPrompt.Add(uint64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensCompletion.Add(uint64(completionTokens))
	}
}

// RecordDocument 记录单个文档的摄取结果。
func (m *Metrics) RecordDocument(indexedChunks, failedChunks, failedBatches int, err error) {
	if err != nil {
		m.documentsFailed.Add(1)
	} else {
		m.documentsIngested.Add(1)
	}
	m.chunksIndexed.Add(uint64(indexedChunks))
	m.chunksFailed.Add(uint64(failedChunks))
	m.batchesFailed.Add(uint64(failedBatches))
}

// RecordConflicts 记录检测出的冲突数。
func (m *Metrics) RecordConflicts(n int) {
	if n > 0 {
		m.conflictsDetected.Add(uint64(n))
	}
}

type sample struct {
	name, help, kind string
	value            string
}

func (m *Metrics) samples() []sample {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmDuration
	m.durationMu.Unlock()

	counter := func(name, help string, v uint64) sample {
		return sample{name: name, help: help, kind: "counter", value: fmt.Sprintf("%d", v)}
	}
	return []sample{
		counter("queries_total", "Total number of compliance queries.", m.queriesTotal.Load()),
		counter("queries_cache_hits_total", "Number of query cache hits.", m.queriesCacheHits.Load()),
		counter("queries_cache_misses_total", "Number of query cache misses.", m.queriesCacheMisses.Load()),
		counter("queries_errors_total", "Number of failed queries.", m.queriesErrors.Load()),
		counter("queries_no_evidence_total", "Queries answered without evidence.", m.queriesNoEvidence.Load()),
		counter("queries_truncated_total", "Queries that returned fewer results than requested.", m.queriesTruncated.Load()),
		counter("synthesis_degraded_total", "Responses served with the fallback answer.", m.synthesisDegraded.Load()),
		counter("retrieval_total", "Total number of retrievals.", m.retrievalTotal.Load()),
		counter("retrieval_errors_total", "Number of retrieval errors.", m.retrievalErrors.Load()),
		{name: "retrieval_duration_seconds_total", help: "Total retrieval duration.", kind: "counter", value: fmt.Sprintf("%.6f", retrievalDuration)},
		counter("llm_calls_total", "Total number of LLM calls.", m.llmCallsTotal.Load()),
		counter("llm_calls_errors_total", "Number of LLM call errors.", m.llmCallsErrors.Load()),
		{name: "llm_calls_duration_seconds_total", help: "Total LLM call duration.", kind: "counter", value: fmt.Sprintf("%.6f", llmDuration)},
		counter("llm_tokens_prompt_total", "Total prompt tokens.", m.llmTokensPrompt.Load()),
		counter("llm_tokens_completion_total", "Total completion tokens.", m.llmTokensCompletion.Load()),
		counter("documents_ingested_total", "Documents ingested.", m.documentsIngested.Load()),
		counter("documents_failed_total", "Documents that failed ingestion.", m.documentsFailed.Load()),
		counter("chunks_indexed_total", "Chunks upserted into the vector store.", m.chunksIndexed.Load()),
		counter("chunks_failed_total", "Chunks whose batch failed.", m.chunksFailed.Load()),
		counter("batches_failed_total", "Embedding batches that failed.", m.batchesFailed.Load()),
		counter("conflicts_detected_total", "Cross-jurisdiction conflicts detected.", m.conflictsDetected.Load()),
		{name: "uptime_seconds", help: "Service uptime in seconds.", kind: "gauge", value: fmt.Sprintf("%.2f", time.Since(m.startTime).Seconds())},
	}
}

// Export 导出 Prometheus 文本格式。
func (m *Metrics) Export(namespace, subsystem string) string {
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	var sb strings.Builder
	for _, s := range m.samples() {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n", prefix, s.name, s.help)
		fmt.Fprintf(&sb, "# TYPE %s_%s %s\n", prefix, s.name, s.kind)
		fmt.Fprintf(&sb, "%s_%s %s\n\n", prefix, s.name, s.value)
	}
	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *Metrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmDuration
	m.durationMu.Unlock()

	hits, misses := m.queriesCacheHits.Load(), m.queriesCacheMisses.Load()
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}
	avg := func(total float64, n uint64) float64 {
		if n == 0 {
			return 0
		}
		return total / float64(n)
	}

	return map[string]interface{}{
		"queries": map[string]interface{}{
			"total":              m.queriesTotal.Load(),
			"cache_hits":         hits,
			"cache_misses":       misses,
			"cache_hit_rate":     hitRate,
			"errors":             m.queriesErrors.Load(),
			"no_evidence":        m.queriesNoEvidence.Load(),
			"truncated":          m.queriesTruncated.Load(),
			"synthesis_degraded": m.synthesisDegraded.Load(),
		},
		"retrieval": map[string]interface{}{
			"total":             m.retrievalTotal.Load(),
			"avg_duration_secs": avg(retrievalDuration, m.retrievalTotal.Load()-m.retrievalErrors.Load()),
			"errors":            m.retrievalErrors.Load(),
		},
		"llm": map[string]interface{}{
			"calls_total":       m.llmCallsTotal.Load(),
			"avg_duration_secs": avg(llmDuration, m.llmCallsTotal.Load()-m.llmCallsErrors.Load()),
			"errors":            m.llmCallsErrors.Load(),
			"tokens_prompt":     m.llmTokensPrompt.Load(),
			"tokens_completion": m.llmTokensCompletion.Load(),
		},
		"ingestion": map[string]interface{}{
			"documents_ingested": m.documentsIngested.Load(),
			"documents_failed":   m.documentsFailed.Load(),
			"chunks_indexed":     m.chunksIndexed.Load(),
			"chunks_failed":      m.chunksFailed.Load(),
			"batches_failed":     m.batchesFailed.Load(),
		},
		"conflicts_detected": m.conflictsDetected.Load(),
		"uptime_seconds":     time.Since(m.startTime).Seconds(),
	}
}
