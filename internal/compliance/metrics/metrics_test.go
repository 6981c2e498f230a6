package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordAndStats(t *testing.T) {
	m := New()
	m.RecordQuery(true, nil)
	m.RecordQuery(false, nil)
	m.RecordQuery(false, errors.New("boom"))
	m.RecordResponse(true, true, false)
	m.RecordRetrieval(200*time.Millisecond, nil)
	m.RecordLLMCall(time.Second, 100, 20, nil)
	m.RecordLLMCall(time.Second, 0, 0, errors.New("timeout"))
	m.RecordDocument(10, 2, 1, nil)
	m.RecordDocument(0, 0, 0, errors.New("empty"))
	m.RecordConflicts(3)

	stats := m.Stats()
	queries := stats["queries"].(map[string]interface{})
	assert.Equal(t, uint64(3), queries["total"])
	assert.Equal(t, uint64(1), queries["cache_hits"])
	assert.Equal(t, 0.5, queries["cache_hit_rate"])
	assert.Equal(t, uint64(1), queries["no_evidence"])

	llm := stats["llm"].(map[string]interface{})
	assert.Equal(t, uint64(2), llm["calls_total"])
	assert.Equal(t, uint64(100), llm["tokens_prompt"])
	assert.InDelta(t, 1.0, llm["avg_duration_secs"], 1e-9)

	ingestion := stats["ingestion"].(map[string]interface{})
	assert.Equal(t, uint64(1), ingestion["documents_ingested"])
	assert.Equal(t, uint64(1), ingestion["documents_failed"])
	assert.Equal(t, uint64(10), ingestion["chunks_indexed"])
	assert.Equal(t, uint64(3), stats["conflicts_detected"])
}

func TestExportPrometheusText(t *testing.T) {
	m := New()
	m.RecordQuery(false, nil)

	out := m.Export("regrag", "compliance")
	assert.Contains(t, out, "# TYPE regrag_compliance_queries_total counter\n")
	assert.Contains(t, out, "regrag_compliance_queries_total 1\n")
	assert.Contains(t, out, "# TYPE regrag_compliance_uptime_seconds gauge\n")
	assert.True(t, strings.HasSuffix(out, "\n\n"))
}
