package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRAGConfigDefaults(t *testing.T) {
	c := (&RAGConfig{}).WithDefaults()
	assert.Equal(t, 500, c.ChunkSize)
	assert.Equal(t, 10, c.SearchTopK)
	assert.Equal(t, 5, c.BackendTopN)
	assert.Equal(t, VectorModeMilvus, c.VectorMode)
	assert.Equal(t, "ik_smart", c.Analyzer)
}

func TestRAGConfigValidateOverlap(t *testing.T) {
	c := &RAGConfig{ChunkSize: 100, OverlapSize: 100}
	assert.Error(t, c.Validate())

	c.OverlapSize = 20
	assert.NoError(t, c.Validate())
}

func TestContentMaxLengthCapped(t *testing.T) {
	c := &RAGConfig{ChunkSize: 500, OverlapSize: 100}
	assert.Equal(t, 2912, c.ContentMaxLength())

	c.ChunkSize = 100000
	assert.Equal(t, 65535, c.ContentMaxLength())
}

func TestAgentConfigDefaults(t *testing.T) {
	c := (&AgentConfig{}).WithDefaults()
	assert.Equal(t, 12, c.MaxSteps)
	assert.Equal(t, 300*time.Second, c.TurnTimeout)
	assert.Equal(t, 10*time.Second, c.MCPProbeTimeout)
}

func TestEmbeddingConfigDefaults(t *testing.T) {
	c := &EmbeddingConfig{}
	assert.Equal(t, 10, c.GetBatchSize())
	assert.Equal(t, 5, c.GetConcurrency())
	assert.Equal(t, ProviderOpenAI, c.GetProvider())
}
