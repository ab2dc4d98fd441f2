package config

import (
	"os"
	"strconv"
	"strings"
)

// RAGConfig carries the retrieval settings forwarded to the rag worker.
// The engine does not embed or chunk anything itself; these values travel as
// call parameters so the worker behaves consistently across deployments.
type RAGConfig struct {
	Enabled             bool
	EmbeddingModel      string
	VectorStoreType     string
	TopKResults         int
	SimilarityThreshold float64
	ChunkSize           int
	ChunkOverlap        int
	ChromaPersistDir    string
	CollectionName      string
	SupportedFileTypes  []string
}

// RAGFromEnv reads the RAG_* variables, applying defaults for unset values.
func RAGFromEnv() *RAGConfig {
	cfg := &RAGConfig{
		Enabled:             boolEnv("RAG_ENABLED", true),
		EmbeddingModel:      getEnvOrDefault("RAG_EMBEDDING_MODEL", DefaultRAGEmbeddingModel),
		VectorStoreType:     getEnvOrDefault("RAG_VECTOR_STORE_TYPE", DefaultRAGVectorStoreType),
		TopKResults:         intEnv("RAG_TOP_K_RESULTS", DefaultRAGTopKResults),
		SimilarityThreshold: floatEnv("RAG_SIMILARITY_THRESHOLD", DefaultRAGSimilarityThreshold),
		ChunkSize:           intEnv("RAG_CHUNK_SIZE", DefaultRAGChunkSize),
		ChunkOverlap:        intEnv("RAG_CHUNK_OVERLAP", DefaultRAGChunkOverlap),
		ChromaPersistDir:    getEnvOrDefault("RAG_CHROMA_PERSIST_DIR", DefaultRAGChromaPersistDir),
		CollectionName:      getEnvOrDefault("RAG_COLLECTION_NAME", DefaultRAGCollectionName),
		SupportedFileTypes:  DefaultRAGFileTypes,
	}

	if raw := os.Getenv("RAG_SUPPORTED_FILE_TYPES"); raw != "" {
		var types []string
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
		if len(types) > 0 {
			cfg.SupportedFileTypes = types
		}
	}

	return cfg
}

// Params renders the settings the rag worker expects with each query call.
func (c *RAGConfig) Params() map[string]any {
	return map[string]any{
		"embedding_model":      c.EmbeddingModel,
		"vector_store_type":    c.VectorStoreType,
		"top_k_results":        c.TopKResults,
		"similarity_threshold": c.SimilarityThreshold,
		"collection_name":      c.CollectionName,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func boolEnv(key string, defaultVal bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func intEnv(key string, defaultVal int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func floatEnv(key string, defaultVal float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultVal
	}
	return parsed
}
