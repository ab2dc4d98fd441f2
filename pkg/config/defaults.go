package config

// System-wide defaults applied when the environment leaves a value unset.
const (
	// DefaultListenAddr is the HTTP API bind address
	DefaultListenAddr = ":8080"

	// DefaultLogLevel is the slog level name
	DefaultLogLevel = "info"

	// DefaultLLMModel is used when DEFAULT_LLM_MODEL is unset; paired with
	// the local Ollama provider so a bare environment still runs
	DefaultLLMModel = "llama3.1"

	// RAG retrieval defaults forwarded to the rag worker
	DefaultRAGEmbeddingModel      = "all-MiniLM-L6-v2"
	DefaultRAGVectorStoreType     = "chroma"
	DefaultRAGTopKResults         = 5
	DefaultRAGSimilarityThreshold = 0.7
	DefaultRAGChunkSize           = 1000
	DefaultRAGChunkOverlap        = 200
	DefaultRAGChromaPersistDir    = "./chroma_db"
	DefaultRAGCollectionName      = "documents"
)

// DefaultLLMProvider is the provider assumed for the DEFAULT role when the
// environment names none.
const DefaultLLMProvider = LLMProviderOllama

// DefaultRAGFileTypes lists the document extensions the rag worker ingests
// unless RAG_SUPPORTED_FILE_TYPES overrides them.
var DefaultRAGFileTypes = []string{".txt", ".md", ".pdf", ".docx"}
