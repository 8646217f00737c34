package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config gathers every tunable the two binaries read from the environment.
// Call Load after godotenv has populated the process environment.
type Config struct {
	ServerAddr string

	PGHost   string
	PGPort   int
	PGUser   string
	PGPass   string
	PGDBName string

	EmbedURL     string // empty selects the offline deterministic embedder
	EmbedModel   string
	EmbeddingDim int
	EmbedTimeout time.Duration
	EmbedBatch   int
	EmbedWorkers int

	LLMModel      string
	RerankModel   string
	RerankTimeout time.Duration
	AnswerTimeout time.Duration

	MaxContextChars int
	VectorK         int
	LexicalK        int
	TopK            int

	ChunkMaxChars int
	ChunkOverlap  int

	HeaderPhrases []string
	FooterPhrases []string

	UploadDir string
	BlobDir   string

	SourceDir      string
	ArchiveDir     string
	BadDir         string
	MonitoringTime time.Duration
}

// Boilerplate stripped from licensed PDFs by default; overridable through
// DOCUMENT_HEADERS / DOCUMENT_FOOTERS as pipe-separated phrase lists.
var defaultFooterPhrases = []string{
	"Authorized licensed use limited to:",
	"Downloaded on",
	"Restrictions apply.",
}

func Load() Config {
	llmModel := envStr("LLM_MODEL", "llama3.1")
	return Config{
		ServerAddr: envStr("SERVER_ADDR", ":8080"),

		PGHost:   envStr("PG_HOST", "localhost"),
		PGPort:   envInt("PG_PORT", 5432),
		PGUser:   envStr("PG_USER", "postgres"),
		PGPass:   envStr("PG_PASS", "postgres"),
		PGDBName: envStr("PG_DB_NAME", "docrag"),

		EmbedURL:     envStr("OLLAMA_EMBEDDING_URL", ""),
		EmbedModel:   envStr("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim: envInt("EMBEDDING_DIM", 1536),
		EmbedTimeout: envDur("EMBED_TIMEOUT", 30*time.Second),
		EmbedBatch:   envInt("EMBED_BATCH_SIZE", 64),
		EmbedWorkers: envInt("EMBED_WORKERS", 4),

		LLMModel:      llmModel,
		RerankModel:   envStr("RERANK_MODEL", llmModel),
		RerankTimeout: envDur("RERANK_TIMEOUT", 20*time.Second),
		AnswerTimeout: envDur("ANSWER_TIMEOUT", 60*time.Second),

		MaxContextChars: envInt("MAX_CONTEXT_CHARS", 8000),
		VectorK:         envInt("DEFAULT_VECTOR_K", 20),
		LexicalK:        envInt("DEFAULT_LEXICAL_K", 20),
		TopK:            envInt("DEFAULT_TOP_K", 10),

		ChunkMaxChars: envInt("CHUNK_MAX_CHARS", 1800),
		ChunkOverlap:  envInt("CHUNK_OVERLAP", 200),

		HeaderPhrases: envList("DOCUMENT_HEADERS", nil),
		FooterPhrases: envList("DOCUMENT_FOOTERS", defaultFooterPhrases),

		UploadDir: envStr("UPLOAD_DIR", "./data/uploads"),
		BlobDir:   envStr("BLOB_DIR", "./data/blobs"),

		SourceDir:      envStr("LOADER_SOURCE_DIR", "./data/inbox"),
		ArchiveDir:     envStr("LOADER_ARCHIVE_DIR", "./data/archive"),
		BadDir:         envStr("LOADER_BAD_DIR", "./data/bad"),
		MonitoringTime: envDur("LOADER_STABLE_AFTER", 5*time.Second),
	}
}

// PostgresDSN builds the keyword/value connection string for pgxpool.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.PGHost, c.PGPort, c.PGUser, c.PGPass, c.PGDBName)
}

// StripPhrases is the combined header and footer phrase list in match order.
func (c Config) StripPhrases() []string {
	out := make([]string, 0, len(c.HeaderPhrases)+len(c.FooterPhrases))
	out = append(out, c.HeaderPhrases...)
	out = append(out, c.FooterPhrases...)
	return out
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
