package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/kyohei-s/kiroku/pkg/adapter"
	"github.com/kyohei-s/kiroku/pkg/itemstore"
	"github.com/kyohei-s/kiroku/pkg/repository"
	"github.com/kyohei-s/kiroku/pkg/service/answer"
	"github.com/kyohei-s/kiroku/pkg/service/embedding"
	"github.com/kyohei-s/kiroku/pkg/usecase/query"
	"github.com/kyohei-s/kiroku/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values shared across commands
type config struct {
	logLevel string
	dataDir  string

	// Gemini / embeddings
	geminiAPIKey         string
	geminiChatModel      string
	geminiEmbeddingModel string
	embeddingsProvider   string
	batchSize            int64
	spacingMs            int64

	// Vector index
	chromaURL        string
	chromaCollection string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Directory for the journal database and item file",
			Value:       "data",
			Sources:     cli.EnvVars("DATA_DIR"),
			Destination: &cfg.dataDir,
		},
	}
}

// geminiFlags returns flags for provider configuration with destination config
func geminiFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-chat-model",
			Usage:       "Gemini model for answer synthesis",
			Value:       "gemini-1.5-flash",
			Sources:     cli.EnvVars("GEMINI_CHAT_MODEL"),
			Destination: &cfg.geminiChatModel,
		},
		&cli.StringFlag{
			Name:        "gemini-embedding-model",
			Usage:       "Gemini model for embeddings",
			Value:       "text-embedding-004",
			Sources:     cli.EnvVars("GEMINI_EMBEDDING_MODEL"),
			Destination: &cfg.geminiEmbeddingModel,
		},
		&cli.StringFlag{
			Name:        "embeddings-provider",
			Usage:       "Embedding strategy: gemini or localhash",
			Value:       "gemini",
			Sources:     cli.EnvVars("EMBEDDINGS_PROVIDER"),
			Destination: &cfg.embeddingsProvider,
		},
		&cli.IntFlag{
			Name:        "embeddings-batch-size",
			Usage:       "Documents per embedding sub-batch",
			Value:       8,
			Sources:     cli.EnvVars("EMBEDDINGS_BATCH_SIZE"),
			Destination: &cfg.batchSize,
		},
		&cli.IntFlag{
			Name:        "request-spacing-ms",
			Usage:       "Delay between remote calls in milliseconds",
			Value:       0,
			Sources:     cli.EnvVars("REQUEST_SPACING_MS"),
			Destination: &cfg.spacingMs,
		},
	}
}

// chromaFlags returns flags for the external vector index
func chromaFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "chroma-url",
			Usage:       "Chroma server URL",
			Value:       "http://localhost:8000",
			Sources:     cli.EnvVars("CHROMA_URL"),
			Destination: &cfg.chromaURL,
		},
		&cli.StringFlag{
			Name:        "chroma-collection",
			Usage:       "Chroma collection name",
			Value:       "kiroku",
			Sources:     cli.EnvVars("CHROMA_COLLECTION"),
			Destination: &cfg.chromaCollection,
		},
	}
}

// loggerContext attaches a logger built from --log-level to the context
func (cfg *config) loggerContext(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newRepository opens the journal database under the data directory
func (cfg *config) newRepository() (repository.Repository, error) {
	repo, err := repository.NewSQLite(filepath.Join(cfg.dataDir, "journal.sqlite"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open journal database")
	}
	return repo, nil
}

// newItemStore opens the catalog item collection
func (cfg *config) newItemStore() *itemstore.Store {
	return itemstore.New(filepath.Join(cfg.dataDir, "rag", "items.json"))
}

// newGemini creates the Gemini adapter. It fails when no API key is set.
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	return adapter.NewGemini(ctx, cfg.geminiAPIKey, adapter.WithChatModel(cfg.geminiChatModel))
}

// newGateway builds the embedding gateway. The provider is chosen once here:
// localhash when configured, Gemini when an API key is present, otherwise a
// disabled gateway that yields no vectors.
func (cfg *config) newGateway(ctx context.Context) (*embedding.Gateway, error) {
	batchOpt := embedding.WithBatchSize(int(cfg.batchSize))

	switch cfg.embeddingsProvider {
	case "local", "localhash":
		return embedding.NewGateway(embedding.NewLocalHash(), batchOpt), nil

	case "gemini", "google", "google-genai":
		if cfg.geminiAPIKey == "" {
			return embedding.NewGateway(nil, batchOpt), nil
		}
		client, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		provider := embedding.NewGemini(client, cfg.geminiEmbeddingModel,
			embedding.WithSpacing(time.Duration(cfg.spacingMs)*time.Millisecond))
		return embedding.NewGateway(provider, batchOpt), nil

	default:
		return nil, goerr.New("unsupported embeddings provider",
			goerr.V("provider", cfg.embeddingsProvider))
	}
}

// newSynthesizer returns the answer synthesizer, or nil when no API key is
// configured; callers then fall back to deterministic summaries.
func (cfg *config) newSynthesizer(ctx context.Context) (query.Synthesizer, error) {
	if cfg.geminiAPIKey == "" {
		return nil, nil
	}
	client, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}
	return answer.NewGemini(client), nil
}

// newIndex creates the external vector index client
func (cfg *config) newIndex() adapter.VectorIndex {
	return adapter.NewChroma(cfg.chromaURL, cfg.chromaCollection)
}
