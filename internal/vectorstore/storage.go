package vectorstore

import (
	"time"

	"kbchat/internal/config"
	"kbchat/internal/domain"
	"kbchat/internal/kberr"
	"kbchat/internal/vectorstore/memory"
	"kbchat/internal/vectorstore/qdrant"
)

// Storage persists vectors and supports threshold-filtered similarity
// search. See domain.Storage for the contract.
type Storage = domain.Storage

// New builds the storage backend for the configured vectorstore type.
func New(cfg config.VectorstoreConfig) (Storage, error) {
	switch cfg.Type {
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Collection: cfg.CollectionName,
			Timeout:    timeout(cfg.TimeoutSecs),
		}), nil
	case "memory":
		return memory.NewStorage(), nil
	default:
		return nil, kberr.Config("vectorstore", "unknown type %q", cfg.Type)
	}
}

func timeout(secs int) time.Duration {
	if secs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(secs) * time.Second
}
