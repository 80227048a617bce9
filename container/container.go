package container

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"openwork-backend/config"
	"openwork-backend/core/conversation"
	"openwork-backend/handlers"
	"openwork-backend/ipfs"
	"openwork-backend/metrics"
	"openwork-backend/services"
	storage "openwork-backend/storage/conversation"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config

	// Infrastructure
	Store    storage.Store
	JobCache *storage.JobCache
	IPFS     *ipfs.Client
	Keys     *conversation.SessionKeyStore
	Metrics  *metrics.Metrics

	// Services
	ConversationService *services.ConversationService
	QRCodeService       *services.QRCodeService

	// Handlers
	HealthHandler *handlers.HealthHandler
	JobHandler    *handlers.JobHandler
	UserHandler   *handlers.UserHandler
	QRCodeHandler *handlers.QRCodeHandler
}

// NewContainer creates a new dependency container. tx is the contract
// transaction submitter; keys is shared with whatever establishes session
// keys for this process.
func NewContainer(ctx context.Context, cfg *config.Config, keys *conversation.SessionKeyStore, tx services.TxSubmitter, reg prometheus.Registerer) (*Container, error) {
	var store storage.Store
	var err error
	switch cfg.StoreDriver {
	case "postgres":
		store, err = storage.NewPGStore(ctx, cfg.DatabaseURL, cfg.SeedFixtures)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	default:
		if cfg.SeedFixtures {
			store = storage.NewSeededMemoryStore()
		} else {
			store = storage.NewMemoryStore()
		}
	}

	var cache *storage.JobCache
	if cfg.RedisAddr != "" {
		cache = storage.NewJobCache(cfg.RedisAddr, cfg.JobCacheTTL)
	}

	ipfsClient := ipfs.NewClient(cfg.IPFSAPIURL, cfg.IPFSTimeout)
	if keys == nil {
		keys = conversation.NewSessionKeyStore(nil)
	}

	recorder := metrics.New(reg)
	conversationService := services.NewConversationService(store, cache, ipfsClient, keys, tx)
	conversationService.SetStats(recorder)
	qrService := services.NewQRCodeService(cfg.LinkBase)

	return &Container{
		Config: cfg,

		Store:    store,
		JobCache: cache,
		IPFS:     ipfsClient,
		Keys:     keys,
		Metrics:  recorder,

		ConversationService: conversationService,
		QRCodeService:       qrService,

		HealthHandler: handlers.NewHealthHandler(),
		JobHandler:    handlers.NewJobHandler(conversationService),
		UserHandler:   handlers.NewUserHandler(store),
		QRCodeHandler: handlers.NewQRCodeHandler(qrService),
	}, nil
}

// Close releases the container's infrastructure handles.
func (c *Container) Close() {
	if c.JobCache != nil {
		c.JobCache.Close()
	}
	if c.Store != nil {
		c.Store.Close()
	}
}
