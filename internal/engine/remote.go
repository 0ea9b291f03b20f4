package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/kevinye7/PokeHub/internal/auth"
	"github.com/kevinye7/PokeHub/internal/config"
	"github.com/kevinye7/PokeHub/internal/database"
	"github.com/kevinye7/PokeHub/internal/storage"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/postgrest-go"
	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

// Backend is the remote side of the engine.
type Backend struct {
	Store    database.Store
	Identity auth.Service
	Avatars  storage.AvatarStore
	// Postgres is set for the postgres backend, for migrations.
	Postgres *database.PostgresDB
}

// supabaseClient serializes token swaps on a shared supabase client.
// UpdateAuthSession rebuilds the storage client and rebinds the REST
// token, so readers take the read lock.
type supabaseClient struct {
	mu     sync.RWMutex
	client *supabase.Client
}

func (c *supabaseClient) From(table string) *postgrest.QueryBuilder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.From(table)
}

func (c *supabaseClient) UpdateAuthSession(session types.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client.UpdateAuthSession(session)
}

func (c *supabaseClient) Storage() *storage_go.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.Storage
}

// NewBackend builds the store, identity service and avatar store for the
// configured STORE_TYPE. The store is wrapped in a circuit breaker when
// enabled.
func NewBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	logger = utils.OrNop(logger)
	backend := &Backend{}

	switch cfg.StoreType {
	case config.StoreSupabase:
		client, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create supabase client: %w", err)
		}
		shared := &supabaseClient{client: client}

		identity := auth.NewSupabaseIdentity(client.Auth, shared, auth.SupabaseIdentityOptions{
			AnonKey:   cfg.Supabase.AnonKey,
			JWTSecret: cfg.Supabase.JWTSecret,
		}, logger.Named("auth"))
		if cfg.Supabase.AccessToken != "" {
			if _, err := identity.Restore(ctx, cfg.Supabase.AccessToken, cfg.Supabase.RefreshToken); err != nil {
				logger.Warn("could not restore persisted session", zap.Error(err))
			}
		}

		backend.Store = database.NewSupabaseStore(shared, logger.Named("store"))
		backend.Identity = identity
		backend.Avatars = storage.NewSupabaseAvatars(shared.Storage, cfg.Supabase.AvatarBucket, logger.Named("avatars"))
		logger.Info("using supabase backend", zap.String("url", cfg.Supabase.URL))

	case config.StorePostgres:
		pg, err := database.NewPostgresDB(cfg.Database.URI, logger.Named("store"))
		if err != nil {
			return nil, err
		}
		backend.Store = pg
		backend.Postgres = pg
		backend.Identity = auth.NewLocalIdentity(localSecret(cfg), logger.Named("auth"))
		backend.Avatars = storage.NewMemoryAvatars(localAvatarBase(cfg))
		logger.Info("using postgres backend")

	case config.StoreMemory:
		backend.Store = database.NewMemoryStore()
		backend.Identity = auth.NewLocalIdentity(localSecret(cfg), logger.Named("auth"))
		backend.Avatars = storage.NewMemoryAvatars(localAvatarBase(cfg))
		logger.Info("using in-memory backend")

	default:
		return nil, fmt.Errorf("unsupported store type %q", cfg.StoreType)
	}

	if cfg.Breaker.Enabled {
		breaker := database.DefaultBreakerConfig()
		breaker.FailureRatio = cfg.Breaker.FailureRatio
		breaker.MinRequests = cfg.Breaker.MinRequests
		breaker.Timeout = cfg.Breaker.Timeout
		backend.Store = database.NewBreakerStore(backend.Store, breaker, logger.Named("breaker"))
	}
	return backend, nil
}

// localSecret signs local access tokens. Without a configured secret the
// tokens only live as long as the process.
func localSecret(cfg *config.Config) string {
	if cfg.Supabase != nil && cfg.Supabase.JWTSecret != "" {
		return cfg.Supabase.JWTSecret
	}
	return uuid.NewString()
}

func localAvatarBase(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d/storage/v1", host, cfg.Server.Port)
}

// Close releases the direct database connection, if one was opened.
func (b *Backend) Close(ctx context.Context) error {
	if b.Postgres == nil {
		return nil
	}
	return b.Postgres.Close(ctx)
}
