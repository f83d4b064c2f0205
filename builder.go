package authrbac

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskforge/authrbac/internal/rate"
	"github.com/taskforge/authrbac/ledger"
	"github.com/taskforge/authrbac/password"
	"github.com/taskforge/authrbac/permission"
	"github.com/taskforge/authrbac/token"
)

// Builder defines a public type used by authrbac APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config     Config
	hasConfig  bool
	redis      redis.UniversalClient
	identities IdentityStore
	tokens     TokenStore
	roles      permission.RoleSource
	tx         TxRunner
	mailer     Mailer
	auditSink  AuditSink
	now        func() time.Time
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	b.hasConfig = true
	return b
}

// WithSecret describes the withsecret operation and its observable behavior.
//
// WithSecret does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithSecret(secret []byte) *Builder {
	if !b.hasConfig {
		b.config = defaultConfig()
		b.hasConfig = true
	}
	b.config.Token.Secret = secret
	return b
}

// WithRedis wires the Redis client used for rate limiting. Optional
// unless RateLimit.Enabled is set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityStore describes the withidentitystore operation and its observable behavior.
//
// WithIdentityStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithIdentityStore(store IdentityStore) *Builder {
	b.identities = store
	return b
}

// WithTokenStore describes the withtokenstore operation and its observable behavior.
//
// WithTokenStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.tokens = store
	return b
}

// WithRoleSource overrides the role source. When omitted the identity
// store must implement permission.RoleSource itself.
func (b *Builder) WithRoleSource(source permission.RoleSource) *Builder {
	b.roles = source
	return b
}

// WithTxRunner overrides the transaction runner. When omitted the
// identity store is used if it implements TxRunner, else NoTx.
func (b *Builder) WithTxRunner(tx TxRunner) *Builder {
	b.tx = tx
	return b
}

// WithMailer describes the withmailer operation and its observable behavior.
//
// WithMailer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine clock. Test hook.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.identities == nil {
		return nil, errors.New("identity store is required")
	}
	if b.tokens == nil {
		return nil, errors.New("token store is required")
	}

	cfg := defaultConfig()
	if b.hasConfig {
		cfg = cloneConfig(b.config)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	codec, err := token.NewCodec(token.Config{
		Secret:     cfg.Token.Secret,
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	roles := b.roles
	if roles == nil {
		source, ok := b.identities.(permission.RoleSource)
		if !ok {
			return nil, errors.New("identity store does not provide roles; use WithRoleSource")
		}
		roles = source
	}

	tx := b.tx
	if tx == nil {
		if runner, ok := b.identities.(TxRunner); ok {
			tx = runner
		} else {
			tx = NoTx{}
		}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		if b.redis == nil {
			return nil, errors.New("rate limiting requires a redis client")
		}
		limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:  cfg.RateLimit.EnableIPThrottle,
			MaxLoginAttempts:  cfg.RateLimit.MaxLoginAttempts,
			LoginCooldown:     cfg.RateLimit.LoginCooldown,
			MaxForgotRequests: cfg.RateLimit.MaxForgotRequests,
			ForgotCooldown:    cfg.RateLimit.ForgotCooldown,
		})
	}

	mailer := b.mailer
	if mailer == nil {
		mailer = NoOpMailer{}
	}

	aggregator := permission.NewAggregator(roles)
	cache := permission.NewCache(aggregator, permission.CacheConfig{
		TTL: cfg.Cache.PermissionTTL,
		Now: now,
	})

	return &Engine{
		config:     cfg,
		identities: b.identities,
		tokens:     b.tokens,
		tx:         tx,
		codec:      codec,
		hasher:     hasher,
		ledger:     ledger.New(b.tokens, now),
		aggregator: aggregator,
		cache:      cache,
		limiter:    limiter,
		mailer:     mailer,
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:    NewMetrics(cfg.Metrics),
		now:        now,
	}, nil
}
