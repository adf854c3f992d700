// Package balances is the read side of the ledger: account balances enriched
// with a traffic-light color, served from a short-lived Redis cache.
package balances

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/contalibre/contalibre/internal/ledger"
)

// Balance colors as rendered on the wire.
const (
	ColorPositive = "verde"
	ColorNegative = "rojo"
	ColorZero     = "gris"
)

const cacheKey = "saldos:activos"

// AccountBalanceView is an account with its balance and display color.
type AccountBalanceView struct {
	ID                   int64           `json:"id"`
	Codigo               string          `json:"codigo"`
	Nombre               string          `json:"nombre"`
	Tipo                 string          `json:"tipo"`
	Saldo                decimal.Decimal `json:"saldo"`
	Color                string          `json:"color"`
	PermiteSaldoNegativo bool            `json:"permiteSaldoNegativo"`
	Activo               bool            `json:"activo"`
}

// LedgerPort is the slice of the ledger service the façade reads from.
type LedgerPort interface {
	ListWithBalances(ctx context.Context, onlyActive bool) ([]ledger.AccountBalance, error)
	GetWithBalance(ctx context.Context, accountID int64) (ledger.AccountBalance, error)
	ComputeBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	ComputeBalanceAsOf(ctx context.Context, accountID int64, date time.Time) (decimal.Decimal, error)
	AllowsNegative(ctx context.Context, accountID int64) (bool, error)
	IsActive(ctx context.Context, accountID int64) (bool, error)
}

// Service serves balance views. The cache is best effort: any Redis failure
// falls through to the ledger.
type Service struct {
	logger *slog.Logger
	ledger LedgerPort
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewService constructs the façade. A nil cache disables caching entirely.
func NewService(logger *slog.Logger, port LedgerPort, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{logger: logger, ledger: port, cache: cache, ttl: ttl}
}

// Color classifies a balance for display.
func Color(balance decimal.Decimal) string {
	switch balance.Sign() {
	case 1:
		return ColorPositive
	case -1:
		return ColorNegative
	default:
		return ColorZero
	}
}

func toView(ab ledger.AccountBalance) AccountBalanceView {
	return AccountBalanceView{
		ID:                   ab.Account.ID,
		Codigo:               ab.Account.Code,
		Nombre:               ab.Account.Name,
		Tipo:                 string(ab.Account.Type),
		Saldo:                ab.Balance,
		Color:                Color(ab.Balance),
		PermiteSaldoNegativo: ab.Account.AllowsNegative,
		Activo:               ab.Account.Active,
	}
}

// ListAll returns the balance views of every active account, ordered by code.
// Concurrent cache misses collapse into a single ledger query.
func (s *Service) ListAll(ctx context.Context) ([]AccountBalanceView, error) {
	if views, ok := s.fromCache(ctx); ok {
		return views, nil
	}
	result, err, _ := s.group.Do(cacheKey, func() (any, error) {
		balances, err := s.ledger.ListWithBalances(ctx, true)
		if err != nil {
			return nil, err
		}
		views := make([]AccountBalanceView, 0, len(balances))
		for _, ab := range balances {
			views = append(views, toView(ab))
		}
		s.store(ctx, views)
		return views, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]AccountBalanceView), nil
}

// Warmup forces a cache rebuild. Used by the background worker.
func (s *Service) Warmup(ctx context.Context) (int, error) {
	s.Invalidate(ctx)
	views, err := s.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(views), nil
}

// Invalidate drops the cached list. Best effort.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.Warn("balance cache invalidate failed", slog.Any("error", err))
	}
}

func (s *Service) fromCache(ctx context.Context) ([]AccountBalanceView, bool) {
	if s.cache == nil {
		return nil, false
	}
	payload, err := s.cache.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("balance cache read failed", slog.Any("error", err))
		}
		return nil, false
	}
	var views []AccountBalanceView
	if err := json.Unmarshal(payload, &views); err != nil {
		s.logger.Warn("balance cache payload corrupt", slog.Any("error", err))
		return nil, false
	}
	return views, true
}

func (s *Service) store(ctx context.Context, views []AccountBalanceView) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(views)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, payload, s.ttl).Err(); err != nil {
		s.logger.Warn("balance cache write failed", slog.Any("error", err))
	}
}

// Get returns the balance view of one account, cached list bypassed.
func (s *Service) Get(ctx context.Context, accountID int64) (AccountBalanceView, error) {
	ab, err := s.ledger.GetWithBalance(ctx, accountID)
	if err != nil {
		return AccountBalanceView{}, err
	}
	return toView(ab), nil
}

// Value returns just the balance figure of one account.
func (s *Service) Value(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return s.ledger.ComputeBalance(ctx, accountID)
}

// ValueAsOf returns the balance restricted to transactions dated on or
// before the given date.
func (s *Service) ValueAsOf(ctx context.Context, accountID int64, date time.Time) (decimal.Decimal, error) {
	return s.ledger.ComputeBalanceAsOf(ctx, accountID, date)
}

// AllowsNegative reports whether the account tolerates negative balances.
func (s *Service) AllowsNegative(ctx context.Context, accountID int64) (bool, error) {
	return s.ledger.AllowsNegative(ctx, accountID)
}

// IsActive reports whether the account exists and is active.
func (s *Service) IsActive(ctx context.Context, accountID int64) (bool, error) {
	return s.ledger.IsActive(ctx, accountID)
}
