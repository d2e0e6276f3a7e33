package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"invoicesys/internal/core/cache"
	"invoicesys/internal/domain"
)

const statsCacheKey = "invoicesys:invoices:stats"

type InvoiceService struct {
	repo     domain.InvoiceRepository
	cache    *cache.Cache // 可为 nil
	statsTTL time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewInvoiceService(repo domain.InvoiceRepository, c *cache.Cache, statsTTL time.Duration, log *zap.Logger) *InvoiceService {
	if statsTTL <= 0 {
		statsTTL = 30 * time.Second
	}
	return &InvoiceService{repo: repo, cache: c, statsTTL: statsTTL, log: log.Named("service.invoice"), now: time.Now}
}

// NextInvoiceNumber INV-<毫秒>-<4 位随机>；撞号由唯一索引兜底，调用方可重试
func NextInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%d-%s", now.UnixMilli(), uuid.NewString()[:4])
}

func (s *InvoiceService) List(ctx context.Context) ([]domain.Invoice, error) {
	invs, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.internal("list invoices", err)
	}
	return invs, nil
}

func (s *InvoiceService) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, s.internal("get invoice", err)
	}
	return inv, err
}

func (s *InvoiceService) Exists(ctx context.Context, number string) (bool, error) {
	_, err := s.repo.FindByNumber(ctx, number)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, s.internal("find invoice by number", err)
	}
}

// Create 发票与明细原子写入；校验在任何写之前完成
func (s *InvoiceService) Create(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error) {
	now := s.now()
	if err := inv.Normalize(now); err != nil {
		return nil, err
	}
	if inv.InvoiceNumber == "" {
		inv.InvoiceNumber = NextInvoiceNumber(now)
	}
	inv.ID = ""
	if err := s.repo.CreateWithItems(ctx, inv); err != nil {
		if domain.Kind(err) != nil {
			return nil, err
		}
		return nil, s.internal("create invoice", err)
	}
	s.invalidateStats(ctx)
	return inv, nil
}

func (s *InvoiceService) Update(ctx context.Context, id string, patch domain.InvoicePatch) (*domain.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(inv); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, inv); err != nil {
		if domain.Kind(err) != nil {
			return nil, err
		}
		return nil, s.internal("update invoice", err)
	}
	s.invalidateStats(ctx)
	return s.Get(ctx, id)
}

func (s *InvoiceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return s.internal("delete invoice", err)
	}
	s.invalidateStats(ctx)
	return nil
}

func (s *InvoiceService) Stats(ctx context.Context) (*domain.InvoiceStats, error) {
	load := func(ctx context.Context) (*domain.InvoiceStats, error) {
		by, err := s.repo.StatsByStatus(ctx)
		if err != nil {
			return nil, err
		}
		st := domain.BuildStats(by)
		return &st, nil
	}
	st, err := cache.GetOrLoadJSON(s.cache, ctx, statsCacheKey, s.statsTTL, load)
	if err != nil {
		return nil, s.internal("invoice stats", err)
	}
	return st, nil
}

func (s *InvoiceService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, statsCacheKey); err != nil {
		s.log.Warn("invalidate stats cache failed", zap.Error(err))
	}
}

func (s *InvoiceService) internal(op string, err error) error {
	s.log.Error(op+" failed", zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}
