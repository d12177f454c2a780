package reports

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/covenant-hq/covenant/internal/ar"
	"github.com/covenant-hq/covenant/internal/ledger"
)

const auditorPageSize = 500

// Service produces the association's exports and documents. CSV reports that
// are expensive to assemble are cached in Redis; concurrent requests for the
// same key collapse into a single build.
type Service struct {
	builder    *Builder
	renderer   *Renderer
	tenants    TenantPort
	gl         LedgerPort
	receivable ARPort
	cache      *redis.Client
	ttl        time.Duration
	group      singleflight.Group
	logger     *slog.Logger
}

// NewService wires the report service. cache may be nil; reports are then
// built on every request.
func NewService(builder *Builder, renderer *Renderer, tenants TenantPort, gl LedgerPort, receivable ARPort, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		builder:    builder,
		renderer:   renderer,
		tenants:    tenants,
		gl:         gl,
		receivable: receivable,
		cache:      cache,
		ttl:        ttl,
		logger:     logger,
	}
}

// AgingCSV renders the delinquency aging report as CSV.
func (s *Service) AgingCSV(ctx context.Context, tenantID int64, asOf time.Time) ([]byte, error) {
	key := fmt.Sprintf("reports:aging:%d:%s", tenantID, asOf.Format("2006-01-02"))
	return s.cached(ctx, key, func() ([]byte, error) {
		tn, err := s.tenants.Get(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		report, err := s.receivable.Aging(ctx, tenantID, asOf)
		if err != nil {
			return nil, err
		}
		buf := &bytes.Buffer{}
		if err := WriteAgingCSV(buf, tn.Name, report); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

// TrialBalanceCSV renders a fund's trial balance as CSV.
func (s *Service) TrialBalanceCSV(ctx context.Context, tenantID, fundID int64) ([]byte, error) {
	key := fmt.Sprintf("reports:tb:%d:%d", tenantID, fundID)
	return s.cached(ctx, key, func() ([]byte, error) {
		tn, err := s.tenants.Get(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		fund, err := s.fundByID(ctx, tenantID, fundID)
		if err != nil {
			return nil, err
		}
		tb, err := s.gl.TrialBalance(ctx, tenantID, fundID)
		if err != nil {
			return nil, err
		}
		buf := &bytes.Buffer{}
		if err := WriteTrialBalanceCSV(buf, tn.Name, fund.Name, tb); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

// OwnerLedgerCSV renders one owner's statement as CSV. Not cached: the
// statement is cheap and must reflect a payment taken a second ago.
func (s *Service) OwnerLedgerCSV(ctx context.Context, tenantID, ownerID int64) ([]byte, error) {
	tn, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	statement, err := s.receivable.OwnerLedger(ctx, tenantID, ownerID)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	if err := WriteOwnerLedgerCSV(buf, tn.Name, statement); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AuditorExportCSV dumps the tenant's full journal as CSV, paging through the
// ledger so one huge query never holds the pool.
func (s *Service) AuditorExportCSV(ctx context.Context, tenantID int64) ([]byte, error) {
	tn, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.gl.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]ledger.Account, len(accounts))
	for _, acct := range accounts {
		byID[acct.ID] = acct
	}

	entries := make([]ledger.JournalEntry, 0)
	for offset := 0; ; offset += auditorPageSize {
		page, total, err := s.gl.ListEntries(ctx, tenantID, auditorPageSize, offset)
		if err != nil {
			return nil, err
		}
		entries = append(entries, page...)
		if len(page) == 0 || len(entries) >= total {
			break
		}
	}

	buf := &bytes.Buffer{}
	if err := WriteAuditorExportCSV(buf, tn.Name, entries, byID); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BoardPacketPDF builds and renders the monthly board packet.
func (s *Service) BoardPacketPDF(ctx context.Context, tenantID int64, period time.Time) (RenderResult, error) {
	data, err := s.builder.BuildBoardPacket(ctx, tenantID, period)
	if err != nil {
		return RenderResult{}, err
	}
	return s.renderer.RenderBoardPacket(ctx, data)
}

// ResaleDisclosurePDF builds and renders the disclosure certificate for a unit.
func (s *Service) ResaleDisclosurePDF(ctx context.Context, tenantID, unitID int64, monthlyAssessment decimal.Decimal) (RenderResult, error) {
	data, err := s.builder.BuildResaleDisclosure(ctx, tenantID, unitID, monthlyAssessment)
	if err != nil {
		return RenderResult{}, err
	}
	return s.renderer.RenderResaleDisclosure(ctx, data)
}

// InvalidateTenant drops the tenant's cached reports, used after backdated
// postings.
func (s *Service) InvalidateTenant(ctx context.Context, tenantID int64) error {
	if s.cache == nil {
		return nil
	}
	pattern := fmt.Sprintf("reports:*:%d*", tenantID)
	iter := s.cache.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *Service) fundByID(ctx context.Context, tenantID, fundID int64) (ledger.Fund, error) {
	funds, err := s.gl.ListFunds(ctx, tenantID)
	if err != nil {
		return ledger.Fund{}, err
	}
	for _, fund := range funds {
		if fund.ID == fundID {
			return fund, nil
		}
	}
	return ledger.Fund{}, ledger.ErrFundNotFound
}

func (s *Service) cached(ctx context.Context, key string, build func() ([]byte, error)) ([]byte, error) {
	if s.cache == nil {
		return build()
	}
	if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
		return data, nil
	} else if err != redis.Nil {
		s.logger.Warn("report cache read failed", "key", key, "error", err)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		data, err := build()
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Warn("report cache write failed", "key", key, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

var _ ARPort = (*ar.Service)(nil)
