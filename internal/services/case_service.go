package services

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/oscesim/internal/cache"
	"github.com/yoockh/oscesim/internal/models"
	mongorepo "github.com/yoockh/oscesim/internal/repositories/mongo"
	"github.com/yoockh/oscesim/internal/utils"
)

// CaseService serves read-only case content. Returned cases are shared and must not be mutated.
type CaseService interface {
	Get(ctx context.Context, caseID string) (*models.Case, error)
	Upsert(ctx context.Context, c *models.Case) error
	List(ctx context.Context, limit int64) ([]models.Case, error)
}

type CaseServiceConfig struct {
	LocalSize int
	LocalTTL  time.Duration
	SharedTTL time.Duration
}

type caseService struct {
	cases  mongorepo.CaseRepository
	local  *expirable.LRU[string, *models.Case]
	shared cache.Cache
	cfg    CaseServiceConfig
	log    *logrus.Logger
}

// NewCaseService reads through a process LRU, then shared (may be nil), then Mongo.
func NewCaseService(cases mongorepo.CaseRepository, shared cache.Cache, cfg CaseServiceConfig, log *logrus.Logger) CaseService {
	if cfg.LocalSize <= 0 {
		cfg.LocalSize = 256
	}
	if cfg.LocalTTL <= 0 {
		cfg.LocalTTL = 5 * time.Minute
	}
	if cfg.SharedTTL <= 0 {
		cfg.SharedTTL = time.Hour
	}
	if log == nil {
		log = logrus.New()
	}
	return &caseService{
		cases:  cases,
		local:  expirable.NewLRU[string, *models.Case](cfg.LocalSize, nil, cfg.LocalTTL),
		shared: shared,
		cfg:    cfg,
		log:    log,
	}
}

func caseKey(caseID string) string { return "case:" + caseID }

func (s *caseService) Get(ctx context.Context, caseID string) (*models.Case, error) {
	const op = "CaseService.Get"

	if caseID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "case_id is required", nil)
	}
	if c, ok := s.local.Get(caseID); ok {
		return c, nil
	}

	if s.shared != nil {
		var c models.Case
		hit, err := s.shared.GetJSON(ctx, caseKey(caseID), &c)
		if err != nil {
			s.log.WithError(err).WithField("case_id", caseID).Warn("shared case cache read failed")
		} else if hit {
			s.local.Add(caseID, &c)
			return &c, nil
		}
	}

	c, err := s.cases.GetByCaseID(ctx, caseID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "case not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load case", err)
	}

	s.local.Add(caseID, c)
	if s.shared != nil {
		if err := s.shared.SetJSON(ctx, caseKey(caseID), c, s.cfg.SharedTTL); err != nil {
			s.log.WithError(err).WithField("case_id", caseID).Warn("shared case cache write failed")
		}
	}
	return c, nil
}

func (s *caseService) Upsert(ctx context.Context, c *models.Case) error {
	const op = "CaseService.Upsert"

	if missing := c.Validate(); missing != "" {
		return utils.E(utils.CodeInvalidCase, op, "case is missing "+missing, nil)
	}
	if err := s.cases.Upsert(ctx, c); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to store case", err)
	}

	s.local.Remove(c.CaseID)
	if s.shared != nil {
		if err := s.shared.Del(ctx, caseKey(c.CaseID)); err != nil {
			s.log.WithError(err).WithField("case_id", c.CaseID).Warn("shared case cache invalidation failed")
		}
	}
	return nil
}

func (s *caseService) List(ctx context.Context, limit int64) ([]models.Case, error) {
	const op = "CaseService.List"

	out, err := s.cases.List(ctx, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list cases", err)
	}
	return out, nil
}
