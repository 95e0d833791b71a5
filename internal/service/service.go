package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/store"
)

var ErrUnauthenticated = errors.New("authentication required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// BillPublisher receives bills after they are committed. Implementations must
// not block and must not report failures back to the caller.
type BillPublisher interface {
	BillCreated(bill domain.Bill)
}

type noopPublisher struct{}

func (noopPublisher) BillCreated(domain.Bill) {}

type Service struct {
	repo      store.Repository
	publisher BillPublisher
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

func New(repo store.Repository, publisher BillPublisher, logger *zap.Logger, loc *time.Location) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

// WithClock replaces the time source; used by tests to drive the edit window.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) owner(ctx context.Context) (string, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || strings.TrimSpace(actor.UserID) == "" {
		return "", ErrUnauthenticated
	}
	return actor.UserID, nil
}

func (s *Service) ListPackages(ctx context.Context) ([]domain.Package, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPackages(ctx, ownerID)
}

func (s *Service) GetPackage(ctx context.Context, id string) (domain.Package, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return domain.Package{}, err
	}
	pkg, err := s.repo.GetPackage(ctx, ownerID, id)
	if err != nil {
		return domain.Package{}, err
	}
	return *pkg, nil
}

func (s *Service) CreatePackage(ctx context.Context, req domain.PackageRequest) (domain.Package, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return domain.Package{}, err
	}
	pkg, err := packageFromRequest(req)
	if err != nil {
		return domain.Package{}, err
	}

	now := s.now().UTC()
	pkg.UserID = ownerID
	pkg.CreatedAt = now
	pkg.UpdatedAt = now

	created, err := s.repo.CreatePackage(ctx, pkg)
	if err != nil {
		return domain.Package{}, err
	}
	return *created, nil
}

func (s *Service) UpdatePackage(ctx context.Context, id string, req domain.PackageRequest) (domain.Package, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return domain.Package{}, err
	}
	pkg, err := packageFromRequest(req)
	if err != nil {
		return domain.Package{}, err
	}

	pkg.ID = id
	pkg.UserID = ownerID
	pkg.UpdatedAt = s.now().UTC()

	updated, err := s.repo.UpdatePackage(ctx, pkg)
	if err != nil {
		return domain.Package{}, err
	}
	return *updated, nil
}

func (s *Service) DeletePackage(ctx context.Context, id string) error {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeletePackage(ctx, ownerID, id)
}

func packageFromRequest(req domain.PackageRequest) (domain.Package, error) {
	if err := domain.Validate(req); err != nil {
		return domain.Package{}, err
	}

	pkg := domain.Package{
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		Price:        req.Price,
		Type:         strings.TrimSpace(req.Type),
		MenPricing:   compactTier(req.MenPricing),
		WomenPricing: compactTier(req.WomenPricing),
	}
	if pkg.Name == "" {
		return domain.Package{}, domain.Invalid("name", "name is required")
	}
	if pkg.Price != nil && pkg.Type == "" {
		pkg.Type = domain.PackageTypeBasic
	}
	for _, line := range pkg.Pricing().Options() {
		if line.Price.IsNegative() {
			return domain.Package{}, domain.Invalid("price", "price must not be negative")
		}
	}
	if !pkg.Billable() {
		return domain.Package{}, domain.Invalid("price", "at least one price must be set")
	}
	return pkg, nil
}

// compactTier drops a tier that carries no price at all.
func compactTier(tier *domain.TierPricing) *domain.TierPricing {
	if tier == nil || (tier.Basic == nil && tier.Advance == nil) {
		return nil
	}
	return tier
}

func sumDecimals(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
