package partner

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/partner"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ManufacturerService handles manufacturer registration and verification
type ManufacturerService struct {
	repo   partner.ManufacturerRepository
	logger *zap.Logger
}

// NewManufacturerService creates a new ManufacturerService
func NewManufacturerService(repo partner.ManufacturerRepository, logger *zap.Logger) *ManufacturerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManufacturerService{repo: repo, logger: logger}
}

// Create registers a new, unverified manufacturer
func (s *ManufacturerService) Create(ctx context.Context, req CreateManufacturerRequest) (*ManufacturerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "manufacturer", "create")
	defer span.End()

	exists, err := s.repo.ExistsByCode(ctx, strings.ToUpper(strings.TrimSpace(req.Code)))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, "Manufacturer with this code already exists")
	}

	m, err := partner.NewManufacturer(req.Code, req.Name, req.Email)
	if err != nil {
		return nil, err
	}
	if req.Phone != "" || req.City != "" || len(req.Capabilities) > 0 {
		if err := m.UpdateProfile(m.Name, m.Email, req.Phone, req.City, req.Capabilities); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Save(ctx, m); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("Manufacturer registered",
		zap.String("manufacturer_id", m.ID.String()),
		zap.String("code", m.Code),
	)
	resp := ToManufacturerResponse(m)
	return &resp, nil
}

// GetByID retrieves a manufacturer by ID
func (s *ManufacturerService) GetByID(ctx context.Context, id uuid.UUID) (*ManufacturerResponse, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToManufacturerResponse(m)
	return &resp, nil
}

// List lists manufacturers with filtering and pagination
func (s *ManufacturerService) List(ctx context.Context, filter ManufacturerListFilter) (*shared.Paginated[ManufacturerResponse], error) {
	f := shared.NewFilter(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir)
	f.Search = strings.TrimSpace(filter.Search)
	if filter.Verified != nil {
		f.Filters["verified"] = *filter.Verified
	}
	if filter.Active != nil {
		f.Filters["active"] = *filter.Active
	}

	ms, err := s.repo.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToManufacturerResponses(ms), total, f.Page, f.PageSize)
	return &page, nil
}

// Update updates a manufacturer's profile
func (s *ManufacturerService) Update(ctx context.Context, id uuid.UUID, req UpdateManufacturerRequest) (*ManufacturerResponse, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name, email, phone, city, caps := m.Name, m.Email, m.Phone, m.City, m.Capabilities
	if req.Name != nil {
		name = *req.Name
	}
	if req.Email != nil {
		email = *req.Email
	}
	if req.Phone != nil {
		phone = *req.Phone
	}
	if req.City != nil {
		city = *req.City
	}
	if req.Capabilities != nil {
		caps = req.Capabilities
	}
	if err := m.UpdateProfile(name, email, phone, city, caps); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, m); err != nil {
		return nil, err
	}
	resp := ToManufacturerResponse(m)
	return &resp, nil
}

// Verify marks a manufacturer as verified, making it assignable
func (s *ManufacturerService) Verify(ctx context.Context, id uuid.UUID) (*ManufacturerResponse, error) {
	return s.changeStatus(ctx, id, "verify", func(m *partner.Manufacturer) error {
		return m.Verify(time.Now().UTC())
	})
}

// Deactivate takes a manufacturer out of assignment
func (s *ManufacturerService) Deactivate(ctx context.Context, id uuid.UUID) (*ManufacturerResponse, error) {
	return s.changeStatus(ctx, id, "deactivate", (*partner.Manufacturer).Deactivate)
}

// Activate re-enables a manufacturer
func (s *ManufacturerService) Activate(ctx context.Context, id uuid.UUID) (*ManufacturerResponse, error) {
	return s.changeStatus(ctx, id, "activate", (*partner.Manufacturer).Activate)
}

func (s *ManufacturerService) changeStatus(ctx context.Context, id uuid.UUID, op string, change func(*partner.Manufacturer) error) (*ManufacturerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "manufacturer", op)
	defer span.End()

	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := change(m); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, m); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("Manufacturer status changed",
		zap.String("manufacturer_id", m.ID.String()),
		zap.String("operation", op),
		zap.Bool("verified", m.Verified),
		zap.Bool("active", m.Active),
	)
	resp := ToManufacturerResponse(m)
	return &resp, nil
}
