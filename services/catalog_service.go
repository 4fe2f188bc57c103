package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DepartmentInput holds the fields of a new department
type DepartmentInput struct {
	Name      string
	SortOrder int
}

// AddonInput holds the fields of a new add-on
type AddonInput struct {
	Name            string
	DepartmentID    *string
	IsChecklistItem bool
	UnitPrice       decimal.Decimal
}

// CatalogService manages departments and add-ons
type CatalogService struct {
	db *gorm.DB
}

// NewCatalogService creates a catalog service
func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// ListDepartments returns departments in pipeline order
func (s *CatalogService) ListDepartments(ctx context.Context, includeInactive bool) ([]models.Department, error) {
	query := s.db.WithContext(ctx).Order("sort_order ASC, name ASC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var depts []models.Department
	if err := query.Find(&depts).Error; err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	return depts, nil
}

// CreateDepartment adds an active department
func (s *CatalogService) CreateDepartment(ctx context.Context, in DepartmentInput) (*models.Department, error) {
	fields := FieldErrors{}
	fields.Required("name", in.Name)
	if in.SortOrder < 0 {
		fields.Add("sort_order", "must not be negative")
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	dept := models.Department{Name: strings.TrimSpace(in.Name), SortOrder: in.SortOrder, IsActive: true}
	if err := s.db.WithContext(ctx).Create(&dept).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, Conflict("department %s already exists", dept.Name)
		}
		return nil, fmt.Errorf("failed to create department: %w", err)
	}
	return &dept, nil
}

// ListAddons returns active add-ons with their department
func (s *CatalogService) ListAddons(ctx context.Context) ([]models.Addon, error) {
	var addons []models.Addon
	if err := s.db.WithContext(ctx).Preload("Department").
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&addons).Error; err != nil {
		return nil, fmt.Errorf("failed to list add-ons: %w", err)
	}
	return addons, nil
}

// CreateAddon adds an active add-on to the catalog
func (s *CatalogService) CreateAddon(ctx context.Context, in AddonInput) (*models.Addon, error) {
	fields := FieldErrors{}
	fields.Required("name", in.Name)
	if in.UnitPrice.IsNegative() {
		fields.Add("unit_price", "must not be negative")
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	addon := models.Addon{
		Name:            strings.TrimSpace(in.Name),
		DepartmentID:    blankToNil(in.DepartmentID),
		IsChecklistItem: in.IsChecklistItem,
		UnitPrice:       in.UnitPrice,
		IsActive:        true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if addon.DepartmentID != nil {
			if _, err := findDepartment(tx, *addon.DepartmentID); err != nil {
				return err
			}
		}
		if err := tx.Create(&addon).Error; err != nil {
			if isUniqueViolation(err) {
				return Conflict("addon %s already exists", addon.Name)
			}
			return fmt.Errorf("failed to create add-on: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &addon, nil
}
