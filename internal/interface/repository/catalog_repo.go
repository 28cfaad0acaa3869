package repository

import (
	"context"
	"errors"
	"time"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormCatalogRepository implements the CatalogRepository interface over the
// relational catalog owned by the catalog service. Read-only here.
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GORM catalog repository
func NewGormCatalogRepository(db *gorm.DB) repository.CatalogRepository {
	return &GormCatalogRepository{
		db: db,
	}
}

// Services GORM model for database mapping
type Services struct {
	ID            string         `gorm:"primaryKey;column:id"`
	SubcategoryID string         `gorm:"column:subcategory_id"`
	Title         string         `gorm:"column:title"`
	AdminPrice    float64        `gorm:"column:admin_price"`
	IsAdminPriced bool           `gorm:"column:is_admin_priced"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the default table name
func (Services) TableName() string {
	return "m_services"
}

// GetService finds a priced service by id
func (r *GormCatalogRepository) GetService(ctx context.Context, id string) (*entity.CatalogService, error) {
	var service Services
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&service)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	// Convert GORM model to domain entity
	return &entity.CatalogService{
		ID:            service.ID,
		SubcategoryID: service.SubcategoryID,
		Title:         service.Title,
		AdminPrice:    service.AdminPrice,
		IsAdminPriced: service.IsAdminPriced,
	}, nil
}
