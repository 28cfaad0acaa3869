package repository

import (
	"context"

	"leadcall-service/internal/domain/entity"
)

// CatalogRepository reads priced services from the catalog store
type CatalogRepository interface {
	GetService(ctx context.Context, id string) (*entity.CatalogService, error)
}
