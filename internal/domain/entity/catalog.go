package entity

// CatalogService is a priced service read from the catalog. The catalog is
// owned elsewhere; the engine only needs identifiers and admin pricing.
type CatalogService struct {
	ID            string
	SubcategoryID string
	Title         string
	AdminPrice    float64
	IsAdminPriced bool
}
