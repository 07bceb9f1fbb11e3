// Package inventory holds the warehouse and stock domain: record types,
// listing filters, sort registries, input validation, and the SQL store.
package inventory

import "time"

// GraphQL type names, also used as node ID and cursor type tags.
const (
	TypeWarehouse      = "Warehouse"
	TypeStock          = "Stock"
	TypeShippingZone   = "ShippingZone"
	TypeProductVariant = "ProductVariant"
)

// Table names.
const (
	TableWarehouse             = "warehouse"
	TableShippingZone          = "shipping_zone"
	TableWarehouseShippingZone = "warehouse_shipping_zone"
	TableProductVariant        = "product_variant"
	TableStock                 = "stock"
)

// Address is the postal address stored inline on a warehouse row.
type Address struct {
	StreetAddress1 string
	StreetAddress2 string
	City           string
	CityArea       string
	PostalCode     string
	Country        string
	CountryArea    string
	Phone          string
}

// Warehouse is a stock-holding location.
type Warehouse struct {
	ID          string
	Name        string
	CompanyName string
	Email       string
	Address     Address
	CreatedAt   time.Time

	// ShippingZones is set only on snapshots taken before a delete. Nil means
	// zones are loaded on demand.
	ShippingZones []ShippingZone
}

var warehouseColumns = []string{
	"id", "name", "company_name", "email",
	"street_address_1", "street_address_2", "city", "city_area",
	"postal_code", "country", "country_area", "phone",
	"created_at",
}

func (w *Warehouse) scanTargets() []interface{} {
	return []interface{}{
		&w.ID, &w.Name, &w.CompanyName, &w.Email,
		&w.Address.StreetAddress1, &w.Address.StreetAddress2, &w.Address.City, &w.Address.CityArea,
		&w.Address.PostalCode, &w.Address.Country, &w.Address.CountryArea, &w.Address.Phone,
		&w.CreatedAt,
	}
}

// SortValue returns the value of an ordering column, for cursors.
func (w Warehouse) SortValue(column string) interface{} {
	switch column {
	case "id":
		return w.ID
	case "name":
		return w.Name
	case "company_name":
		return w.CompanyName
	case "email":
		return w.Email
	case "created_at":
		return w.CreatedAt
	default:
		return nil
	}
}

// ShippingZone groups countries a warehouse ships to.
type ShippingZone struct {
	ID        int64
	Name      string
	Countries []string
}

// ProductVariant is the sellable unit a stock row counts.
type ProductVariant struct {
	ID          int64
	SKU         string
	Name        string
	ProductName string
}

// Stock is the quantity of one product variant held in one warehouse.
type Stock struct {
	ID                int64
	WarehouseID       string
	ProductVariantID  int64
	Quantity          int
	QuantityAllocated int
}

var stockColumns = []string{"id", "warehouse_id", "product_variant_id", "quantity", "quantity_allocated"}

func (s *Stock) scanTargets() []interface{} {
	return []interface{}{&s.ID, &s.WarehouseID, &s.ProductVariantID, &s.Quantity, &s.QuantityAllocated}
}

// QuantityAvailable is the unallocated quantity, never negative.
func (s Stock) QuantityAvailable() int {
	if avail := s.Quantity - s.QuantityAllocated; avail > 0 {
		return avail
	}
	return 0
}

// SortValue returns the value of an ordering column, for cursors.
func (s Stock) SortValue(column string) interface{} {
	switch column {
	case "id":
		return s.ID
	case "quantity":
		return s.Quantity
	case "quantity_allocated":
		return s.QuantityAllocated
	case "warehouse_id":
		return s.WarehouseID
	default:
		return nil
	}
}
