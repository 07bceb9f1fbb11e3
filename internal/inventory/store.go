package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"warehouse-graphql/internal/dbexec"
	"warehouse-graphql/internal/planner"
	"warehouse-graphql/internal/sqlutil"
)

// WarehouseQuery is the unfiltered, unordered warehouse listing.
func WarehouseQuery() planner.CollectionQuery {
	return planner.NewCollection(TableWarehouse, warehouseColumns...)
}

// StockQuery is the unfiltered, unordered stock listing.
func StockQuery() planner.CollectionQuery {
	return planner.NewCollection(TableStock, stockColumns...)
}

// Store reads and writes inventory rows through an executor, which is either
// the connection pool or the current mutation transaction.
type Store struct {
	exec dbexec.QueryExecutor
}

// NewStore creates a store over exec.
func NewStore(exec dbexec.QueryExecutor) *Store {
	return &Store{exec: exec}
}

// Warehouses runs a planned warehouse query.
func (s *Store) Warehouses(ctx context.Context, query planner.SQLQuery) ([]Warehouse, error) {
	rows, err := s.exec.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(w.scanTargets()...); err != nil {
			return nil, fmt.Errorf("scan warehouse: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Stocks runs a planned stock query.
func (s *Store) Stocks(ctx context.Context, query planner.SQLQuery) ([]Stock, error) {
	rows, err := s.exec.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Stock
	for rows.Next() {
		var st Stock
		if err := rows.Scan(st.scanTargets()...); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Count runs a planned COUNT(*) query.
func (s *Store) Count(ctx context.Context, query planner.SQLQuery) (int, error) {
	rows, err := s.exec.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scan count: %w", err)
		}
	}
	return n, rows.Err()
}

// Warehouse fetches one warehouse by primary key.
func (s *Store) Warehouse(ctx context.Context, id string) (*Warehouse, error) {
	found, err := s.WarehousesByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

// WarehousesByIDs fetches warehouses by primary key in no particular order.
func (s *Store) WarehousesByIDs(ctx context.Context, ids []string) ([]Warehouse, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := WarehouseQuery()
	query, err := q.Where(sq.Eq{q.Column("id"): ids}).ToSQL()
	if err != nil {
		return nil, err
	}
	return s.Warehouses(ctx, query)
}

// Stock fetches one stock row by primary key.
func (s *Store) Stock(ctx context.Context, id int64) (*Stock, error) {
	q := StockQuery()
	query, err := q.Where(sq.Eq{q.Column("id"): id}).ToSQL()
	if err != nil {
		return nil, err
	}
	found, err := s.Stocks(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

// ShippingZonesByIDs fetches shipping zones by primary key, ordered by id.
func (s *Store) ShippingZonesByIDs(ctx context.Context, ids []int64) ([]ShippingZone, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	col := func(name string) string { return sqlutil.QualifiedColumn(TableShippingZone, name) }
	query, args, err := sq.Select(col("id"), col("name"), col("countries")).
		From(sqlutil.QuoteIdentifier(TableShippingZone)).
		Where(sq.Eq{col("id"): ids}).
		OrderBy(col("id") + " ASC").
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []ShippingZone
	for rows.Next() {
		var zone ShippingZone
		var countries string
		if err := rows.Scan(&zone.ID, &zone.Name, &countries); err != nil {
			return nil, fmt.Errorf("scan shipping zone: %w", err)
		}
		zone.Countries = splitCountries(countries)
		out = append(out, zone)
	}
	return out, rows.Err()
}

// ShippingZonesByWarehouseIDs fetches the zones assigned to each warehouse.
// Warehouses with no zones are absent from the result.
func (s *Store) ShippingZonesByWarehouseIDs(ctx context.Context, warehouseIDs []string) (map[string][]ShippingZone, error) {
	if len(warehouseIDs) == 0 {
		return map[string][]ShippingZone{}, nil
	}
	zone := func(name string) string { return sqlutil.QualifiedColumn(TableShippingZone, name) }
	link := func(name string) string { return sqlutil.QualifiedColumn(TableWarehouseShippingZone, name) }
	query, args, err := sq.Select(link("warehouse_id"), zone("id"), zone("name"), zone("countries")).
		From(sqlutil.QuoteIdentifier(TableShippingZone)).
		Join(sqlutil.QuoteIdentifier(TableWarehouseShippingZone) + " ON " + link("shipping_zone_id") + " = " + zone("id")).
		Where(sq.Eq{link("warehouse_id"): warehouseIDs}).
		OrderBy(zone("id") + " ASC").
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make(map[string][]ShippingZone, len(warehouseIDs))
	for rows.Next() {
		var warehouseID, countries string
		var z ShippingZone
		if err := rows.Scan(&warehouseID, &z.ID, &z.Name, &countries); err != nil {
			return nil, fmt.Errorf("scan shipping zone: %w", err)
		}
		z.Countries = splitCountries(countries)
		out[warehouseID] = append(out[warehouseID], z)
	}
	return out, rows.Err()
}

// ProductVariantsByIDs fetches product variants by primary key.
func (s *Store) ProductVariantsByIDs(ctx context.Context, ids []int64) ([]ProductVariant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	col := func(name string) string { return sqlutil.QualifiedColumn(TableProductVariant, name) }
	query, args, err := sq.Select(col("id"), col("sku"), col("name"), col("product_name")).
		From(sqlutil.QuoteIdentifier(TableProductVariant)).
		Where(sq.Eq{col("id"): ids}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []ProductVariant
	for rows.Next() {
		var v ProductVariant
		if err := rows.Scan(&v.ID, &v.SKU, &v.Name, &v.ProductName); err != nil {
			return nil, fmt.Errorf("scan product variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CreateWarehouse inserts a warehouse row from normalized column values.
func (s *Store) CreateWarehouse(ctx context.Context, id string, createdAt time.Time, cols map[string]interface{}) error {
	names := make([]string, 0, len(cols)+2)
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	values := make([]interface{}, 0, len(names)+2)
	for _, name := range names {
		values = append(values, cols[name])
	}
	names = append([]string{"id", "created_at"}, names...)
	values = append([]interface{}{id, createdAt.UTC()}, values...)

	query, err := planner.PlanInsert(TableWarehouse, names, values)
	if err != nil {
		return err
	}
	_, err = s.exec.ExecContext(ctx, query.SQL, query.Args...)
	return err
}

// UpdateWarehouse writes normalized column values to an existing warehouse.
func (s *Store) UpdateWarehouse(ctx context.Context, id string, cols map[string]interface{}) error {
	query, err := planner.PlanUpdate(TableWarehouse, cols, sq.Eq{"id": id})
	if err != nil {
		return err
	}
	_, err = s.exec.ExecContext(ctx, query.SQL, query.Args...)
	return err
}

// DeleteWarehouse deletes a warehouse; links and stock rows cascade.
func (s *Store) DeleteWarehouse(ctx context.Context, id string) error {
	query, err := planner.PlanDelete(TableWarehouse, sq.Eq{"id": id})
	if err != nil {
		return err
	}
	res, err := s.exec.ExecContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignShippingZones links zones to a warehouse. Existing links are kept.
func (s *Store) AssignShippingZones(ctx context.Context, warehouseID string, zoneIDs []int64) error {
	if len(zoneIDs) == 0 {
		return nil
	}
	rows := make([][]interface{}, len(zoneIDs))
	for i, zoneID := range zoneIDs {
		rows[i] = []interface{}{warehouseID, zoneID}
	}
	query, err := planner.PlanInsertIgnore(TableWarehouseShippingZone, []string{"warehouse_id", "shipping_zone_id"}, rows)
	if err != nil {
		return err
	}
	_, err = s.exec.ExecContext(ctx, query.SQL, query.Args...)
	return err
}

// UnassignShippingZones removes zone links from a warehouse.
func (s *Store) UnassignShippingZones(ctx context.Context, warehouseID string, zoneIDs []int64) error {
	if len(zoneIDs) == 0 {
		return nil
	}
	query, err := planner.PlanDelete(TableWarehouseShippingZone, sq.Eq{
		"warehouse_id":     warehouseID,
		"shipping_zone_id": zoneIDs,
	})
	if err != nil {
		return err
	}
	_, err = s.exec.ExecContext(ctx, query.SQL, query.Args...)
	return err
}

func splitCountries(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
