// Package loaders batches per-request lookups of related inventory records so
// that resolving a page of stocks or warehouses issues one query per relation
// rather than one per row.
package loaders

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/graph-gophers/dataloader"

	"warehouse-graphql/internal/inventory"
	"warehouse-graphql/internal/observability"
)

// DefaultWait is how long a loader collects keys before dispatching a batch.
const DefaultWait = 2 * time.Millisecond

type contextKey struct{}

// StoreFunc returns the store to use for a request context. Mutations pass
// their transaction so reads see uncommitted writes.
type StoreFunc func(ctx context.Context) *inventory.Store

// Loaders holds the request-scoped batch loaders.
type Loaders struct {
	warehouses      *dataloader.Loader
	shippingZones   *dataloader.Loader
	productVariants *dataloader.Loader
}

// New creates loaders reading through storeFor.
func New(storeFor StoreFunc, wait time.Duration) *Loaders {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Loaders{
		warehouses:      dataloader.NewBatchedLoader(warehouseBatch(storeFor), dataloader.WithWait(wait)),
		shippingZones:   dataloader.NewBatchedLoader(shippingZoneBatch(storeFor), dataloader.WithWait(wait)),
		productVariants: dataloader.NewBatchedLoader(productVariantBatch(storeFor), dataloader.WithWait(wait)),
	}
}

// Warehouse loads one warehouse. A missing warehouse yields nil.
func (l *Loaders) Warehouse(ctx context.Context, id string) (*inventory.Warehouse, error) {
	return l.LoadWarehouse(ctx, id)()
}

// LoadWarehouse queues a warehouse key and returns a thunk resolving it once
// the batch has run.
func (l *Loaders) LoadWarehouse(ctx context.Context, id string) func() (*inventory.Warehouse, error) {
	thunk := l.warehouses.Load(ctx, dataloader.StringKey(id))
	return func() (*inventory.Warehouse, error) {
		data, err := thunk()
		if err != nil || data == nil {
			return nil, err
		}
		return data.(*inventory.Warehouse), nil
	}
}

// ShippingZones loads the zones assigned to a warehouse.
func (l *Loaders) ShippingZones(ctx context.Context, warehouseID string) ([]inventory.ShippingZone, error) {
	return l.LoadShippingZones(ctx, warehouseID)()
}

// LoadShippingZones queues a warehouse key for its zones.
func (l *Loaders) LoadShippingZones(ctx context.Context, warehouseID string) func() ([]inventory.ShippingZone, error) {
	thunk := l.shippingZones.Load(ctx, dataloader.StringKey(warehouseID))
	return func() ([]inventory.ShippingZone, error) {
		data, err := thunk()
		if err != nil || data == nil {
			return nil, err
		}
		return data.([]inventory.ShippingZone), nil
	}
}

// ProductVariant loads one product variant. A missing variant yields nil.
func (l *Loaders) ProductVariant(ctx context.Context, id int64) (*inventory.ProductVariant, error) {
	return l.LoadProductVariant(ctx, id)()
}

// LoadProductVariant queues a product variant key.
func (l *Loaders) LoadProductVariant(ctx context.Context, id int64) func() (*inventory.ProductVariant, error) {
	thunk := l.productVariants.Load(ctx, dataloader.StringKey(strconv.FormatInt(id, 10)))
	return func() (*inventory.ProductVariant, error) {
		data, err := thunk()
		if err != nil || data == nil {
			return nil, err
		}
		return data.(*inventory.ProductVariant), nil
	}
}

// ForgetWarehouse drops cached results for a warehouse after it was written.
func (l *Loaders) ForgetWarehouse(ctx context.Context, id string) {
	l.warehouses.Clear(ctx, dataloader.StringKey(id))
	l.shippingZones.Clear(ctx, dataloader.StringKey(id))
}

// WithLoaders stores loaders on the context.
func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the request loaders, or nil.
func FromContext(ctx context.Context) *Loaders {
	l, _ := ctx.Value(contextKey{}).(*Loaders)
	return l
}

func errorResults(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}

func warehouseBatch(storeFor StoreFunc) dataloader.BatchFunc {
	return func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()
		found, err := storeFor(ctx).WarehousesByIDs(ctx, ids)
		observability.GraphQLMetricsFromContext(ctx).RecordLoaderBatch(ctx, "warehouse", len(ids), len(found), err)
		if err != nil {
			return errorResults(len(keys), err)
		}
		byID := make(map[string]*inventory.Warehouse, len(found))
		for i := range found {
			byID[found[i].ID] = &found[i]
		}
		results := make([]*dataloader.Result, len(ids))
		for i, id := range ids {
			if w, ok := byID[id]; ok {
				results[i] = &dataloader.Result{Data: w}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}
}

func shippingZoneBatch(storeFor StoreFunc) dataloader.BatchFunc {
	return func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()
		byWarehouse, err := storeFor(ctx).ShippingZonesByWarehouseIDs(ctx, ids)
		observability.GraphQLMetricsFromContext(ctx).RecordLoaderBatch(ctx, "shipping_zones", len(ids), len(byWarehouse), err)
		if err != nil {
			return errorResults(len(keys), err)
		}
		results := make([]*dataloader.Result, len(ids))
		for i, id := range ids {
			zones := byWarehouse[id]
			if zones == nil {
				zones = []inventory.ShippingZone{}
			}
			results[i] = &dataloader.Result{Data: zones}
		}
		return results
	}
}

func productVariantBatch(storeFor StoreFunc) dataloader.BatchFunc {
	return func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]int64, len(keys))
		for i, k := range keys {
			id, err := strconv.ParseInt(k.String(), 10, 64)
			if err != nil {
				return errorResults(len(keys), fmt.Errorf("invalid product variant key %q: %w", k.String(), err))
			}
			ids[i] = id
		}
		found, err := storeFor(ctx).ProductVariantsByIDs(ctx, ids)
		observability.GraphQLMetricsFromContext(ctx).RecordLoaderBatch(ctx, "product_variant", len(ids), len(found), err)
		if err != nil {
			return errorResults(len(keys), err)
		}
		byID := make(map[int64]*inventory.ProductVariant, len(found))
		for i := range found {
			byID[found[i].ID] = &found[i]
		}
		results := make([]*dataloader.Result, len(ids))
		for i, id := range ids {
			if v, ok := byID[id]; ok {
				results[i] = &dataloader.Result{Data: v}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}
}
