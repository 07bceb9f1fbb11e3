package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/graphql-go/graphql"

	"warehouse-graphql/internal/inventory"
	"warehouse-graphql/internal/loaders"
	"warehouse-graphql/internal/logging"
	"warehouse-graphql/internal/nodeid"
	"warehouse-graphql/internal/observability"
	"warehouse-graphql/internal/permission"
)

// mutationPayload is the shared result of warehouse mutations.
type mutationPayload struct {
	Warehouse *inventory.Warehouse
	Errors    []*inventory.FieldError
}

func (p *mutationPayload) warehouseOrNil() interface{} {
	if p.Warehouse == nil {
		return nil
	}
	return p.Warehouse
}

func failed(errs ...*inventory.FieldError) *mutationPayload {
	return &mutationPayload{Errors: errs}
}

// fieldErrorOr returns a payload carrying fe, unless the lookup that produced
// it failed outright.
func fieldErrorOr(fe *inventory.FieldError, err error) (*mutationPayload, error) {
	if err != nil {
		return nil, err
	}
	return failed(fe), nil
}

var errMutationTxMissing = errors.New("mutation transaction not available")

// rolledBack is reported by mutation fields that run after an earlier field of
// the same operation failed. Their writes would be discarded with the rest.
func rolledBack() *inventory.FieldError {
	return &inventory.FieldError{
		Message: "Skipped: an earlier mutation in this request failed and the transaction was rolled back.",
		Code:    inventory.CodeGraphQLError,
	}
}

type mutationFn func(p graphql.ResolveParams) (*mutationPayload, error)

// mutation wraps a warehouse mutation with the permission check, the shared
// transaction and a resolver span. Field errors and constraint violations are
// returned in the payload and roll the operation back; other failures become
// GraphQL errors.
func (r *Resolver) mutation(name string, fn mutationFn) graphql.FieldResolveFn {
	return permission.RequirePermission(permission.ManageProducts, func(p graphql.ResolveParams) (result interface{}, err error) {
		mc := MutationContextFromContext(p.Context)
		if mc == nil {
			return nil, errMutationTxMissing
		}

		ctx, span := startResolverSpan(p.Context, "graphql.mutation."+name, inventory.TableWarehouse, p.Info.FieldName)
		p.Context = ctx
		class, code := "ok", ""
		defer func() {
			observability.GraphQLMetricsFromContext(ctx).RecordMutation(ctx, name, class)
			span.mutationResult(class, code)
			span.end(err)
		}()

		if mc.Failed() {
			mc.markFailed(name)
			class, code = "field_error", string(inventory.CodeGraphQLError)
			return failed(rolledBack()), nil
		}

		payload, err := fn(p)
		if err != nil {
			mc.markFailed(name)
			fe, ok := inventory.ClassifyMySQLError(err)
			if !ok {
				class = "error"
				logging.FromContext(ctx).Error("warehouse mutation failed",
					slog.String("mutation", name),
					slog.String("error", err.Error()),
				)
				return nil, err
			}
			payload, err = failed(fe), nil
		}
		if len(payload.Errors) > 0 {
			mc.markFailed(name)
			class, code = "field_error", string(payload.Errors[0].Code)
		}
		return payload, nil
	})
}

func notFoundID(id string) *inventory.FieldError {
	return &inventory.FieldError{
		Field:   "id",
		Message: fmt.Sprintf("Couldn't resolve to a warehouse: %s", id),
		Code:    inventory.CodeNotFound,
	}
}

// lookupWarehouse resolves the id argument of a mutation to an existing row.
// A malformed, mistyped or unknown id is a NOT_FOUND field error.
func (r *Resolver) lookupWarehouse(p graphql.ResolveParams) (*inventory.Warehouse, *inventory.FieldError, error) {
	id, _ := p.Args["id"].(string)
	pk, err := nodeid.StringPK(id, inventory.TypeWarehouse)
	if err != nil {
		return nil, notFoundID(id), nil
	}
	w, err := r.StoreForContext(p.Context).Warehouse(p.Context, pk)
	if errors.Is(err, inventory.ErrNotFound) {
		return nil, notFoundID(id), nil
	}
	if err != nil {
		return nil, nil, err
	}
	return w, nil, nil
}

// checkZonesExist reports the first shipping zone id with no row.
func (r *Resolver) checkZonesExist(p graphql.ResolveParams, ids []int64, fieldName string) (*inventory.FieldError, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	zones, err := r.StoreForContext(p.Context).ShippingZonesByIDs(p.Context, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[int64]struct{}, len(zones))
	for _, z := range zones {
		found[z.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return &inventory.FieldError{
				Field:   fieldName,
				Message: fmt.Sprintf("Couldn't resolve to a node: %s", nodeid.Encode(inventory.TypeShippingZone, id)),
				Code:    inventory.CodeNotFound,
			}, nil
		}
	}
	return nil, nil
}

// reloadWarehouse re-reads a written warehouse through the transaction and
// drops any batched copy cached earlier in the request.
func (r *Resolver) reloadWarehouse(p graphql.ResolveParams, id string) (*mutationPayload, error) {
	if l := loaders.FromContext(p.Context); l != nil {
		l.ForgetWarehouse(p.Context, id)
	}
	w, err := r.StoreForContext(p.Context).Warehouse(p.Context, id)
	if err != nil {
		return nil, err
	}
	return &mutationPayload{Warehouse: w}, nil
}

func (r *Resolver) createWarehouse(p graphql.ResolveParams) (*mutationPayload, error) {
	input, _ := p.Args["input"].(map[string]interface{})
	cols, errs := parseWarehouseInput(input).Normalize(true)
	zoneIDs, zoneErr := decodeZoneIDs(input["shippingZones"], "shippingZones")
	if zoneErr != nil {
		errs = append(errs, zoneErr)
	}
	if len(errs) > 0 {
		return failed(errs...), nil
	}
	if fe, err := r.checkZonesExist(p, zoneIDs, "shippingZones"); fe != nil || err != nil {
		return fieldErrorOr(fe, err)
	}

	ctx := p.Context
	store := r.StoreForContext(ctx)
	id := r.newID()
	if err := store.CreateWarehouse(ctx, id, r.now().UTC().Truncate(time.Microsecond), cols); err != nil {
		return nil, err
	}
	if err := store.AssignShippingZones(ctx, id, zoneIDs); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("warehouse created", slog.String("warehouse_id", id))
	return r.reloadWarehouse(p, id)
}

func (r *Resolver) updateWarehouse(p graphql.ResolveParams) (*mutationPayload, error) {
	w, fe, err := r.lookupWarehouse(p)
	if fe != nil || err != nil {
		return fieldErrorOr(fe, err)
	}
	cols, errs := parseWarehouseInput(p.Args["input"]).Normalize(false)
	if len(errs) > 0 {
		return failed(errs...), nil
	}
	if err := r.StoreForContext(p.Context).UpdateWarehouse(p.Context, w.ID, cols); err != nil {
		return nil, err
	}
	return r.reloadWarehouse(p, w.ID)
}

// deleteWarehouse returns the row as it was before deletion, with the zones it
// was assigned to. Zone links and stock rows cascade.
func (r *Resolver) deleteWarehouse(p graphql.ResolveParams) (*mutationPayload, error) {
	w, fe, err := r.lookupWarehouse(p)
	if fe != nil || err != nil {
		return fieldErrorOr(fe, err)
	}
	store := r.StoreForContext(p.Context)
	zones, err := store.ShippingZonesByWarehouseIDs(p.Context, []string{w.ID})
	if err != nil {
		return nil, err
	}
	w.ShippingZones = append([]inventory.ShippingZone{}, zones[w.ID]...)

	err = store.DeleteWarehouse(p.Context, w.ID)
	if errors.Is(err, inventory.ErrNotFound) {
		id, _ := p.Args["id"].(string)
		return failed(notFoundID(id)), nil
	}
	if err != nil {
		return nil, err
	}
	if l := loaders.FromContext(p.Context); l != nil {
		l.ForgetWarehouse(p.Context, w.ID)
	}
	logging.FromContext(p.Context).Info("warehouse deleted", slog.String("warehouse_id", w.ID))
	return &mutationPayload{Warehouse: w}, nil
}

func (r *Resolver) assignShippingZones(p graphql.ResolveParams) (*mutationPayload, error) {
	w, fe, err := r.lookupWarehouse(p)
	if fe != nil || err != nil {
		return fieldErrorOr(fe, err)
	}
	zoneIDs, fe := decodeZoneIDs(p.Args["shippingZoneIds"], "shippingZoneIds")
	if fe != nil {
		return failed(fe), nil
	}
	if fe, err := r.checkZonesExist(p, zoneIDs, "shippingZoneIds"); fe != nil || err != nil {
		return fieldErrorOr(fe, err)
	}
	if err := r.StoreForContext(p.Context).AssignShippingZones(p.Context, w.ID, zoneIDs); err != nil {
		return nil, err
	}
	return r.reloadWarehouse(p, w.ID)
}

func (r *Resolver) unassignShippingZones(p graphql.ResolveParams) (*mutationPayload, error) {
	w, fe, err := r.lookupWarehouse(p)
	if fe != nil || err != nil {
		return fieldErrorOr(fe, err)
	}
	zoneIDs, fe := decodeZoneIDs(p.Args["shippingZoneIds"], "shippingZoneIds")
	if fe != nil {
		return failed(fe), nil
	}
	if err := r.StoreForContext(p.Context).UnassignShippingZones(p.Context, w.ID, zoneIDs); err != nil {
		return nil, err
	}
	return r.reloadWarehouse(p, w.ID)
}
