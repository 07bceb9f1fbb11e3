package planner

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanInsert(t *testing.T) {
	plan, err := PlanInsert("warehouse", []string{"id", "name"}, []interface{}{"w-1", "Main"})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `warehouse` (`id`,`name`) VALUES (?,?)", plan.SQL)
	assert.Equal(t, []interface{}{"w-1", "Main"}, plan.Args)

	_, err = PlanInsert("warehouse", nil, nil)
	require.Error(t, err)
	_, err = PlanInsert("warehouse", []string{"id"}, []interface{}{"a", "b"})
	require.Error(t, err)
}

func TestPlanInsertIgnore(t *testing.T) {
	plan, err := PlanInsertIgnore("warehouse_shipping_zone", []string{"warehouse_id", "shipping_zone_id"}, [][]interface{}{
		{"w-1", int64(1)},
		{"w-1", int64(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT IGNORE INTO `warehouse_shipping_zone` (`warehouse_id`,`shipping_zone_id`) VALUES (?,?),(?,?)", plan.SQL)
	assert.Equal(t, []interface{}{"w-1", int64(1), "w-1", int64(2)}, plan.Args)

	_, err = PlanInsertIgnore("warehouse_shipping_zone", []string{"warehouse_id"}, nil)
	require.Error(t, err)
}

func TestPlanUpdate(t *testing.T) {
	plan, err := PlanUpdate("warehouse", map[string]interface{}{"name": "B", "email": "b@x.io"}, sq.Eq{"id": "w-1"})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `warehouse` SET `email` = ?, `name` = ? WHERE `id` = ?", plan.SQL)
	assert.Equal(t, []interface{}{"b@x.io", "B", "w-1"}, plan.Args)

	_, err = PlanUpdate("warehouse", nil, sq.Eq{"id": "w-1"})
	assert.EqualError(t, err, "update set cannot be empty")
	_, err = PlanUpdate("warehouse", map[string]interface{}{"name": "B"}, nil)
	require.Error(t, err)
}

func TestPlanDelete(t *testing.T) {
	plan, err := PlanDelete("warehouse_shipping_zone", sq.Eq{"warehouse_id": "w-1", "shipping_zone_id": []int64{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `warehouse_shipping_zone` WHERE `shipping_zone_id` IN (?,?) AND `warehouse_id` = ?", plan.SQL)
	assert.Equal(t, []interface{}{int64(1), int64(2), "w-1"}, plan.Args)

	_, err = PlanDelete("warehouse", sq.Eq{})
	require.Error(t, err)
}
