package planner

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionQuery_IsImmutable(t *testing.T) {
	base := NewCollection("warehouse", "id", "name")
	filtered := base.Where(sq.Eq{"`warehouse`.`city`": "Berlin"})
	ordered := filtered.Ordered(OrderTerm{Column: "name", Direction: Asc})

	assert.False(t, base.IsOrdered())
	assert.False(t, filtered.IsOrdered())
	assert.True(t, ordered.IsOrdered())

	baseSQL, err := base.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `warehouse`.`id`, `warehouse`.`name` FROM `warehouse`", baseSQL.SQL)

	orderedSQL, err := ordered.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `warehouse`.`id`, `warehouse`.`name` FROM `warehouse` WHERE `warehouse`.`city` = ? ORDER BY `warehouse`.`name` ASC", orderedSQL.SQL)
	assert.Equal(t, []interface{}{"Berlin"}, orderedSQL.Args)
}

func TestCollectionQuery_OrderedReplaces(t *testing.T) {
	q := NewCollection("warehouse", "id").
		Ordered(OrderTerm{Column: "email", Direction: Desc}).
		Ordered(OrderTerm{Column: "name", Direction: Asc}, OrderTerm{Column: "id", Direction: Asc})

	want := []OrderTerm{{Column: "name", Direction: Asc}, {Column: "id", Direction: Asc}}
	if diff := cmp.Diff(want, q.Order()); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "name ASC, id ASC", OrderString(q.Order()))
}

func TestCollectionQuery_WhereNilIgnored(t *testing.T) {
	q := NewCollection("stock", "id").Where(nil)
	out, err := q.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `stock`.`id` FROM `stock`", out.SQL)
}

func TestCollectionQuery_CountSQL(t *testing.T) {
	q := NewCollection("stock", "id", "quantity").
		Where(sq.Eq{"`stock`.`quantity`": 5}).
		Where(sq.Eq{"`stock`.`warehouse_id`": []string{"a", "b"}}).
		Ordered(OrderTerm{Column: "quantity", Direction: Desc})

	count, err := q.CountSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM `stock` WHERE `stock`.`quantity` = ? AND `stock`.`warehouse_id` IN (?,?)", count.SQL)
	assert.Equal(t, []interface{}{5, "a", "b"}, count.Args)
}

func TestCollectionQuery_NoColumns(t *testing.T) {
	_, err := NewCollection("stock").ToSQL()
	require.Error(t, err)
}

func TestDirection(t *testing.T) {
	assert.True(t, Asc.Valid())
	assert.True(t, Desc.Valid())
	assert.False(t, Direction("UP").Valid())
	assert.Equal(t, Desc, Asc.Flip())
	assert.Equal(t, Asc, Desc.Flip())
}
