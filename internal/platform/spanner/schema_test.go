package spanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements_CoverEveryTable(t *testing.T) {
	stmts := Statements()
	require.NotEmpty(t, stmts)

	names := make([]string, 0, len(stmts))
	for _, s := range stmts {
		names = append(names, objectName(s))
	}
	for _, table := range []string{"Products", "PriceOverrides", "Currencies", "CartLines", "Inventory", "Orders", "OrderItems", "OrderRefunds", "OrderNotes"} {
		assert.Contains(t, names, table)
	}
	assert.Contains(t, names, "OrdersByNumber")
	assert.Contains(t, names, "OrdersByUserID")
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "Orders", objectName("CREATE TABLE Orders (\n  OrderID STRING(36) NOT NULL\n) PRIMARY KEY (OrderID)"))
	assert.Equal(t, "OrdersByNumber", objectName("CREATE UNIQUE INDEX OrdersByNumber ON Orders(OrderNumber)"))
	assert.Equal(t, "Inventory", objectName("CREATE TABLE Inventory(ProductID STRING(36))"))
}

func TestPending_SkipsExistingObjects(t *testing.T) {
	current := []string{
		"CREATE TABLE Products (\n  ProductID STRING(36) NOT NULL,\n) PRIMARY KEY(ProductID)",
		"CREATE UNIQUE INDEX ProductsBySKU ON Products(SKU)",
	}
	pending := Pending(current, Statements())

	assert.Len(t, pending, len(Statements())-2)
	for _, stmt := range pending {
		assert.NotEqual(t, "Products", objectName(stmt))
		assert.NotEqual(t, "ProductsBySKU", objectName(stmt))
	}
}
