package testutil

import "github.com/stage-tech/basestar-sub001/internal/ir"

// OrderSchema is the schema most store and view tests use: two indexed
// columns, one plain scalar, a sequence field and a derived flag.
func OrderSchema() ir.ObjectSchema {
	return ir.ObjectSchema{
		Name: "Order",
		Fields: map[string]string{
			"status":   ir.TypeString,
			"total":    ir.TypeFloat,
			"customer": ir.TypeString,
			"lines":    ir.TypeArray,
		},
		Indexed: []string{"status", "total"},
		Derived: map[string]string{
			"large": "total > 100",
		},
	}
}

// Order builds order data.
func Order(status string, total float64, customer string) ir.IRObject {
	return ir.IRObject{
		"status":   ir.IRString(status),
		"total":    ir.IRFloat(total),
		"customer": ir.IRString(customer),
	}
}
