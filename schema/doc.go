// Package schema describes entity types and how they map onto relational
// storage.
//
// A Type owns Attributes and References. Each Reference is stored by one of
// three rules:
//
//   - ForeignKey: the owner's table holds a column with the target id
//   - InverseForeignKey: the target's table holds a column with the owner id
//   - JoinTable: an association table holds both ids
//
// Types may inherit from a Parent. Every type in the chain that is not
// Abstract has its own table, keyed by the same identifier.
//
// # Registry
//
// The Registry is the Provider used by the engine. Names left empty are
// derived on Finalize:
//
//	order := &schema.Type{Name: "Order"}
//	item := &schema.Type{Name: "Item"}
//	items := &schema.Reference{Name: "items", Target: item, Upper: schema.Many}
//	owner := &schema.Reference{Name: "order", Target: order, Lower: 1, Upper: 1}
//	order.References = append(order.References, items)
//	item.References = append(item.References, owner)
//	schema.Link(items, owner)
//
//	reg := schema.NewRegistry()
//	_ = reg.Register(order, item)
//	err := reg.Finalize() // items: inverse_foreign_key on items.order_id
//
// Mappings can also be loaded from YAML with LoadYAML.
package schema
