package fixtures

// 供应链样例图：supplier_acme -[disrupted_by]-> strike_germany -[affects]-> shipment_123
const (
	SupplierACME  = "supplier_acme"
	StrikeGermany = "strike_germany"
	Shipment123   = "shipment_123"
)

// SupplyChainYAML 供应链样例图的 YAML 形式
const SupplyChainYAML = `entities:
  - id: supplier_acme
    type: supplier
    name: ACME Corp
  - id: strike_germany
    type: event
    name: Strike in Germany
  - id: shipment_123
    type: shipment
    name: Shipment 123
relationships:
  - source: supplier_acme
    target: strike_germany
    type: disrupted_by
  - source: strike_germany
    target: shipment_123
    type: affects
`
