package models

import "fmt"

type ProductType string

const (
	ProductTypeBook   ProductType = "libro"
	ProductTypeCoffee ProductType = "cafe"
	ProductTypeRoll   ProductType = "rollo"
	ProductTypeItem   ProductType = "articulo"
)

var productTypes = []ProductType{ProductTypeBook, ProductTypeCoffee, ProductTypeRoll, ProductTypeItem}

func (t ProductType) IsValid() bool {
	for _, v := range productTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Label is the human name used in history details and exports.
func (t ProductType) Label() string {
	switch t {
	case ProductTypeBook:
		return "Libro"
	case ProductTypeCoffee:
		return "Café"
	case ProductTypeRoll:
		return "Rollo"
	case ProductTypeItem:
		return "Artículo"
	default:
		return string(t)
	}
}

func ProductTypeValues() []string {
	out := make([]string, len(productTypes))
	for i, v := range productTypes {
		out[i] = string(v)
	}
	return out
}

// ParseProductType accepts "" as "no filter".
func ParseProductType(s string) (ProductType, error) {
	t := ProductType(s)
	if s == "" || t.IsValid() {
		return t, nil
	}
	return "", fmt.Errorf("tipo_producto inválido: %q", s)
}

type StockStatus string

const (
	StockStatusAvailable StockStatus = "disponible"
	StockStatusSold      StockStatus = "vendido"
	StockStatusDepleted  StockStatus = "agotado"
)

func (s StockStatus) IsValid() bool {
	switch s {
	case StockStatusAvailable, StockStatusSold, StockStatusDepleted:
		return true
	}
	return false
}

func StockStatusValues() []string {
	return []string{string(StockStatusAvailable), string(StockStatusSold), string(StockStatusDepleted)}
}

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

const (
	EventSaleRecorded = "venta.registrada"
)

const (
	HistoryActionCreated = "Producto registrado"
	HistoryActionUpdated = "Producto actualizado"
	HistoryActionSale    = "Venta realizada"
)
