package models

import (
	"context"

	"gorm.io/gorm"
)

// StockViolation is one broken stock rule on one product.
type StockViolation struct {
	ProductId   int         `json:"producto_id"`
	ProductType ProductType `json:"tipo_producto"`
	Code        *string     `json:"codigo"`
	Name        string      `json:"nombre"`
	Problem     string      `json:"problema"`
}

// checkStock lists the rules p breaks.
func checkStock(p *Product) []string {
	var problems []string
	if p.QuantityRemaining.IsNegative() {
		problems = append(problems, "cantidad_disponible negativa")
	}
	if p.QuantityRemaining.GreaterThan(p.QuantityTotal) {
		problems = append(problems, "cantidad_disponible supera cantidad_total")
	}
	switch p.Status {
	case StockStatusDepleted:
		if p.QuantityRemaining.IsPositive() {
			problems = append(problems, "agotado con stock disponible")
		}
	case StockStatusAvailable:
		if !p.QuantityRemaining.IsPositive() {
			problems = append(problems, "disponible sin stock")
		}
	case StockStatusSold:
	default:
		problems = append(problems, "estado desconocido: "+string(p.Status))
	}
	return problems
}

// AuditStock scans every product in batches and reports the violations found.
func (s *Store) AuditStock(ctx context.Context) ([]StockViolation, error) {
	violations := []StockViolation{}
	var batch []Product
	err := s.db.WithContext(ctx).Order("id ASC").FindInBatches(&batch, 500, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			for _, problem := range checkStock(&batch[i]) {
				violations = append(violations, StockViolation{
					ProductId:   batch[i].ID,
					ProductType: batch[i].ProductType,
					Code:        batch[i].Code,
					Name:        batch[i].Name,
					Problem:     problem,
				})
			}
		}
		return nil
	}).Error
	if err != nil {
		return nil, err
	}
	return violations, nil
}
