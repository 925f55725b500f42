package models

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SalesStats struct {
	TotalSales   int64           `json:"total_ventas"`
	QuantitySold decimal.Decimal `json:"cantidad_vendida"`
	Revenue      decimal.Decimal `json:"ingresos_totales"`
	AverageSale  decimal.Decimal `json:"venta_promedio"`
	LargestSale  decimal.Decimal `json:"venta_maxima"`
}

type InventoryStats struct {
	TotalProducts     int64           `json:"total_productos"`
	Available         int64           `json:"disponibles"`
	Depleted          int64           `json:"agotados"`
	Sold              int64           `json:"vendidos"`
	QuantityTotal     decimal.Decimal `json:"cantidad_total"`
	QuantityRemaining decimal.Decimal `json:"cantidad_disponible"`
	InventoryValue    decimal.Decimal `json:"valor_inventario"`
}

func (s *Store) SalesStats(ctx context.Context, f SaleFilter) (*SalesStats, error) {
	var stats SalesStats
	q := s.db.WithContext(ctx).
		Model(&Sale{}).
		Select(`COUNT(*) AS total_sales,
			COALESCE(SUM(ventas.cantidad), 0) AS quantity_sold,
			COALESCE(SUM(ventas.total), 0) AS revenue,
			COALESCE(MAX(ventas.total), 0) AS largest_sale`)
	if err := f.scope(q).Scan(&stats).Error; err != nil {
		return nil, err
	}
	stats.QuantitySold = stats.QuantitySold.Round(4)
	stats.Revenue = stats.Revenue.Round(2)
	stats.LargestSale = stats.LargestSale.Round(2)
	if stats.TotalSales > 0 {
		stats.AverageSale = stats.Revenue.Div(decimal.NewFromInt(stats.TotalSales)).Round(2)
	}
	return &stats, nil
}

func (s *Store) InventoryStats(ctx context.Context, t ProductType) (*InventoryStats, error) {
	var stats InventoryStats
	q := s.db.WithContext(ctx).
		Model(&Product{}).
		Select(`COUNT(*) AS total_products,
			COALESCE(SUM(CASE WHEN estado = ? THEN 1 ELSE 0 END), 0) AS available,
			COALESCE(SUM(CASE WHEN estado = ? THEN 1 ELSE 0 END), 0) AS depleted,
			COALESCE(SUM(CASE WHEN estado = ? THEN 1 ELSE 0 END), 0) AS sold,
			COALESCE(SUM(cantidad_total), 0) AS quantity_total,
			COALESCE(SUM(cantidad_disponible), 0) AS quantity_remaining,
			COALESCE(SUM(precio * cantidad_disponible), 0) AS inventory_value`,
			StockStatusAvailable, StockStatusDepleted, StockStatusSold)
	q = q.Scopes(func(db *gorm.DB) *gorm.DB {
		if t != "" {
			return db.Where("tipo_producto = ?", t)
		}
		return db
	})
	if err := q.Scan(&stats).Error; err != nil {
		return nil, err
	}
	stats.QuantityTotal = stats.QuantityTotal.Round(4)
	stats.QuantityRemaining = stats.QuantityRemaining.Round(4)
	stats.InventoryValue = stats.InventoryValue.Round(2)
	return &stats, nil
}
