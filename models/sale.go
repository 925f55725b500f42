package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/almacen/inventory_backend/config"
	"github.com/almacen/inventory_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/almacen/inventory_backend/models")

// ErrConcurrentUpdate means the guarded stock update matched no row; the sale is retried.
var ErrConcurrentUpdate = errors.New("stock changed while the sale was being recorded")

const (
	saleAttempts = 3
	saleLockTTL  = 10 * time.Second
	saleLockWait = 2 * time.Second
)

type Sale struct {
	ID          int             `gorm:"primaryKey" json:"id"`
	ProductId   int             `gorm:"column:producto_id;index;not null" json:"producto_id"`
	ProductType ProductType     `gorm:"column:tipo_producto;type:varchar(20);not null;index" json:"tipo_producto"`
	Quantity    decimal.Decimal `gorm:"column:cantidad;type:decimal(20,4);not null" json:"cantidad"`
	UnitPrice   decimal.Decimal `gorm:"column:precio_unitario;type:decimal(20,4);not null" json:"precio_unitario"`
	Total       decimal.Decimal `gorm:"column:total;type:decimal(20,4);not null" json:"total"`
	Seller      string          `gorm:"column:vendedor;size:100;not null" json:"vendedor"`
	Client      string          `gorm:"column:cliente;size:255" json:"cliente,omitempty"`
	CreatedAt   time.Time       `gorm:"column:fecha;autoCreateTime" json:"fecha"`
}

func (Sale) TableName() string {
	return "ventas"
}

// SaleView is a sale joined with the descriptive fields of its product.
type SaleView struct {
	Sale
	ProductName string  `gorm:"column:nombre" json:"nombre"`
	ProductCode *string `gorm:"column:codigo" json:"codigo"`
}

// NewSale accepts both the generic body and the roll body (rollo_id, cantidad_vendida).
// A supplied precio_total is only checked against the server total, never charged.
type NewSale struct {
	ProductId    int              `json:"producto_id"`
	RollId       int              `json:"rollo_id"`
	ProductType  ProductType      `json:"tipo_producto" binding:"omitempty,tipo_producto"`
	Quantity     decimal.Decimal  `json:"cantidad"`
	QuantitySold decimal.Decimal  `json:"cantidad_vendida"`
	TotalPrice   *decimal.Decimal `json:"precio_total"`
	Seller       string           `json:"vendedor"`
	Client       string           `json:"cliente"`
}

func (in *NewSale) normalize() {
	if in.ProductId == 0 && in.RollId > 0 {
		in.ProductId = in.RollId
		if in.ProductType == "" {
			in.ProductType = ProductTypeRoll
		}
	}
	if in.Quantity.IsZero() && !in.QuantitySold.IsZero() {
		in.Quantity = in.QuantitySold
	}
	in.Seller = strings.TrimSpace(in.Seller)
	in.Client = strings.TrimSpace(in.Client)
}

func (in *NewSale) validate() error {
	if in.ProductType != "" && !in.ProductType.IsValid() {
		return utils.BadRequest("tipo_producto inválido: %q", in.ProductType)
	}
	var missing []string
	if in.ProductId <= 0 {
		missing = append(missing, "producto_id")
	}
	if in.Quantity.IsZero() {
		missing = append(missing, "cantidad")
	}
	if in.Seller == "" {
		missing = append(missing, "vendedor")
	}
	if len(missing) > 0 {
		return utils.BadRequest("Datos incompletos: %s", strings.Join(missing, ", "))
	}
	if in.Quantity.IsNegative() {
		return utils.BadRequest("La cantidad debe ser mayor a cero")
	}
	return nil
}

type salePlan struct {
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	Remaining decimal.Decimal
	Status    StockStatus
	WholeUnit bool
}

// planSale is the pure part of a sale: stock check, pricing and the resulting stock level.
// Taking a whole untouched unit (an entire roll) charges the whole-unit price when one is set.
func planSale(p *Product, qty decimal.Decimal, quoted *decimal.Decimal) (salePlan, error) {
	if !qty.IsPositive() {
		return salePlan{}, utils.BadRequest("La cantidad debe ser mayor a cero")
	}
	if err := wholeUnits(p.ProductType, "cantidad", qty); err != nil {
		return salePlan{}, err
	}
	if qty.GreaterThan(p.QuantityRemaining) {
		return salePlan{}, utils.InsufficientStock("Stock insuficiente: disponible %s, solicitado %s", p.QuantityRemaining, qty)
	}

	plan := salePlan{UnitPrice: p.UnitPrice}
	if p.WholePrice.IsPositive() && qty.Equal(p.QuantityTotal) && qty.Equal(p.QuantityRemaining) {
		plan.Total = p.WholePrice.Round(2)
		plan.WholeUnit = true
	} else {
		plan.Total = p.UnitPrice.Mul(qty).Round(2)
	}
	if quoted != nil && !quoted.Round(2).Equal(plan.Total) {
		return salePlan{}, utils.BadRequest("precio_total %s no coincide con el total calculado %s", quoted.StringFixed(2), plan.Total.StringFixed(2))
	}

	plan.Remaining = p.QuantityRemaining.Sub(qty)
	if plan.Remaining.IsNegative() {
		plan.Remaining = decimal.Zero
	}
	plan.Status = statusFor(plan.Remaining)
	return plan, nil
}

type SaleResult struct {
	Sale              *Sale           `json:"venta"`
	RemainingQuantity decimal.Decimal `json:"cantidad_restante"`
	Status            StockStatus     `json:"estado"`
	Total             decimal.Decimal `json:"total"`
}

type saleEvent struct {
	Sale              *Sale           `json:"venta"`
	RemainingQuantity decimal.Decimal `json:"cantidad_restante"`
	Status            StockStatus     `json:"estado"`
	ProductCode       *string         `json:"codigo"`
}

// RecordSale runs the sale as one transaction: row-locked read, stock check, sale insert,
// guarded stock decrement, history entry, out-of-stock entry and outbox event.
// A Redis lock on the product is taken when available but is never required.
func (s *Store) RecordSale(ctx context.Context, in NewSale) (*SaleResult, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "RecordSale", trace.WithAttributes(
		attribute.Int("producto_id", in.ProductId),
		attribute.String("cantidad", in.Quantity.String()),
	))
	defer span.End()

	release, _ := utils.TryLock(ctx, s.locker, s.logger, fmt.Sprintf("saleLock:%d", in.ProductId), saleLockTTL, saleLockWait)
	defer release()

	var result *SaleResult
	var err error
	for attempt := 1; attempt <= saleAttempts; attempt++ {
		result, err = s.recordSaleOnce(ctx, in)
		if !errors.Is(err, ErrConcurrentUpdate) {
			break
		}
		config.LoggerFromContext(ctx, s.logger).WithFields(logrus.Fields{
			"producto_id": in.ProductId,
			"attempt":     attempt,
		}).Warn("stock changed during sale; retrying")
	}
	if err != nil {
		span.RecordError(err)
		if utils.KindOf(err) == utils.KindInternal {
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	s.invalidateProducts(ctx, result.Sale.ProductType)
	return result, nil
}

func (s *Store) recordSaleOnce(ctx context.Context, in NewSale) (*SaleResult, error) {
	var result *SaleResult
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		q := s.forUpdate(tx).Where("id = ?", in.ProductId)
		if in.ProductType != "" {
			q = q.Where("tipo_producto = ?", in.ProductType)
		}
		var product Product
		if err := q.Take(&product).Error; err != nil {
			return notFoundOr(err, "Producto no encontrado")
		}

		plan, err := planSale(&product, in.Quantity, in.TotalPrice)
		if err != nil {
			return err
		}

		sale := Sale{
			ProductId:   product.ID,
			ProductType: product.ProductType,
			Quantity:    in.Quantity,
			UnitPrice:   plan.UnitPrice,
			Total:       plan.Total,
			Seller:      in.Seller,
			Client:      in.Client,
		}
		if err := tx.Create(&sale).Error; err != nil {
			return err
		}

		// The WHERE on the value read above is the optimistic check behind the row lock.
		res := tx.Model(&Product{}).
			Where("id = ? AND cantidad_disponible = ?", product.ID, product.QuantityRemaining).
			Updates(map[string]interface{}{
				"cantidad_disponible": plan.Remaining,
				"estado":              plan.Status,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrConcurrentUpdate
		}

		before := product.StockLevel
		after := StockLevel{QuantityTotal: product.QuantityTotal, QuantityRemaining: plan.Remaining, Status: plan.Status}
		details := fmt.Sprintf("Vendido %s de %s por %s", in.Quantity, product.Name, plan.Total.StringFixed(2))
		if in.Client != "" {
			details += " a " + in.Client
		}
		if err := createHistory(tx, HistoryActionSale, &product, before, after, details, in.Seller); err != nil {
			return err
		}

		if plan.Status == StockStatusDepleted {
			if err := tx.Create(&OutOfStock{
				ProductId:   product.ID,
				ProductType: product.ProductType,
				Code:        product.Code,
				Name:        product.Name,
				SaleId:      sale.ID,
			}).Error; err != nil {
				return err
			}
		}

		if s.events {
			if err := enqueueEvent(ctx, tx, EventSaleRecorded, product.ID, saleEvent{
				Sale:              &sale,
				RemainingQuantity: plan.Remaining,
				Status:            plan.Status,
				ProductCode:       product.Code,
			}); err != nil {
				return err
			}
		}

		result = &SaleResult{
			Sale:              &sale,
			RemainingQuantity: plan.Remaining,
			Status:            plan.Status,
			Total:             plan.Total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type SaleFilter struct {
	Type      ProductType
	ProductId int
	From      *time.Time
	To        *time.Time
}

// scope applies the filter to a query over ventas. To is inclusive of the whole day.
func (f SaleFilter) scope(q *gorm.DB) *gorm.DB {
	if f.Type != "" {
		q = q.Where("ventas.tipo_producto = ?", f.Type)
	}
	if f.ProductId > 0 {
		q = q.Where("ventas.producto_id = ?", f.ProductId)
	}
	if f.From != nil {
		q = q.Where("ventas.fecha >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("ventas.fecha < ?", f.To.AddDate(0, 0, 1))
	}
	return q
}

// ListSales returns the newest sales first, each with its product name and code.
func (s *Store) ListSales(ctx context.Context, f SaleFilter) ([]SaleView, error) {
	views := []SaleView{}
	q := s.db.WithContext(ctx).
		Table("ventas").
		Select("ventas.*, productos.nombre AS nombre, productos.codigo AS codigo").
		Joins("JOIN productos ON productos.id = ventas.producto_id")
	err := f.scope(q).
		Order("ventas.fecha DESC, ventas.id DESC").
		Scan(&views).Error
	if err != nil {
		return nil, err
	}
	return views, nil
}
