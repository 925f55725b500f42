package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/almacen/inventory_backend/config"
	"github.com/almacen/inventory_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StockLevel is shared by every product kind. 0 <= QuantityRemaining <= QuantityTotal.
type StockLevel struct {
	QuantityTotal     decimal.Decimal `gorm:"column:cantidad_total;type:decimal(20,4);not null;default:0" json:"cantidad_total"`
	QuantityRemaining decimal.Decimal `gorm:"column:cantidad_disponible;type:decimal(20,4);not null;default:0" json:"cantidad_disponible"`
	Status            StockStatus     `gorm:"column:estado;type:varchar(20);not null;default:'disponible';index" json:"estado"`
}

// statusFor derives the status a stock change implies.
func statusFor(remaining decimal.Decimal) StockStatus {
	if remaining.IsPositive() {
		return StockStatusAvailable
	}
	return StockStatusDepleted
}

type Product struct {
	ID           int             `gorm:"primaryKey" json:"id"`
	ProductType  ProductType     `gorm:"column:tipo_producto;type:varchar(20);not null;index" json:"tipo_producto"`
	Code         *string         `gorm:"column:codigo;size:100;uniqueIndex" json:"codigo"`
	Name         string          `gorm:"column:nombre;size:255;not null" json:"nombre"`
	Author       string          `gorm:"column:autor;size:255" json:"autor,omitempty"`
	Category     string          `gorm:"column:categoria;size:100" json:"categoria,omitempty"`
	Variety      string          `gorm:"column:tipo;size:100" json:"tipo,omitempty"`
	Origin       string          `gorm:"column:origen;size:100" json:"origen,omitempty"`
	FabricType   string          `gorm:"column:tipo_tela;size:100" json:"tipo_tela,omitempty"`
	Color        string          `gorm:"column:color;size:50" json:"color,omitempty"`
	Supplier     string          `gorm:"column:proveedor;size:255" json:"proveedor,omitempty"`
	PurchaseDate *time.Time      `gorm:"column:fecha_compra" json:"fecha_compra,omitempty"`
	UnitPrice    decimal.Decimal `gorm:"column:precio;type:decimal(20,4);not null;default:0" json:"precio"`
	WholePrice   decimal.Decimal `gorm:"column:precio_completo;type:decimal(20,4);not null;default:0" json:"precio_completo"`
	StockLevel
	ImageUrl     string    `gorm:"column:image_url;size:500" json:"image_url,omitempty"`
	RegisteredBy string    `gorm:"column:registrado_por;size:100" json:"registrado_por,omitempty"`
	CreatedAt    time.Time `gorm:"column:fecha_registro;autoCreateTime" json:"fecha_registro"`
	UpdatedAt    time.Time `gorm:"column:fecha_actualizacion;autoUpdateTime" json:"fecha_actualizacion"`
}

func (Product) TableName() string {
	return "productos"
}

func (p *Product) codeString() string {
	if p.Code == nil {
		return ""
	}
	return *p.Code
}

// ProductInput is implemented by the per-kind create bodies.
type ProductInput interface {
	ToProduct() (*Product, error)
}

type NewRoll struct {
	FabricType     string          `json:"tipo_tela"`
	Color          string          `json:"color"`
	Code           string          `json:"codigo"`
	QuantityTotal  decimal.Decimal `json:"cantidad_total"`
	PricePerMeter  decimal.Decimal `json:"precio_por_metro"`
	WholeRollPrice decimal.Decimal `json:"precio_rollo_completo"`
	PurchaseDate   string          `json:"fecha_compra"`
	Supplier       string          `json:"proveedor"`
	RegisteredBy   string          `json:"registrado_por"`
}

func (in NewRoll) ToProduct() (*Product, error) {
	var missing []string
	if strings.TrimSpace(in.FabricType) == "" {
		missing = append(missing, "tipo_tela")
	}
	if strings.TrimSpace(in.Color) == "" {
		missing = append(missing, "color")
	}
	if strings.TrimSpace(in.Code) == "" {
		missing = append(missing, "codigo")
	}
	if !in.QuantityTotal.IsPositive() {
		missing = append(missing, "cantidad_total")
	}
	if !in.PricePerMeter.IsPositive() {
		missing = append(missing, "precio_por_metro")
	}
	if len(missing) > 0 {
		return nil, utils.BadRequest("Faltan campos obligatorios: %s", strings.Join(missing, ", "))
	}
	if in.WholeRollPrice.IsNegative() {
		return nil, utils.BadRequest("precio_rollo_completo no puede ser negativo")
	}
	purchaseDate, err := utils.ParseDate(in.PurchaseDate)
	if err != nil {
		return nil, utils.BadRequest("%s", err.Error())
	}

	fabric := strings.TrimSpace(in.FabricType)
	color := strings.TrimSpace(in.Color)
	p := newProduct(ProductTypeRoll, fabric+" "+color, in.Code, in.PricePerMeter, in.QuantityTotal)
	p.FabricType = fabric
	p.Color = color
	p.WholePrice = in.WholeRollPrice
	p.PurchaseDate = purchaseDate
	p.Supplier = strings.TrimSpace(in.Supplier)
	p.RegisteredBy = strings.TrimSpace(in.RegisteredBy)
	return p, nil
}

type NewBook struct {
	Title        string          `json:"titulo"`
	Author       string          `json:"autor"`
	Category     string          `json:"categoria"`
	Price        decimal.Decimal `json:"precio"`
	Stock        decimal.Decimal `json:"stock"`
	Code         string          `json:"codigo"`
	ImageUrl     string          `json:"imageUrl"`
	RegisteredBy string          `json:"registrado_por"`
}

func (in NewBook) ToProduct() (*Product, error) {
	if err := requireNamedPrice(ProductTypeBook, "titulo", in.Title, in.Price, "stock", in.Stock); err != nil {
		return nil, err
	}
	p := newProduct(ProductTypeBook, strings.TrimSpace(in.Title), in.Code, in.Price, in.Stock)
	p.Author = strings.TrimSpace(in.Author)
	p.Category = strings.TrimSpace(in.Category)
	p.ImageUrl = strings.TrimSpace(in.ImageUrl)
	p.RegisteredBy = strings.TrimSpace(in.RegisteredBy)
	return p, nil
}

type NewCoffee struct {
	Name         string          `json:"nombre"`
	Variety      string          `json:"tipo"`
	Origin       string          `json:"origen"`
	Price        decimal.Decimal `json:"precio"`
	Stock        decimal.Decimal `json:"stock"`
	Code         string          `json:"codigo"`
	ImageUrl     string          `json:"imageUrl"`
	RegisteredBy string          `json:"registrado_por"`
}

func (in NewCoffee) ToProduct() (*Product, error) {
	if err := requireNamedPrice(ProductTypeCoffee, "nombre", in.Name, in.Price, "stock", in.Stock); err != nil {
		return nil, err
	}
	p := newProduct(ProductTypeCoffee, strings.TrimSpace(in.Name), in.Code, in.Price, in.Stock)
	p.Variety = strings.TrimSpace(in.Variety)
	p.Origin = strings.TrimSpace(in.Origin)
	p.ImageUrl = strings.TrimSpace(in.ImageUrl)
	p.RegisteredBy = strings.TrimSpace(in.RegisteredBy)
	return p, nil
}

type NewItem struct {
	Name         string          `json:"nombre"`
	Code         string          `json:"codigo"`
	Price        decimal.Decimal `json:"precio"`
	WholePrice   decimal.Decimal `json:"precio_completo"`
	Quantity     decimal.Decimal `json:"cantidad"`
	Category     string          `json:"categoria"`
	RegisteredBy string          `json:"registrado_por"`
}

func (in NewItem) ToProduct() (*Product, error) {
	if err := requireNamedPrice(ProductTypeItem, "nombre", in.Name, in.Price, "cantidad", in.Quantity); err != nil {
		return nil, err
	}
	if in.WholePrice.IsNegative() {
		return nil, utils.BadRequest("precio_completo no puede ser negativo")
	}
	p := newProduct(ProductTypeItem, strings.TrimSpace(in.Name), in.Code, in.Price, in.Quantity)
	p.WholePrice = in.WholePrice
	p.Category = strings.TrimSpace(in.Category)
	p.RegisteredBy = strings.TrimSpace(in.RegisteredBy)
	return p, nil
}

func requireNamedPrice(t ProductType, nameField, name string, price decimal.Decimal, qtyField string, qty decimal.Decimal) error {
	var missing []string
	if strings.TrimSpace(name) == "" {
		missing = append(missing, nameField)
	}
	if !price.IsPositive() {
		missing = append(missing, "precio")
	}
	if len(missing) > 0 {
		return utils.BadRequest("Faltan campos obligatorios: %s", strings.Join(missing, ", "))
	}
	if qty.IsNegative() {
		return utils.BadRequest("%s no puede ser negativo", qtyField)
	}
	return wholeUnits(t, qtyField, qty)
}

// wholeUnits rejects fractions for kinds counted in units. Rolls are measured in metres.
func wholeUnits(t ProductType, field string, qty decimal.Decimal) error {
	if t != ProductTypeRoll && !qty.Equal(qty.Truncate(0)) {
		return utils.BadRequest("%s debe ser un número entero para %s: %s", field, strings.ToLower(t.Label()), qty)
	}
	return nil
}

func newProduct(t ProductType, name, code string, unitPrice, quantity decimal.Decimal) *Product {
	return &Product{
		ProductType: t,
		Code:        utils.TrimPtr(&code),
		Name:        name,
		UnitPrice:   unitPrice,
		StockLevel: StockLevel{
			QuantityTotal:     quantity,
			QuantityRemaining: quantity,
			Status:            statusFor(quantity),
		},
	}
}

// ProductUpdate is a partial update; nil fields are left alone. Kind-specific aliases
// (titulo, precio_por_metro, precio_rollo_completo, stock, imageUrl) map onto the shared columns.
type ProductUpdate struct {
	Code              *string          `json:"codigo"`
	Name              *string          `json:"nombre"`
	Title             *string          `json:"titulo"`
	Author            *string          `json:"autor"`
	Category          *string          `json:"categoria"`
	Variety           *string          `json:"tipo"`
	Origin            *string          `json:"origen"`
	FabricType        *string          `json:"tipo_tela"`
	Color             *string          `json:"color"`
	Supplier          *string          `json:"proveedor"`
	PurchaseDate      *string          `json:"fecha_compra"`
	UnitPrice         *decimal.Decimal `json:"precio"`
	PricePerMeter     *decimal.Decimal `json:"precio_por_metro"`
	WholePrice        *decimal.Decimal `json:"precio_completo"`
	WholeRollPrice    *decimal.Decimal `json:"precio_rollo_completo"`
	QuantityTotal     *decimal.Decimal `json:"cantidad_total"`
	QuantityRemaining *decimal.Decimal `json:"cantidad_disponible"`
	Stock             *decimal.Decimal `json:"stock"`
	Status            *StockStatus     `json:"estado" binding:"omitempty,estado_stock"`
	ImageUrl          *string          `json:"image_url"`
	ImageUrlAlias     *string          `json:"imageUrl"`
	RegisteredBy      *string          `json:"registrado_por"`
}

func firstString(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstDecimal(values ...*decimal.Decimal) *decimal.Decimal {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// apply mutates p and re-checks the stock invariant.
func (u ProductUpdate) apply(p *Product) error {
	if v := firstString(u.Name, u.Title); v != nil {
		name := strings.TrimSpace(*v)
		if name == "" {
			return utils.BadRequest("nombre no puede estar vacío")
		}
		p.Name = name
	}
	if u.Code != nil {
		p.Code = utils.TrimPtr(u.Code)
		if p.ProductType == ProductTypeRoll && p.Code == nil {
			return utils.BadRequest("codigo es obligatorio para rollos")
		}
	}
	setTrimmed := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setTrimmed(&p.Author, u.Author)
	setTrimmed(&p.Category, u.Category)
	setTrimmed(&p.Variety, u.Variety)
	setTrimmed(&p.Origin, u.Origin)
	setTrimmed(&p.FabricType, u.FabricType)
	setTrimmed(&p.Color, u.Color)
	setTrimmed(&p.Supplier, u.Supplier)
	setTrimmed(&p.ImageUrl, firstString(u.ImageUrl, u.ImageUrlAlias))
	setTrimmed(&p.RegisteredBy, u.RegisteredBy)
	if u.PurchaseDate != nil {
		d, err := utils.ParseDate(*u.PurchaseDate)
		if err != nil {
			return utils.BadRequest("%s", err.Error())
		}
		p.PurchaseDate = d
	}
	if v := firstDecimal(u.UnitPrice, u.PricePerMeter); v != nil {
		if !v.IsPositive() {
			return utils.BadRequest("precio debe ser mayor a cero")
		}
		p.UnitPrice = *v
	}
	if v := firstDecimal(u.WholePrice, u.WholeRollPrice); v != nil {
		if v.IsNegative() {
			return utils.BadRequest("precio_completo no puede ser negativo")
		}
		p.WholePrice = *v
	}

	stockChanged := false
	if u.QuantityTotal != nil {
		p.QuantityTotal = *u.QuantityTotal
		stockChanged = true
	}
	if u.QuantityRemaining != nil {
		p.QuantityRemaining = *u.QuantityRemaining
		stockChanged = true
	}
	// "stock" is the single counter of books and coffees; it raises the total when needed.
	if u.Stock != nil {
		p.QuantityRemaining = *u.Stock
		if p.QuantityRemaining.GreaterThan(p.QuantityTotal) {
			p.QuantityTotal = p.QuantityRemaining
		}
		stockChanged = true
	}
	if p.QuantityRemaining.IsNegative() || p.QuantityTotal.IsNegative() {
		return utils.BadRequest("las cantidades no pueden ser negativas")
	}
	if stockChanged {
		if err := wholeUnits(p.ProductType, "cantidad_total", p.QuantityTotal); err != nil {
			return err
		}
		if err := wholeUnits(p.ProductType, "cantidad_disponible", p.QuantityRemaining); err != nil {
			return err
		}
	}
	if p.QuantityRemaining.GreaterThan(p.QuantityTotal) {
		return utils.BadRequest("cantidad_disponible (%s) no puede superar cantidad_total (%s)", p.QuantityRemaining, p.QuantityTotal)
	}

	switch {
	case u.Status != nil:
		status := *u.Status
		if !status.IsValid() {
			return utils.BadRequest("estado inválido: %q", status)
		}
		if status == StockStatusAvailable && !p.QuantityRemaining.IsPositive() {
			return utils.BadRequest("un producto sin stock no puede estar disponible")
		}
		if status == StockStatusDepleted && p.QuantityRemaining.IsPositive() {
			return utils.BadRequest("un producto con stock no puede estar agotado")
		}
		p.Status = status
	case stockChanged:
		p.Status = statusFor(p.QuantityRemaining)
	}
	return nil
}

type ProductFilter struct {
	Type   ProductType
	Status StockStatus
	Query  string
}

func (f ProductFilter) cacheable() bool {
	return f.Status == "" && f.Query == ""
}

// ListProducts returns newest first. Unfiltered lists are served from Redis when a cache is configured;
// a list is only stored if no product write landed while it was being read.
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	cacheKey := productListCacheKey(f.Type)
	cacheable := f.cacheable() && s.cache != nil
	var version int64
	if cacheable {
		var cached []Product
		exists, err := config.GetRedisObject(ctx, s.cache, cacheKey, &cached)
		if err != nil {
			config.LogError(s.logger, "Store", "ListProducts", "read cached product list", cacheKey, err)
		} else if exists {
			return cached, nil
		}
		// Read before the query: a write committed after this point bumps it.
		if version, err = config.GetRedisVersion(ctx, s.cache, productListVersionKey); err != nil {
			config.LogError(s.logger, "Store", "ListProducts", "read product list version", cacheKey, err)
			cacheable = false
		}
	}

	products, err := ListResource[Product](ctx, s.db, "id DESC", func(q *gorm.DB) *gorm.DB {
		if f.Type != "" {
			q = q.Where("tipo_producto = ?", f.Type)
		}
		if f.Status != "" {
			q = q.Where("estado = ?", f.Status)
		}
		if term := strings.TrimSpace(f.Query); term != "" {
			like := "%" + term + "%"
			q = q.Where("nombre LIKE ? OR codigo LIKE ?", like, like)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	if cacheable {
		if _, err := config.SetRedisObjectIfVersion(ctx, s.cache, cacheKey, productListVersionKey, version, products, s.cacheTTL); err != nil {
			config.LogError(s.logger, "Store", "ListProducts", "cache product list", cacheKey, err)
		}
	}
	return products, nil
}

// GetProduct returns NotFound when the id is missing or belongs to another kind.
func (s *Store) GetProduct(ctx context.Context, id int, t ProductType) (*Product, error) {
	var p Product
	q := s.db.WithContext(ctx).Where("id = ?", id)
	if t != "" {
		q = q.Where("tipo_producto = ?", t)
	}
	if err := q.Take(&p).Error; err != nil {
		return nil, notFoundOr(err, productNotFoundMessage(t))
	}
	return &p, nil
}

func productNotFoundMessage(t ProductType) string {
	if t == "" {
		return "Producto no encontrado"
	}
	return fmt.Sprintf("%s no encontrado", t.Label())
}

func (s *Store) CreateProduct(ctx context.Context, p *Product, actor string) error {
	if !p.ProductType.IsValid() {
		return utils.BadRequest("tipo_producto inválido: %q", p.ProductType)
	}
	if p.Code != nil {
		if err := utils.ValidateUnique[Product](ctx, s.db, "codigo", *p.Code, nil); err != nil {
			return err
		}
	}
	p.ID = 0
	actor = utils.ActorOrDefault(ctx, actor)
	if p.RegisteredBy == "" {
		p.RegisteredBy = actor
	}

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return translateWriteError(err, "codigo duplicado: "+p.codeString())
		}
		return createHistory(tx, HistoryActionCreated, p, nil, p, fmt.Sprintf("%s registrado: %s", p.ProductType.Label(), p.Name), actor)
	})
	if err != nil {
		return err
	}
	s.invalidateProducts(ctx, p.ProductType)
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, id int, t ProductType, in ProductUpdate, actor string) (*Product, error) {
	actor = utils.ActorOrDefault(ctx, actor)
	var updated Product
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		q := s.forUpdate(tx).Where("id = ?", id)
		if t != "" {
			q = q.Where("tipo_producto = ?", t)
		}
		var current Product
		if err := q.Take(&current).Error; err != nil {
			return notFoundOr(err, productNotFoundMessage(t))
		}
		before := current
		if err := in.apply(&current); err != nil {
			return err
		}
		if current.Code != nil && current.codeString() != before.codeString() {
			if err := utils.ValidateUnique[Product](ctx, tx, "codigo", *current.Code, current.ID); err != nil {
				return err
			}
		}
		if err := tx.Model(&current).Select("*").Omit("id", "fecha_registro").Updates(&current).Error; err != nil {
			return translateWriteError(err, "codigo duplicado: "+current.codeString())
		}
		if err := createHistory(tx, HistoryActionUpdated, &current, before, current, "Producto actualizado", actor); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateProducts(ctx, updated.ProductType)
	return &updated, nil
}

// DeleteProduct removes the product together with its sales, history and out-of-stock rows.
func (s *Store) DeleteProduct(ctx context.Context, id int, t ProductType, actor string) error {
	actor = utils.ActorOrDefault(ctx, actor)
	var deleted Product
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		q := s.forUpdate(tx).Where("id = ?", id)
		if t != "" {
			q = q.Where("tipo_producto = ?", t)
		}
		if err := q.Take(&deleted).Error; err != nil {
			return notFoundOr(err, productNotFoundMessage(t))
		}
		for _, model := range []interface{}{&Sale{}, &HistoryEntry{}, &OutOfStock{}} {
			if err := tx.Where("producto_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&Product{}, id).Error
	})
	if err != nil {
		return err
	}
	config.LoggerFromContext(ctx, s.logger).WithFields(logrus.Fields{
		"producto_id":   id,
		"tipo_producto": deleted.ProductType,
		"usuario":       actor,
	}).Info("product deleted")
	s.invalidateProducts(ctx, deleted.ProductType)
	return nil
}
