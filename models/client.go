package models

import (
	"context"
	"strings"
	"time"

	"github.com/almacen/inventory_backend/config"
	"github.com/almacen/inventory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Client balances are accumulated outside this service; collections only decrement them.
type Client struct {
	ID        int             `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"column:nombre;size:255;not null" json:"nombre"`
	Phone     *string         `gorm:"column:telefono;size:30" json:"telefono"`
	Balance   decimal.Decimal `gorm:"column:saldo_total;type:decimal(20,4);not null;default:0" json:"saldo_total"`
	CreatedAt time.Time       `gorm:"column:fecha_registro;autoCreateTime" json:"fecha_registro"`
}

func (Client) TableName() string {
	return "clientes"
}

type NewClient struct {
	Name    string          `json:"nombre"`
	Phone   string          `json:"telefono"`
	Balance decimal.Decimal `json:"saldo_total"`
}

type ClientUpdate struct {
	Name    *string          `json:"nombre"`
	Phone   *string          `json:"telefono"`
	Balance *decimal.Decimal `json:"saldo_total"`
}

func normalizePhone(phone *string) (*string, error) {
	phone = utils.TrimPtr(phone)
	if phone == nil {
		return nil, nil
	}
	formatted, err := utils.NormalizePhoneNumber(*phone, config.PhoneRegion())
	if err != nil {
		return nil, utils.BadRequest("telefono inválido: %s", *phone)
	}
	return &formatted, nil
}

func (in NewClient) toClient() (*Client, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, utils.BadRequest("Faltan campos obligatorios: nombre")
	}
	phone, err := normalizePhone(&in.Phone)
	if err != nil {
		return nil, err
	}
	return &Client{Name: name, Phone: phone, Balance: in.Balance}, nil
}

func (u ClientUpdate) apply(c *Client) error {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return utils.BadRequest("nombre no puede estar vacío")
		}
		c.Name = name
	}
	if u.Phone != nil {
		phone, err := normalizePhone(u.Phone)
		if err != nil {
			return err
		}
		c.Phone = phone
	}
	if u.Balance != nil {
		c.Balance = *u.Balance
	}
	return nil
}

func (s *Store) ListClients(ctx context.Context) ([]Client, error) {
	return ListResource[Client](ctx, s.db, "id DESC")
}

func (s *Store) GetClient(ctx context.Context, id int) (*Client, error) {
	return GetResource[Client](ctx, s.db, id, "Cliente")
}

func (s *Store) CreateClient(ctx context.Context, in NewClient) (*Client, error) {
	c, err := in.toClient()
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) UpdateClient(ctx context.Context, id int, in ClientUpdate) (*Client, error) {
	var updated Client
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := s.forUpdate(tx).Where("id = ?", id).Take(&updated).Error; err != nil {
			return notFoundOr(err, "Cliente no encontrado")
		}
		if err := in.apply(&updated); err != nil {
			return err
		}
		return tx.Model(&updated).Select("nombre", "telefono", "saldo_total").Updates(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteClient refuses clients that still have collections.
func (s *Store) DeleteClient(ctx context.Context, id int) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		if err := utils.ValidateResourceId[Client](ctx, tx, id); err != nil {
			return notFoundOr(err, "Cliente no encontrado")
		}
		count, err := utils.ResourceCountWhere[Collection](ctx, tx, "cliente_id = ?", id)
		if err != nil {
			return err
		}
		if count > 0 {
			return utils.BadRequest("El cliente tiene %d cobros registrados", count)
		}
		return tx.Delete(&Client{}, id).Error
	})
}
