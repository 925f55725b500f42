package models

import (
	"context"
	"strings"
	"time"

	"github.com/almacen/inventory_backend/config"
	"github.com/almacen/inventory_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Collection (cobro) is a payment received from a client against their balance.
type Collection struct {
	ID           int             `gorm:"primaryKey" json:"id"`
	ClientId     int             `gorm:"column:cliente_id;index;not null" json:"cliente_id"`
	Amount       decimal.Decimal `gorm:"column:monto;type:decimal(20,4);not null" json:"monto"`
	Method       string          `gorm:"column:metodo;size:50" json:"metodo,omitempty"`
	Note         string          `gorm:"column:nota;size:255" json:"nota,omitempty"`
	RegisteredBy string          `gorm:"column:registrado_por;size:100" json:"registrado_por,omitempty"`
	CreatedAt    time.Time       `gorm:"column:fecha;autoCreateTime" json:"fecha"`
}

func (Collection) TableName() string {
	return "cobros"
}

type NewCollection struct {
	ClientId     int             `json:"cliente_id"`
	Amount       decimal.Decimal `json:"monto"`
	Method       string          `json:"metodo"`
	Note         string          `json:"nota"`
	RegisteredBy string          `json:"registrado_por"`
}

type CollectionResult struct {
	Collection *Collection     `json:"cobro"`
	Balance    decimal.Decimal `json:"saldo_total"`
}

func (s *Store) ListCollections(ctx context.Context, clientId int) ([]Collection, error) {
	return ListResource[Collection](ctx, s.db, "fecha DESC, id DESC", func(q *gorm.DB) *gorm.DB {
		if clientId > 0 {
			q = q.Where("cliente_id = ?", clientId)
		}
		return q
	})
}

// CreateCollection records the payment and lowers the client balance in one transaction.
// Paying more than is owed is accepted: the balance goes negative, a credit in the client's
// favour, and a warning is logged so it can be reviewed.
func (s *Store) CreateCollection(ctx context.Context, in NewCollection) (*CollectionResult, error) {
	if in.ClientId <= 0 {
		return nil, utils.BadRequest("Faltan campos obligatorios: cliente_id")
	}
	if !in.Amount.IsPositive() {
		return nil, utils.BadRequest("monto debe ser mayor a cero")
	}

	var result CollectionResult
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var client Client
		if err := s.forUpdate(tx).Where("id = ?", in.ClientId).Take(&client).Error; err != nil {
			return notFoundOr(err, "Cliente no encontrado")
		}
		collection := Collection{
			ClientId:     client.ID,
			Amount:       in.Amount,
			Method:       strings.TrimSpace(in.Method),
			Note:         strings.TrimSpace(in.Note),
			RegisteredBy: utils.ActorOrDefault(ctx, strings.TrimSpace(in.RegisteredBy)),
		}
		if err := tx.Create(&collection).Error; err != nil {
			return err
		}
		balance := client.Balance.Sub(in.Amount)
		if err := tx.Model(&Client{}).Where("id = ?", client.ID).Update("saldo_total", balance).Error; err != nil {
			return err
		}
		result = CollectionResult{Collection: &collection, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Balance.IsNegative() {
		config.LoggerFromContext(ctx, s.logger).WithFields(logrus.Fields{
			"cliente_id":  in.ClientId,
			"cobro_id":    result.Collection.ID,
			"monto":       in.Amount.String(),
			"saldo_total": result.Balance.String(),
		}).Warn("collection leaves the client with a negative balance")
	}
	return &result, nil
}

// DeleteCollection removes the payment and gives the amount back to the client balance.
func (s *Store) DeleteCollection(ctx context.Context, id int) (*CollectionResult, error) {
	var result CollectionResult
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var collection Collection
		if err := s.forUpdate(tx).Where("id = ?", id).Take(&collection).Error; err != nil {
			return notFoundOr(err, "Cobro no encontrado")
		}
		var client Client
		if err := s.forUpdate(tx).Where("id = ?", collection.ClientId).Take(&client).Error; err != nil {
			return notFoundOr(err, "Cliente no encontrado")
		}
		balance := client.Balance.Add(collection.Amount)
		if err := tx.Model(&Client{}).Where("id = ?", client.ID).Update("saldo_total", balance).Error; err != nil {
			return err
		}
		if err := tx.Delete(&Collection{}, id).Error; err != nil {
			return err
		}
		result = CollectionResult{Collection: &collection, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
