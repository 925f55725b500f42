package reports

import (
	"io"

	"github.com/almacen/inventory_backend/models"
	"github.com/shopspring/decimal"
)

var salesHeadings = []string{"ID", "Fecha", "Tipo", "Código", "Producto", "Cantidad", "Precio unitario", "Total", "Vendedor", "Cliente"}

type saleRow models.SaleView

func (r saleRow) GetCellValues() []interface{} {
	code := ""
	if r.ProductCode != nil {
		code = *r.ProductCode
	}
	return []interface{}{
		r.ID,
		r.CreatedAt.Format("2006-01-02 15:04:05"),
		r.ProductType.Label(),
		code,
		r.ProductName,
		r.Quantity.InexactFloat64(),
		r.UnitPrice.Round(2).InexactFloat64(),
		r.Total.Round(2).InexactFloat64(),
		r.Seller,
		r.Client,
	}
}

type totalRow struct {
	quantity decimal.Decimal
	total    decimal.Decimal
}

func (r totalRow) GetCellValues() []interface{} {
	return []interface{}{"TOTAL", "", "", "", "", r.quantity.InexactFloat64(), "", r.total.Round(2).InexactFloat64()}
}

// WriteSalesExcel writes the sales as a workbook with a closing TOTAL row.
func WriteSalesExcel(w io.Writer, sales []models.SaleView) error {
	rows := make([]ExcelExporter, 0, len(sales)+1)
	var sum totalRow
	for _, s := range sales {
		rows = append(rows, saleRow(s))
		sum.quantity = sum.quantity.Add(s.Quantity)
		sum.total = sum.total.Add(s.Total)
	}
	rows = append(rows, sum)
	return WriteExcel(w, "Ventas", salesHeadings, rows)
}
