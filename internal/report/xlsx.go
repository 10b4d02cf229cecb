// Package report renders analysis results as XLSX workbooks.
package report

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/gavriccccc-tech/skinfolio/internal/model"
)

const dateFormat = "2006-01-02 15:04"

// SalesWorkbook builds a workbook with one row per realized sale.
func SalesWorkbook(realizations []model.SaleRealization) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "Sales"
	f.SetSheetName("Sheet1", sheet)

	header := []any{
		"Sold At", "Game", "Item", "Quantity", "Unit Price",
		"Gross", "Commission", "Net", "Purchase Cost", "Profit", "ROI %",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("report: write header: %w", err)
	}

	for i, sale := range realizations {
		row := []any{
			sale.SoldAt.Format(dateFormat),
			sale.Game,
			sale.Item,
			sale.Quantity,
			toFloat(sale.UnitPrice),
			toFloat(sale.Gross),
			toFloat(sale.Commission),
			toFloat(sale.Net),
			toFloat(sale.PurchaseCost),
			toFloat(sale.Profit),
			toFloat(sale.ROIPercent),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("report: write row %d: %w", i+2, err)
		}
	}

	if err := boldHeader(f, sheet, len(header)); err != nil {
		return nil, err
	}
	return f, nil
}

// PortfolioWorkbook builds a workbook with one row per analysed lot.
func PortfolioWorkbook(rows []model.LotAnalysis) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "Portfolio"
	f.SetSheetName("Sheet1", sheet)

	header := []any{
		"Game", "Item", "Acquired At", "Quantity", "Purchase Price",
		"Current Price", "Previous Price", "Change %", "Gross Sale",
		"Commission", "Net Sale", "Profit", "Profit %", "Recommendation",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("report: write header: %w", err)
	}

	for i, lot := range rows {
		row := []any{
			lot.Game,
			lot.Item,
			lot.AcquiredAt.Format(dateFormat),
			lot.Quantity,
			toFloat(lot.PurchasePrice),
			toFloat(lot.CurrentPrice),
			toFloat(lot.PreviousPrice),
			toFloat(lot.PriceChangePct),
			toFloat(lot.GrossSale),
			toFloat(lot.Commission),
			toFloat(lot.NetSale),
			toFloat(lot.Profit),
			toFloat(lot.ProfitPercent),
			lot.Recommendation,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("report: write row %d: %w", i+2, err)
		}
	}

	if err := boldHeader(f, sheet, len(header)); err != nil {
		return nil, err
	}
	return f, nil
}

func boldHeader(f *excelize.File, sheet string, cols int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("report: header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return fmt.Errorf("report: header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("report: apply header style: %w", err)
	}
	return nil
}

// toFloat renders a decimal for spreadsheet cells. Display only; all
// arithmetic stays in decimal.
func toFloat(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
