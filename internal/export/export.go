package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"foobar/internal/database"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	stockSheet     = "Stock"
	purchasesSheet = "Purchases"
)

// Exporter writes Excel reports under the configured export directory.
type Exporter struct {
	db     *database.DB
	path   string
	logger *zerolog.Logger
}

func NewExporter(db *database.DB, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{db: db, path: path, logger: logger}
}

// StockReport writes the current stock list with the out-of-stock
// forecast per product and returns the file path.
func (e *Exporter) StockReport(ctx context.Context) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	products, err := e.db.ListProducts(ctx, true)
	if err != nil {
		return "", fmt.Errorf("list products: %w", err)
	}

	categories, err := e.db.ListCategories(ctx)
	if err != nil {
		return "", fmt.Errorf("list categories: %w", err)
	}
	categoryNames := make(map[int64]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(stockSheet)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	writeHeaderRow(f, stockSheet, []string{"Code", "Name", "Category", "Qty", "Out of stock"})

	for i, p := range products {
		row := i + 2
		forecast := ""
		if p.OutOfStockForecast != nil {
			forecast = p.OutOfStockForecast.Format("2006-01-02")
		}
		_ = f.SetCellValue(stockSheet, fmt.Sprintf("A%d", row), p.Code)
		_ = f.SetCellValue(stockSheet, fmt.Sprintf("B%d", row), p.Name)
		_ = f.SetCellValue(stockSheet, fmt.Sprintf("C%d", row), categoryNames[p.CategoryID])
		_ = f.SetCellValue(stockSheet, fmt.Sprintf("D%d", row), p.Qty)
		_ = f.SetCellValue(stockSheet, fmt.Sprintf("E%d", row), forecast)
	}

	_ = f.SetColWidth(stockSheet, "A", "A", 16)
	_ = f.SetColWidth(stockSheet, "B", "B", 36)
	_ = f.SetColWidth(stockSheet, "C", "C", 20)
	_ = f.SetColWidth(stockSheet, "D", "E", 14)
	_ = f.DeleteSheet("Sheet1")

	filePath := filepath.Join(e.path, fmt.Sprintf("stock_%s.xlsx", time.Now().Format("2006-01-02_15-04-05")))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("products", len(products)).Msg("Stock report created")
	return filePath, nil
}

// PurchasesReport writes all purchases created in [start, end) and
// returns the file path.
func (e *Exporter) PurchasesReport(ctx context.Context, start, end time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	purchases, err := e.db.ListPurchasesBetween(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("list purchases: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(purchasesSheet)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	writeHeaderRow(f, purchasesSheet, []string{"ID", "Account", "Amount", "Status", "Created"})

	for i, p := range purchases {
		row := i + 2
		account := p.AccountID
		if account == "" {
			account = "cash"
		}
		_ = f.SetCellValue(purchasesSheet, fmt.Sprintf("A%d", row), p.ID)
		_ = f.SetCellValue(purchasesSheet, fmt.Sprintf("B%d", row), account)
		_ = f.SetCellValue(purchasesSheet, fmt.Sprintf("C%d", row), p.Amount.StringFixed(2))
		_ = f.SetCellValue(purchasesSheet, fmt.Sprintf("D%d", row), p.Status)
		_ = f.SetCellValue(purchasesSheet, fmt.Sprintf("E%d", row), p.CreatedAt.Format("2006-01-02 15:04"))
	}

	_ = f.SetColWidth(purchasesSheet, "A", "B", 38)
	_ = f.SetColWidth(purchasesSheet, "C", "E", 16)
	_ = f.DeleteSheet("Sheet1")

	filePath := filepath.Join(e.path, fmt.Sprintf("purchases_%s_to_%s.xlsx",
		start.Format("2006-01-02"), end.Format("2006-01-02")))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("purchases", len(purchases)).Msg("Purchases report created")
	return filePath, nil
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
		_ = f.SetCellStyle(sheet, cell, cell, style)
	}
}
