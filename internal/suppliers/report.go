package suppliers

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"foobar/internal/models"

	"github.com/shopspring/decimal"
)

// reportRowPattern matches the tabular rows of a delivery report once
// pdftotext has flattened the PDF: an SKU, the product name, a package
// count and a price. Header, footer and free-text lines fall through.
var reportRowPattern = regexp.MustCompile(
	`^\s*(\d{4,})\s+(.+?)\s{2,}(\d+)\s+(\d+[.,]\d{2})\s*$`,
)

// ParseDeliveryReport extracts item rows from a PDF delivery report.
// It shells out to pdftotext in layout mode, which keeps the columns
// aligned so rows stay matchable.
func (c *Client) ParseDeliveryReport(ctx context.Context, reportPath string) ([]models.ReportRow, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", reportPath, "-")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("pdftotext failed: %s: %w", strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}

	rows, err := parseReportText(string(output))
	if err != nil {
		return nil, err
	}

	c.logger.Info().Str("report", reportPath).Int("rows", len(rows)).Msg("Delivery report parsed")
	return rows, nil
}

func parseReportText(text string) ([]models.ReportRow, error) {
	var rows []models.ReportRow
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		match := reportRowPattern.FindStringSubmatch(scanner.Text())
		if match == nil {
			continue
		}

		qty, err := strconv.ParseInt(match[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q: %w", match[3], err)
		}
		price, err := decimal.NewFromString(strings.ReplaceAll(match[4], ",", "."))
		if err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", match[4], err)
		}

		rows = append(rows, models.ReportRow{
			SKU:   match[1],
			Name:  strings.TrimSpace(match[2]),
			Qty:   qty,
			Price: price,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan report text: %w", err)
	}
	return rows, nil
}
