package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"foobar/internal/config"
	"foobar/internal/suppliers"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Parses a supplier delivery report and prints the extracted rows.
// Useful for checking a PDF before registering the delivery.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	supplierName := flag.String("supplier", "", "supplier internal name")
	reportPath := flag.String("file", "", "path to the delivery report PDF")
	flag.Parse()

	if *supplierName == "" || *reportPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, *supplierName, *reportPath); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(configPath, supplierName, reportPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	registry := suppliers.NewRegistry(cfg.Suppliers, &logger)

	client, err := registry.Get(supplierName)
	if err != nil {
		return err
	}

	rows, err := client.ParseDeliveryReport(context.Background(), reportPath)
	if err != nil {
		return fmt.Errorf("parse report: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SKU\tNAME\tQTY\tUNIT PRICE")
	total := decimal.Zero
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", row.SKU, row.Name, row.Qty, row.Price.StringFixed(2))
		total = total.Add(row.Price.Mul(decimal.NewFromInt(row.Qty)))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d rows, total %s\n", len(rows), total.StringFixed(2))
	return nil
}
