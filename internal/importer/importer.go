package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"webshop/internal/domain"
	"webshop/internal/logger"

	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads catalog CSV files and inserts or refreshes products keyed by name.
//
// Expected header: name,description,price,category,brand,stock,images,featured.
// images is a ';' separated list. A row with an empty name and an image only
// adds that image to the product above it.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
	logger      *logger.Logger
}

func NewCSVImporter(r io.Reader, repo ProductWriter, log *logger.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
		logger:      logger.OrNop(log).With("component", "importer"),
	}
}

type csvRow struct {
	line     int
	name     string
	desc     string
	price    string
	category string
	brand    string
	stock    string
	featured string
	images   []string
}

// Run parses CSV rows and upserts one product per named row.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"name", "price", "category"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing column %q", required)
		}
	}

	var (
		current  *csvRow
		imported int
		line     = 1
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		row := parseRow(record, index)
		if row == nil {
			continue
		}
		row.line = line

		if row.name != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		// Continuation rows (images) belong to the current product.
		if current != nil {
			current.images = append(current.images, row.images...)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	i.logger.Info("import finished", "products", imported)
	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	p, err := row.product()
	if err != nil {
		return fmt.Errorf("line %d (%s): %w", row.line, row.name, err)
	}
	if _, err := i.productRepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", row.name, err)
	}
	i.logger.Debug("product imported", "name", p.Name, "line", row.line)
	return nil
}

func (r *csvRow) product() (domain.Product, error) {
	if r.category == "" || r.price == "" {
		return domain.Product{}, fmt.Errorf("name, price and category are required: %w", domain.ErrInvalidArgument)
	}
	price, err := decimal.NewFromString(r.price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("price %q: %w", r.price, domain.ErrInvalidArgument)
	}
	if price.IsNegative() {
		return domain.Product{}, fmt.Errorf("price must not be negative: %w", domain.ErrInvalidArgument)
	}
	stock := 0
	if r.stock != "" {
		stock, err = strconv.Atoi(r.stock)
		if err != nil || stock < 0 {
			return domain.Product{}, fmt.Errorf("stock %q: %w", r.stock, domain.ErrInvalidArgument)
		}
	}
	featured := false
	if r.featured != "" {
		featured, err = strconv.ParseBool(r.featured)
		if err != nil {
			return domain.Product{}, fmt.Errorf("featured %q: %w", r.featured, domain.ErrInvalidArgument)
		}
	}
	return domain.Product{
		Name:        r.name,
		Description: r.desc,
		PriceCents:  price.Shift(2).Round(0).IntPart(),
		Category:    strings.ToLower(r.category),
		Brand:       r.brand,
		Stock:       stock,
		Status:      domain.ProductActive,
		Images:      r.images,
		Featured:    featured,
	}, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	row := &csvRow{
		name:     pick(record, index, "name"),
		desc:     pick(record, index, "description"),
		price:    pick(record, index, "price"),
		category: pick(record, index, "category"),
		brand:    pick(record, index, "brand"),
		stock:    pick(record, index, "stock"),
		featured: pick(record, index, "featured"),
	}
	for _, url := range strings.Split(pick(record, index, "images"), ";") {
		if url = strings.TrimSpace(url); url != "" {
			row.images = append(row.images, url)
		}
	}
	if row.name == "" && len(row.images) == 0 {
		return nil
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
