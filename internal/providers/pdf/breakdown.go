package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// BreakdownSheet is the printable duty breakdown of one vehicle. Amounts
// arrive preformatted.
type BreakdownSheet struct {
	Title        string
	VehicleType  string
	HSCode       string
	FuelType     string
	Manufacturer string
	RateCurrency string
	ExchangeRate string
	GeneratedAt  string
	Sections     []BreakdownSection
}

type BreakdownSection struct {
	Basis      string
	PriceValue string
	Rows       []BreakdownRow
	TotalTax   string
}

type BreakdownRow struct {
	Label  string
	Amount string
}

var ErrEmptySheet = errors.New("breakdown sheet has no sections")

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateBreakdown(ctx context.Context, sheet BreakdownSheet) (io.Reader, error) {
	if len(sheet.Sections) == 0 {
		return nil, ErrEmptySheet
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, sheet.Title, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Generated "+sheet.GeneratedAt, props.Text{
			Size:  8,
			Align: align.Right,
			Top:   4,
		}),
	)

	m.AddRow(28,
		col.New(6).Add(
			text.New("Vehicle: "+sheet.VehicleType, props.Text{Style: fontstyle.Bold}),
			text.New("Manufacturer: "+sheet.Manufacturer, props.Text{Top: 6}),
			text.New("Fuel: "+sheet.FuelType, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("HS code: "+sheet.HSCode, props.Text{Align: align.Right}),
			text.New("Rate currency: "+sheet.RateCurrency, props.Text{Top: 6, Align: align.Right}),
			text.New("Exchange rate: "+sheet.ExchangeRate, props.Text{Top: 12, Align: align.Right}),
		),
	)

	for _, section := range sheet.Sections {
		m.AddRow(12,
			text.NewCol(8, section.Basis, props.Text{Size: 12, Style: fontstyle.Bold, Top: 3}),
			text.NewCol(4, section.PriceValue, props.Text{Size: 12, Style: fontstyle.Bold, Top: 3, Align: align.Right}),
		)
		m.AddRow(2, line.NewCol(12))

		for _, row := range section.Rows {
			m.AddRow(7,
				text.NewCol(8, row.Label, props.Text{Size: 9}),
				text.NewCol(4, row.Amount, props.Text{Size: 9, Align: align.Right}),
			)
		}

		m.AddRow(10,
			col.New(6),
			text.NewCol(3, "Total tax", props.Text{Size: 10, Style: fontstyle.Bold, Top: 2}),
			text.NewCol(3, section.TotalTax, props.Text{Size: 10, Style: fontstyle.Bold, Top: 2, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
