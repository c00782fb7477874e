package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"receiptd/app/config"
	"receiptd/app/escpos"
	"receiptd/app/layout"
	"receiptd/app/metrics"
	"receiptd/app/models"
)

// receiptJob composes one receipt as a fixed sequence of stages. Each stage
// flushes its own bytes so a device failure is attributable, and each stage
// that changes style resets it before handing off.
type receiptJob struct {
	order    *models.Order
	cfg      *config.AppConfig
	printer  *escpos.Printer
	qr       *escpos.QRRenderer
	cutter   *escpos.CutSequencer
	currency layout.Currency
	width    int
}

func newReceiptJob(order *models.Order, cfg *config.AppConfig, t escpos.Transport, log *zap.Logger) *receiptJob {
	printer := escpos.NewPrinter(t, cfg.Printer.Encoding, log)

	qr := escpos.NewQRRenderer(escpos.QRConfig{
		Size:      cfg.QR.Size,
		Margin:    cfg.QR.Margin,
		ECC:       cfg.QR.ECC,
		Align:     cfg.QR.Align,
		Caption:   cfg.QR.Caption,
		Native:    cfg.QR.Native,
		Raster:    cfg.QR.Raster,
		BitImage:  cfg.QR.BitImage,
		TextLabel: "[MAPS LINK]",
	}, log)
	qr.OnFallback = func(tier string) {
		metrics.QRFallbacks.WithLabelValues(tier).Inc()
	}

	cutter := escpos.NewCutSequencer(escpos.CutConfig{
		Strategy:      cfg.Cut.Strategy,
		Mode:          cfg.Cut.Mode,
		FeedBeforeCut: cfg.Cut.FeedBeforeCut,
		SplitLines:    cfg.Cut.SplitFeedLines,
		SplitDots:     cfg.Cut.SplitFeedDots,
		WaitAfterFeed: cfg.Cut.WaitAfterFeed(),
		WaitAfterCut:  cfg.Cut.WaitAfterCut(),
	}, log)

	currency := layout.Currency{Symbol: cfg.Receipt.CurrencySymbol}
	if cfg.Printer.Encoding == escpos.EncodingRaw {
		// Raw sessions go to firmware whose glyph table is unknown.
		currency.Symbol = "EUR "
	}

	return &receiptJob{
		order:    order,
		cfg:      cfg,
		printer:  printer,
		qr:       qr,
		cutter:   cutter,
		currency: currency,
		width:    cfg.Receipt.Width,
	}
}

type stage struct {
	name string
	emit func() error
}

func (j *receiptJob) run() error {
	stages := []stage{
		{"header", j.header},
		{"banner", j.banner},
		{"meta", j.meta},
		{"customer", j.customer},
		{"address", j.address},
		{"qr", j.qrBlock},
		{"items", j.items},
		{"remark", j.remark},
		{"totals", j.totals},
		{"next_discount", j.nextDiscount},
		{"footer", j.footer},
		{"cut", j.cut},
	}
	for _, st := range stages {
		if err := st.emit(); err != nil {
			return &PrintError{Stage: st.name, Err: err}
		}
	}
	return nil
}

func (j *receiptJob) flush() error { return j.printer.Flush() }

func (j *receiptJob) separator(glyph rune) {
	j.printer.Text(layout.Separator(glyph, j.width))
}

func (j *receiptJob) pair(label, value string) {
	j.printer.Text(layout.TwoColumn(label, value, j.width))
}

func (j *receiptJob) header() error {
	j.printer.Init()
	j.printer.Align(escpos.AlignCenter)
	j.printer.Bold(true)
	j.printer.Size(2, 2)
	j.printer.Text(j.cfg.Shop.Name)
	j.printer.ResetStyle()
	return j.flush()
}

func (j *receiptJob) banner() error {
	banner := "Afhalen"
	if j.order.Delivery {
		banner = "Bezorging"
	}
	j.printer.Align(escpos.AlignCenter)
	j.printer.Bold(true)
	j.printer.Text(banner)
	j.printer.ResetStyle()
	j.separator('=')
	return j.flush()
}

func (j *receiptJob) meta() error {
	j.pair("Bestelnummer", j.order.OrderNumber)
	if j.order.CreatedAt != "" {
		j.pair("Besteld", j.order.CreatedAt)
	}
	if j.order.TimeSlot != "" {
		j.pair("Tijdslot", j.order.TimeSlot)
	}
	if j.order.PaymentMethod != "" {
		j.pair("Betaling", strings.ToUpper(j.order.PaymentMethod))
	}
	return j.flush()
}

func (j *receiptJob) customer() error {
	if j.order.CustomerName != "" {
		j.pair("Klant", j.order.CustomerName)
	}
	if j.order.Phone != "" {
		j.pair("Telefoon", j.order.Phone)
	}
	return j.flush()
}

func (j *receiptJob) address() error {
	if !j.order.Delivery {
		return nil
	}
	line1 := strings.TrimSpace(j.order.Street + " " + j.order.HouseNumber)
	line2 := strings.TrimSpace(j.order.Postcode + " " + j.order.City)
	if line1 != "" {
		for _, l := range layout.Wrap(line1, j.width) {
			j.printer.Text(l)
		}
	}
	if line2 != "" {
		j.printer.Text(line2)
	}
	return j.flush()
}

func (j *receiptJob) qrBlock() error {
	if !j.cfg.QR.Enabled || strings.TrimSpace(j.order.QRPayload) == "" {
		return nil
	}
	j.qr.Render(j.printer, j.order.QRPayload)
	return j.flush()
}

func (j *receiptJob) items() error {
	j.separator('-')
	j.printer.Text("Bestellingen:")
	for _, it := range j.order.Items {
		lines := layout.ItemLines(
			it.Qty, it.Name, j.currency.Format(it.LineTotal()),
			it.Options, it.Note,
			j.width, j.cfg.Receipt.PriceReserve,
		)
		for _, l := range lines {
			j.printer.Text(l)
		}
	}
	return j.flush()
}

func (j *receiptJob) remark() error {
	if j.order.Remark == "" {
		return nil
	}
	j.separator('-')
	j.printer.Text("Opmerking:")
	for _, l := range layout.Wrap(j.order.Remark, j.width) {
		j.printer.Text(l)
	}
	return j.flush()
}

func (j *receiptJob) totals() error {
	j.separator('-')
	j.pair("Subtotaal", j.currency.Format(j.order.Subtotal))

	if used := j.order.DiscountUsed; used.Present() {
		j.pair(discountLabel(used.Code), j.currency.Format(used.Amount.Neg()))
	}

	j.pair("Verpakking Toeslag", j.currency.Format(j.order.Packaging))
	j.pair("Statiegeld", j.currency.Format(j.order.Deposit))
	j.pair("Bezorgkosten", j.currency.Format(j.order.DeliveryFee))
	j.pair("Fooi", j.currency.Format(j.order.Tip))
	j.vatLines()

	j.separator('-')
	j.printer.Bold(true)
	j.printer.Size(1, 2)
	j.pair("Totaal", j.currency.Format(j.order.Total))
	j.printer.ResetStyle()
	return j.flush()
}

// vatLines prints either the two rate buckets or one combined line, never
// both.
func (j *receiptJob) vatLines() {
	if j.cfg.Receipt.ShowVATSplit && j.order.HasVATSplit() {
		if !j.order.VATLow.IsZero() {
			j.pair("BTW (9%)", j.currency.Format(j.order.VATLow))
		}
		if !j.order.VATHigh.IsZero() {
			j.pair("BTW (21%)", j.currency.Format(j.order.VATHigh))
		}
		return
	}
	vat := j.order.VAT
	if vat.IsZero() {
		vat = j.order.VATLow.Add(j.order.VATHigh)
	}
	j.pair("BTW", j.currency.Format(vat))
}

func discountLabel(code string) string {
	switch {
	case code == models.DiscountCodeRegister:
		return "Kassa korting"
	case code != "":
		return fmt.Sprintf("Korting (Code: %s gebruikt)", code)
	default:
		return "Korting"
	}
}

func (j *receiptJob) nextDiscount() error {
	earned := j.order.DiscountEarned
	if !earned.Present() {
		return nil
	}
	label := "Volgende korting"
	if earned.Code != "" {
		label = fmt.Sprintf("Volgende korting (Code: %s)", earned.Code)
	}
	j.separator('-')
	if earned.Amount.GreaterThan(decimal.Zero) {
		j.pair(label, j.currency.Format(earned.Amount))
	} else {
		j.printer.Text(label)
	}
	j.separator('-')
	return j.flush()
}

func (j *receiptJob) footer() error {
	j.printer.Align(escpos.AlignCenter)
	for _, l := range j.cfg.Shop.FooterLines {
		j.printer.Text(l)
	}
	if len(j.cfg.Shop.FooterLines) > 0 {
		j.separator('-')
	}
	if j.cfg.Shop.ThanksLine != "" {
		j.printer.Text(j.cfg.Shop.ThanksLine)
	}
	if j.cfg.Shop.InvoiceHint != "" {
		j.printer.Text(fmt.Sprintf("%s %s", j.cfg.Shop.InvoiceHint, j.order.OrderNumber))
	}
	j.printer.ResetStyle()
	return j.flush()
}

func (j *receiptJob) cut() error {
	return j.cutter.Cut(j.printer)
}
