package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptd/app/config"
	"receiptd/app/database"
	"receiptd/app/escpos"
	"receiptd/app/models"
	"receiptd/app/normalize"
)

type captureTransport struct {
	buf     bytes.Buffer
	writes  int
	failAt  int // fail the nth write (1-based), 0 never
	closed  bool
	opened  bool
	openErr error
}

func (c *captureTransport) Open(context.Context) error {
	if c.openErr != nil {
		return c.openErr
	}
	c.opened = true
	return nil
}
func (c *captureTransport) Target() string { return "capture" }
func (c *captureTransport) Close() error   { c.closed = true; return nil }

func (c *captureTransport) Write(p []byte) (int, error) {
	c.writes++
	if c.failAt > 0 && c.writes >= c.failAt {
		return 0, errors.New("paper jam")
	}
	return c.buf.Write(p)
}

func testConfig() *config.AppConfig {
	cfg := config.Default()
	cfg.Printer.Encoding = escpos.EncodingRaw
	cfg.Cut.WaitAfterFeedMS = 0
	cfg.Cut.WaitAfterCutMS = 0
	cfg.QR.Enabled = true
	cfg.QR.Native = true
	return cfg
}

func newTestService(t *testing.T, tr escpos.Transport) *PrintService {
	t.Helper()
	store, err := database.Open(config.StoreConfig{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := NewPrintService(store, testConfig(), nil)
	svc.newTransport = func() (escpos.Transport, error) { return tr, nil }
	return svc
}

func deliveryPayload() map[string]interface{} {
	return map[string]interface{}{
		"order_number":   "1042",
		"type":           "bezorgen",
		"created_at":     "2026-08-31 18:02",
		"tijdslot":       "18:45",
		"payment_method": "ideal",
		"customer": map[string]interface{}{
			"name":    "P. Bakker",
			"phone":   "0611122233",
			"address": "Hoofdstraat 7, 1234 AB Zwolle",
		},
		"items": []interface{}{
			map[string]interface{}{"name": "Babi Pangang", "qty": 2, "price": "13.50"},
			map[string]interface{}{
				"name": "Nasi Speciaal", "qty": 1, "price": "9.00",
				"options": []interface{}{"extra ei"},
			},
		},
		"bezorgkosten":     "2.50",
		"discountAmount":   "2.00",
		"discountCode":     "WELKOM",
		"discount_amount":  "5.00",
		"discount_code":    "TERUG",
		"btw_9":            "2.95",
		"google_maps_link": "https://maps.example/route/1042",
		"totaal":           "36.50",
	}
}

func TestPrintRawFullReceipt(t *testing.T) {
	tr := &captureTransport{}
	svc := newTestService(t, tr)

	require.NoError(t, svc.PrintRaw(context.Background(), deliveryPayload()))
	require.True(t, tr.opened)
	assert.True(t, tr.closed, "transport must be closed after the job")

	out := tr.buf.String()
	assert.Contains(t, out, "Nova Asia")
	assert.Contains(t, out, "Bezorging")
	assert.Contains(t, out, "Bestelnummer")
	assert.Contains(t, out, "1042")
	assert.Contains(t, out, "Hoofdstraat 7")
	assert.Contains(t, out, "1234AB Zwolle")
	assert.Contains(t, out, "2x Babi Pangang")
	assert.Contains(t, out, "- extra ei")
	assert.Contains(t, out, "Subtotaal")
	assert.Contains(t, out, "Korting (Code: WELKOM gebruikt)")
	assert.Contains(t, out, "-EUR 2,00")
	assert.Contains(t, out, "Bezorgkosten")
	assert.Contains(t, out, "BTW")
	assert.Contains(t, out, "Totaal")
	assert.Contains(t, out, "EUR 36,50")
	assert.Contains(t, out, "Volgende korting (Code: TERUG)")

	// Native QR sequence present, exactly one cut.
	raw := tr.buf.Bytes()
	assert.True(t, bytes.Contains(raw, []byte{escpos.GS, '(', 'k'}))
	cuts := 0
	for i := 0; i+1 < len(raw); i++ {
		if raw[i] == escpos.GS && raw[i+1] == 'V' {
			cuts++
		}
	}
	assert.Equal(t, 1, cuts)
}

func TestPrintPickupSkipsAddressAndBanner(t *testing.T) {
	tr := &captureTransport{}
	svc := newTestService(t, tr)

	raw := deliveryPayload()
	raw["type"] = "afhalen"
	delete(raw, "customer")
	raw["items"] = []interface{}{
		map[string]interface{}{"name": "Loempia", "qty": 1, "price": "4.00"},
	}

	require.NoError(t, svc.PrintRaw(context.Background(), raw))
	out := tr.buf.String()
	assert.Contains(t, out, "Afhalen")
	assert.NotContains(t, out, "Hoofdstraat")
}

func TestPrintVATSplitLines(t *testing.T) {
	tr := &captureTransport{}
	svc := newTestService(t, tr)
	svc.cfg.Receipt.ShowVATSplit = true

	raw := deliveryPayload()
	raw["btw_21"] = "1.10"

	require.NoError(t, svc.PrintRaw(context.Background(), raw))
	out := tr.buf.String()
	assert.Contains(t, out, "BTW (9%)")
	assert.Contains(t, out, "BTW (21%)")
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "BTW ") {
			// Split lines only; the combined line must be suppressed.
			assert.Contains(t, line, "%")
		}
	}
}

func TestPrintNormalizationFailureOpensNoDevice(t *testing.T) {
	tr := &captureTransport{}
	svc := newTestService(t, tr)

	_, err := svc.store.Save(deliveryPayload(), "web")
	require.NoError(t, err)

	badRaw := map[string]interface{}{"items": []interface{}{}}
	err = svc.PrintRaw(context.Background(), badRaw)
	var verr *normalize.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.False(t, tr.opened, "validation errors must precede device I/O")
	assert.Zero(t, tr.writes)
}

func TestPrintWriteFailureSurfacesStageAndClosesTransport(t *testing.T) {
	tr := &captureTransport{failAt: 1}
	svc := newTestService(t, tr)

	err := svc.PrintRaw(context.Background(), deliveryPayload())
	var perr *PrintError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "header", perr.Stage)
	assert.True(t, tr.closed, "transport must close on failure too")
}

func TestPrintMidJobFailureStopsEmission(t *testing.T) {
	tr := &captureTransport{failAt: 4}
	svc := newTestService(t, tr)

	err := svc.PrintRaw(context.Background(), deliveryPayload())
	var perr *PrintError
	require.ErrorAs(t, err, &perr)
	assert.NotEqual(t, "header", perr.Stage)
	assert.Equal(t, 4, tr.writes, "no stage may write after the failure")
	assert.True(t, tr.closed)
}

func TestPrintOrderNumberFromStore(t *testing.T) {
	tr := &captureTransport{}
	svc := newTestService(t, tr)

	_, err := svc.store.Save(deliveryPayload(), "web")
	require.NoError(t, err)

	require.NoError(t, svc.PrintOrderNumber(context.Background(), "1042"))
	assert.Contains(t, tr.buf.String(), "Bestelnummer")

	err = svc.PrintOrderNumber(context.Background(), "0000")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestPrintAppliesDeviceOpenError(t *testing.T) {
	tr := &captureTransport{openErr: &escpos.DeviceOpenError{Target: "/dev/usb/lp0", Err: errors.New("no such device")}}
	svc := newTestService(t, tr)

	order := &models.Order{OrderNumber: "7", Items: []models.OrderItem{{Name: "x", Qty: 1}}}
	err := svc.Print(context.Background(), order)
	var perr *PrintError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "open", perr.Stage)
	var devErr *escpos.DeviceOpenError
	assert.ErrorAs(t, err, &devErr)
}
