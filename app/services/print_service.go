// Package services wires the order store, normalizer, layout and command
// emitter into the one operation callers care about: print this order.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"receiptd/app/config"
	"receiptd/app/database"
	"receiptd/app/escpos"
	"receiptd/app/metrics"
	"receiptd/app/models"
	"receiptd/app/normalize"
)

// PrintService runs print jobs. Jobs on the same service serialize on a
// mutex: the physical device has no notion of interleaved output, so the
// queue depth is effectively one.
type PrintService struct {
	store *database.Store
	cfg   *config.AppConfig
	log   *zap.Logger

	mu sync.Mutex

	// newTransport is swappable for tests.
	newTransport func() (escpos.Transport, error)
}

// NewPrintService builds a service around the store and configuration.
func NewPrintService(store *database.Store, cfg *config.AppConfig, log *zap.Logger) *PrintService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &PrintService{store: store, cfg: cfg, log: log}
	s.newTransport = s.transportFromConfig
	return s
}

func (s *PrintService) transportFromConfig() (escpos.Transport, error) {
	p := s.cfg.Printer
	timeout := time.Duration(p.OpenTimeout) * time.Millisecond
	switch p.Type {
	case "usb", "":
		device := p.Device
		if p.VID != "" && p.PID != "" {
			resolved, err := escpos.FindUSBByID(p.VID, p.PID)
			if err != nil {
				return nil, err
			}
			device = resolved
		}
		return &escpos.USBTransport{Device: device, OpenTimeout: timeout}, nil
	case "network":
		return &escpos.NetworkTransport{
			Address:     fmt.Sprintf("%s:%d", p.Address, p.Port),
			OpenTimeout: timeout,
		}, nil
	case "file":
		return &escpos.FileTransport{Path: p.Device}, nil
	default:
		return nil, fmt.Errorf("unsupported printer type %q", p.Type)
	}
}

// PrintOrderNumber looks an order up by number and prints it.
func (s *PrintService) PrintOrderNumber(ctx context.Context, orderNumber string) error {
	rec, err := s.store.GetByNumber(orderNumber)
	if err != nil {
		return err
	}
	return s.printRecord(ctx, rec)
}

// PrintOrderID looks an order up by internal id and prints it.
func (s *PrintService) PrintOrderID(ctx context.Context, id uint) error {
	rec, err := s.store.GetByID(id)
	if err != nil {
		return err
	}
	return s.printRecord(ctx, rec)
}

// PrintRaw normalizes and prints a payload without touching the store.
func (s *PrintService) PrintRaw(ctx context.Context, raw map[string]interface{}) error {
	order, err := normalize.Normalize(raw)
	if err != nil {
		return err
	}
	return s.Print(ctx, order)
}

func (s *PrintService) printRecord(ctx context.Context, rec *models.OrderRecord) error {
	raw, err := rec.RawPayload()
	if err != nil {
		return err
	}
	return s.PrintRaw(ctx, raw)
}

// Print runs one job for an already-normalized order. Normalization and
// layout problems surface before the device is opened; once bytes flow, the
// first write failure aborts the remaining stages, and the transport is
// closed on every exit path.
func (s *PrintService) Print(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	transport, err := s.newTransport()
	if err != nil {
		return err
	}

	log := s.log.With(zap.String("order_number", order.OrderNumber))
	if err := transport.Open(ctx); err != nil {
		metrics.PrintFailures.WithLabelValues("open").Inc()
		return &PrintError{Stage: "open", Err: err}
	}
	defer transport.Close()

	job := newReceiptJob(order, s.cfg, transport, log)
	if err := job.run(); err != nil {
		stage := "unknown"
		var perr *PrintError
		if errors.As(err, &perr) {
			stage = perr.Stage
		}
		metrics.PrintFailures.WithLabelValues(stage).Inc()
		log.Error("print job failed", zap.String("stage", stage), zap.Error(err))
		return err
	}

	metrics.ReceiptsPrinted.Inc()
	log.Info("receipt printed", zap.String("target", transport.Target()))
	return nil
}
