// Package database is the order store: a single orders table keyed by
// order number with upsert-on-conflict writes, whitelisted patches, and an
// ad-hoc column migration for rows created by older schema generations.
package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"receiptd/app/config"
	"receiptd/app/models"
	"receiptd/app/normalize"
)

// ErrNotFound is returned when no row matches the lookup.
var ErrNotFound = errors.New("order not found")

// Store wraps the orders table.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects the configured backend and migrates the orders table.
// SQLite is the default; postgres serves multi-terminal deployments.
func Open(cfg config.StoreConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	gormCfg := &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		if dir := filepath.Dir(cfg.DSN); dir != "." && dir != "" {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create database directory: %w", mkErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open order store: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := db.AutoMigrate(&models.OrderRecord{}); err != nil {
		return nil, fmt.Errorf("migrate orders table: %w", err)
	}
	if err := s.ensureLegacyColumns(); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureLegacyColumns adds columns that predate AutoMigrate-managed
// deployments. Older writers created the table by hand; their rows must
// stay readable without a rebuild.
func (s *Store) ensureLegacyColumns() error {
	m := s.db.Migrator()
	for _, field := range []string{"Remark", "Source", "BTW9", "BTW21", "BTWTotal",
		"DiscountEarnedAmount", "DiscountEarnedCode", "DiscountUsedAmount", "DiscountUsedCode"} {
		if !m.HasColumn(&models.OrderRecord{}, field) {
			if err := m.AddColumn(&models.OrderRecord{}, field); err != nil {
				return fmt.Errorf("add column %s: %w", field, err)
			}
			s.log.Info("added missing column", zap.String("column", field))
		}
	}
	return nil
}

// Save upserts a raw order payload keyed by order number. The payload is
// normalized only to extract the flattened columns; it is stored verbatim.
// A source tag is mandatory on every write.
func (s *Store) Save(raw map[string]interface{}, source string) (*models.OrderRecord, error) {
	if source == "" {
		source = normalize.PickString(raw, "bron", "source")
	}
	if source == "" {
		return nil, &normalize.ValidationError{Field: "bron", Reason: "missing"}
	}

	order, err := normalize.Normalize(raw)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode order payload: %w", err)
	}
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return nil, fmt.Errorf("encode order items: %w", err)
	}

	rec := &models.OrderRecord{
		OrderID:       order.OrderID,
		OrderNumber:   order.OrderNumber,
		Data:          string(data),
		CustomerName:  order.CustomerName,
		Phone:         order.Phone,
		Email:         order.Email,
		OrderType:     order.OrderType,
		PaymentMethod: order.PaymentMethod,
		Postcode:      order.Postcode,
		HouseNumber:   order.HouseNumber,
		Street:        order.Street,
		City:          order.City,
		Remark:        order.Remark,
		Items:         string(itemsJSON),
		Subtotal:      f64(order.Subtotal.InexactFloat64()),
		Total:         f64(order.Total.InexactFloat64()),
		PackagingFee:  f64(order.Packaging.InexactFloat64()),
		DeliveryFee:   f64(order.DeliveryFee.InexactFloat64()),
		Tip:           f64(order.Tip.InexactFloat64()),
		Source:        source,
	}
	if order.Delivery {
		rec.DeliveryTime = order.TimeSlot
	} else {
		rec.PickupTime = order.TimeSlot
	}
	if !order.VATLow.IsZero() {
		rec.BTW9 = f64(order.VATLow.InexactFloat64())
	}
	if !order.VATHigh.IsZero() {
		rec.BTW21 = f64(order.VATHigh.InexactFloat64())
	}
	if !order.VAT.IsZero() {
		rec.BTWTotal = f64(order.VAT.InexactFloat64())
	}
	if order.DiscountUsed.Present() {
		rec.DiscountUsedAmount = f64(order.DiscountUsed.Amount.InexactFloat64())
		rec.DiscountUsedCode = order.DiscountUsed.Code
	}
	if order.DiscountEarned.Present() {
		rec.DiscountEarnedAmount = f64(order.DiscountEarned.Amount.InexactFloat64())
		rec.DiscountEarnedCode = order.DiscountEarned.Code
	}

	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_number"}},
		UpdateAll: true,
	}).Create(rec).Error
	if err != nil {
		return nil, fmt.Errorf("save order %s: %w", order.OrderNumber, err)
	}
	return rec, nil
}

// BatchResult reports one failed entry of a batch save.
type BatchResult struct {
	Index       int    `json:"index"`
	OrderNumber string `json:"order_number,omitempty"`
	Error       string `json:"error"`
}

// SaveBatch upserts many payloads, collecting per-entry failures instead of
// aborting the batch.
func (s *Store) SaveBatch(raws []map[string]interface{}, source string) (saved int, failed []BatchResult) {
	for i, raw := range raws {
		if _, err := s.Save(raw, source); err != nil {
			failed = append(failed, BatchResult{
				Index:       i,
				OrderNumber: normalize.PickString(raw, "order_number", "orderNumber", "id"),
				Error:       err.Error(),
			})
			continue
		}
		saved++
	}
	return saved, failed
}

// GetByNumber fetches one row by order number.
func (s *Store) GetByNumber(orderNumber string) (*models.OrderRecord, error) {
	var rec models.OrderRecord
	err := s.db.Where("order_number = ?", orderNumber).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByID fetches one row by internal id.
func (s *Store) GetByID(id uint) (*models.OrderRecord, error) {
	var rec models.OrderRecord
	err := s.db.First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecent returns the newest rows, most recent first.
func (s *Store) ListRecent(limit int) ([]models.OrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []models.OrderRecord
	err := s.db.Order("created_at DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

// ListToday returns rows created since local midnight. The boundary is
// computed host-side so it behaves the same on every backend.
func (s *Store) ListToday() ([]models.OrderRecord, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).UTC()
	var recs []models.OrderRecord
	err := s.db.Where("created_at >= ?", start).Order("created_at DESC").Find(&recs).Error
	return recs, err
}

// writableColumns is the patch whitelist. Identity and payload columns are
// immutable through Patch.
var writableColumns = map[string]bool{
	"opmerking":       true,
	"btw_9":           true,
	"btw_21":          true,
	"btw_total":       true,
	"is_completed":    true,
	"is_cancelled":    true,
	"payment_method":  true,
	"pickup_time":     true,
	"delivery_time":   true,
	"discount_amount": true,
	"discount_code":   true,
}

// Patch applies a whitelisted column update to one row. Unknown or
// protected columns are rejected, not silently dropped.
func (s *Store) Patch(orderNumber string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	updates := make(map[string]interface{}, len(fields))
	for col, v := range fields {
		if !writableColumns[col] {
			return fmt.Errorf("column %q is not patchable", col)
		}
		updates[col] = v
	}
	res := s.db.Model(&models.OrderRecord{}).
		Where("order_number = ?", orderNumber).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func f64(v float64) *float64 { return &v }
