// Package config loads the daemon configuration: a JSON file with
// environment overrides layered on top via dotenv. Every tunable of the
// receipt pipeline lives here; nothing downstream reads ambient state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all daemon configuration.
type AppConfig struct {
	Shop    ShopConfig    `json:"shop"`
	Receipt ReceiptConfig `json:"receipt"`
	Printer PrinterConfig `json:"printer"`
	Cut     CutConfig     `json:"cut"`
	QR      QRConfig      `json:"qr"`
	Store   StoreConfig   `json:"store"`
	Server  ServerConfig  `json:"server"`
}

// ShopConfig is the header and footer identity block.
type ShopConfig struct {
	Name         string   `json:"name"`
	FooterLines  []string `json:"footer_lines"`
	ThanksLine   string   `json:"thanks_line"`
	InvoiceHint  string   `json:"invoice_hint"`
}

// ReceiptConfig controls text layout.
type ReceiptConfig struct {
	Width          int    `json:"width"`          // display columns on the strip
	PriceReserve   int    `json:"price_reserve"`  // right-hand columns kept for amounts
	CurrencySymbol string `json:"currency_symbol"`
	ShowVATSplit   bool   `json:"show_vat_split"`
}

// PrinterConfig selects transport and encoding. A USB printer is addressed
// by device file, or pinned by vendor/product id when the file moves
// between boots.
type PrinterConfig struct {
	Type        string `json:"type"` // "usb", "network", "file"
	Device      string `json:"device"`
	VID         string `json:"vid,omitempty"`
	PID         string `json:"pid,omitempty"`
	Address     string `json:"address"`
	Port        int    `json:"port"`
	Encoding    string `json:"encoding"`
	OpenTimeout int    `json:"open_timeout_ms"`
}

// CutConfig holds feed-and-cut parameters.
type CutConfig struct {
	Strategy        string `json:"strategy"` // "atomic" or "split"
	Mode            string `json:"mode"`     // "partial" or "full"
	FeedBeforeCut   int    `json:"feed_before_cut"`
	SplitFeedLines  int    `json:"split_feed_lines"`
	SplitFeedDots   int    `json:"split_feed_dots"`
	WaitAfterFeedMS int    `json:"wait_after_feed_ms"`
	WaitAfterCutMS  int    `json:"wait_after_cut_ms"`
}

// WaitAfterFeed returns the settle delay after a split-mode feed.
func (c CutConfig) WaitAfterFeed() time.Duration {
	return time.Duration(c.WaitAfterFeedMS) * time.Millisecond
}

// WaitAfterCut returns the settle delay after the cutter fires.
func (c CutConfig) WaitAfterCut() time.Duration {
	return time.Duration(c.WaitAfterCutMS) * time.Millisecond
}

// QRConfig controls scannable-code rendering.
type QRConfig struct {
	Enabled  bool   `json:"enabled"`
	Size     int    `json:"size"`
	ECC      string `json:"ecc"`
	Align    string `json:"align"`
	Margin   int    `json:"margin"`
	Caption  string `json:"caption"`
	Native   bool   `json:"native"`
	Raster   bool   `json:"raster"`
	BitImage bool   `json:"bit_image"`
}

// StoreConfig selects the order store backend.
type StoreConfig struct {
	Driver string `json:"driver"` // "sqlite" or "postgres"
	DSN    string `json:"dsn"`
}

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Addr         string `json:"addr"`
	Announce     bool   `json:"announce"` // mDNS service announcement
	ServiceName  string `json:"service_name"`
}

// Default returns the configuration used when no file exists yet.
func Default() *AppConfig {
	return &AppConfig{
		Shop: ShopConfig{
			Name:        "Nova Asia",
			ThanksLine:  "谢谢惠顾 / Bedankt!",
			InvoiceHint: "Factuur? toon bestelnummer",
		},
		Receipt: ReceiptConfig{
			Width:          42,
			PriceReserve:   10,
			CurrencySymbol: "€",
			ShowVATSplit:   false,
		},
		Printer: PrinterConfig{
			Type:        "usb",
			Device:      "/dev/usb/lp0",
			Address:     "192.168.1.50",
			Port:        9100,
			Encoding:    "cp858",
			OpenTimeout: 5000,
		},
		Cut: CutConfig{
			Strategy:        "atomic",
			Mode:            "partial",
			FeedBeforeCut:   6,
			SplitFeedLines:  6,
			SplitFeedDots:   48,
			WaitAfterFeedMS: 200,
			WaitAfterCutMS:  800,
		},
		QR: QRConfig{
			Enabled:  false,
			Size:     6,
			ECC:      "M",
			Align:    "ct",
			Margin:   2,
			Caption:  "Scan voor route",
			Native:   true,
			Raster:   true,
			BitImage: true,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "orders.db",
		},
		Server: ServerConfig{
			Addr:        ":8931",
			Announce:    true,
			ServiceName: "receiptd",
		},
	}
}

// Load reads the JSON config at path, creating it with defaults when
// absent, then applies environment overrides. A .env file next to the
// working directory is honored when present.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save writes the config as indented JSON, creating parent directories.
func (c *AppConfig) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnv layers environment variables over the loaded file. Only the
// knobs that differ per deployment have overrides.
func (c *AppConfig) applyEnv() {
	setString(&c.Shop.Name, "RECEIPTD_SHOP_NAME")
	setString(&c.Printer.Type, "RECEIPTD_PRINTER_TYPE")
	setString(&c.Printer.Device, "RECEIPTD_PRINTER_DEVICE")
	setString(&c.Printer.Address, "RECEIPTD_PRINTER_ADDRESS")
	setInt(&c.Printer.Port, "RECEIPTD_PRINTER_PORT")
	setString(&c.Printer.Encoding, "RECEIPTD_PRINTER_ENCODING")
	setString(&c.Store.Driver, "RECEIPTD_STORE_DRIVER")
	setString(&c.Store.DSN, "RECEIPTD_STORE_DSN")
	setString(&c.Server.Addr, "RECEIPTD_LISTEN_ADDR")
	setBool(&c.QR.Enabled, "RECEIPTD_QR_ENABLED")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
