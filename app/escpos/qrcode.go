package escpos

import (
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// QRConfig controls code rendering.
type QRConfig struct {
	Size      int    // module size 1..16 for native, pixel scale for raster
	Margin    int    // quiet-zone modules around a raster code; 0 disables
	ECC       string // "L", "M", "Q", "H"
	Align     string // "left", "center", "right"
	Caption   string // printed above the code when non-empty
	Native    bool   // device understands GS ( k
	Raster    bool   // device understands GS v 0
	BitImage  bool   // device understands ESC * column bit-image
	TextLabel string // last-resort line printed before the raw payload
}

// QRRenderer turns a payload into the most capable scannable form the
// device supports, degrading tier by tier: native commands, raster image,
// plain text. A blank payload renders nothing at all.
type QRRenderer struct {
	cfg QRConfig
	log *zap.Logger

	// OnFallback, when set, is called with the tier name whenever a render
	// lands below the native tier.
	OnFallback func(tier string)
}

func NewQRRenderer(cfg QRConfig, log *zap.Logger) *QRRenderer {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Size < 1 {
		cfg.Size = 6
	}
	if cfg.ECC == "" {
		cfg.ECC = "M"
	}
	return &QRRenderer{cfg: cfg, log: log}
}

type qrStrategy struct {
	name   string
	render func(p *Printer, payload string) bool
}

// Render emits the code onto the session. It never fails the job: when
// every tier is unavailable the payload goes out as plain text so the
// information still reaches the customer.
func (r *QRRenderer) Render(p *Printer, payload string) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return
	}

	p.Align(alignByte(r.cfg.Align))
	if r.cfg.Caption != "" {
		p.Text(r.cfg.Caption)
	}

	for _, s := range r.strategies() {
		if s.render(p, payload) {
			if s.name != "native" {
				r.log.Info("qr rendered via fallback tier", zap.String("tier", s.name))
				if r.OnFallback != nil {
					r.OnFallback(s.name)
				}
			}
			p.ResetStyle()
			return
		}
		r.log.Warn("qr tier unavailable, degrading", zap.String("tier", s.name))
	}
	p.ResetStyle()
}

func (r *QRRenderer) strategies() []qrStrategy {
	return []qrStrategy{
		{"native", r.renderNative},
		{"raster", r.renderRaster},
		{"bitimage", r.renderBitImage},
		{"text", r.renderText},
	}
}

// renderNative emits the GS ( k sequence family: model selection, module
// size, error correction, payload store, print.
func (r *QRRenderer) renderNative(p *Printer, payload string) bool {
	if !r.cfg.Native {
		return false
	}
	if len(payload) > 7089 {
		return false
	}

	// Model 2.
	p.Raw([]byte{GS, '(', 'k', 4, 0, 0x31, 0x41, 0x32, 0x00})
	// Module size.
	p.Raw([]byte{GS, '(', 'k', 3, 0, 0x31, 0x43, byte(clampInt(r.cfg.Size, 1, 16))})
	// Error correction.
	p.Raw([]byte{GS, '(', 'k', 3, 0, 0x31, 0x45, nativeECC(r.cfg.ECC)})
	// Store payload; length covers the three function bytes plus data.
	n := len(payload) + 3
	p.Raw([]byte{GS, '(', 'k', byte(n % 256), byte(n / 256), 0x31, 0x50, 0x30})
	p.Raw([]byte(payload))
	// Print from symbol storage.
	p.Raw([]byte{GS, '(', 'k', 3, 0, 0x31, 0x51, 0x30})
	return true
}

// renderRaster rasterizes the code host-side and ships it as a bitmap for
// firmware without native QR support.
func (r *QRRenderer) renderRaster(p *Printer, payload string) bool {
	if !r.cfg.Raster {
		return false
	}
	scale := clampInt(r.cfg.Size, 1, 16)
	q, err := qrcode.New(payload, rasterECC(r.cfg.ECC))
	if err != nil {
		r.log.Warn("qr raster generation failed", zap.Error(err))
		return false
	}
	q.DisableBorder = r.cfg.Margin <= 0
	img := q.Image(32 * scale)
	p.Image(img)
	return true
}

// renderBitImage serves firmware that predates raster mode.
func (r *QRRenderer) renderBitImage(p *Printer, payload string) bool {
	if !r.cfg.BitImage {
		return false
	}
	scale := clampInt(r.cfg.Size, 1, 16)
	q, err := qrcode.New(payload, rasterECC(r.cfg.ECC))
	if err != nil {
		r.log.Warn("qr bit-image generation failed", zap.Error(err))
		return false
	}
	q.DisableBorder = r.cfg.Margin <= 0
	p.BitImage(q.Image(32 * scale))
	return true
}

// renderText is the unconditional last tier.
func (r *QRRenderer) renderText(p *Printer, payload string) bool {
	label := r.cfg.TextLabel
	if label == "" {
		label = "[LINK]"
	}
	p.Text(label)
	p.Text(payload)
	return true
}

func alignByte(a string) byte {
	switch strings.ToLower(a) {
	case "left", "lt":
		return AlignLeft
	case "right", "rt":
		return AlignRight
	default:
		return AlignCenter
	}
}

func nativeECC(ecc string) byte {
	switch strings.ToUpper(ecc) {
	case "L":
		return 0x30
	case "Q":
		return 0x32
	case "H":
		return 0x33
	default:
		return 0x31 // M
	}
}

func rasterECC(ecc string) qrcode.RecoveryLevel {
	switch strings.ToUpper(ecc) {
	case "L":
		return qrcode.Low
	case "Q":
		return qrcode.High
	case "H":
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}
