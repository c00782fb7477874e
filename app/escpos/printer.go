package escpos

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// Text encodings for outgoing receipt text.
const (
	EncodingCP858   = "cp858"   // Latin-1 variant with the euro glyph
	EncodingGB18030 = "gb18030" // CJK-capable firmware, common on network models
	EncodingRaw     = "raw"     // bytes pass through untouched (UTF-8 capable firmware)
)

// Printer is one buffered command session over a transport. Commands
// accumulate in memory and reach the device on Flush, so a receipt is
// composed stage by stage and each stage's write failure is attributable.
type Printer struct {
	transport Transport
	buffer    *bytes.Buffer
	encoding  string
	log       *zap.Logger
}

// NewPrinter wraps an opened transport in a command session.
func NewPrinter(t Transport, encoding string, log *zap.Logger) *Printer {
	if log == nil {
		log = zap.NewNop()
	}
	if encoding == "" {
		encoding = EncodingCP858
	}
	return &Printer{
		transport: t,
		buffer:    new(bytes.Buffer),
		encoding:  encoding,
		log:       log,
	}
}

// Init resets the device and selects the code page matching the session
// encoding. Call once at the start of each job.
func (p *Printer) Init() {
	p.buffer.Write(cmdInit())
	if p.encoding == EncodingCP858 {
		p.buffer.Write(cmdCodePage(CodePageCP858))
	}
}

// Raw appends bytes without encoding.
func (p *Printer) Raw(b []byte) {
	p.buffer.Write(b)
}

// Text appends one encoded text line followed by a line feed.
func (p *Printer) Text(s string) {
	p.buffer.Write(p.encode(s))
	p.buffer.WriteByte(NL)
}

// Feed advances n blank lines.
func (p *Printer) Feed(n int) {
	p.buffer.Write(cmdFeedLines(n))
}

// FeedDots advances n motion units.
func (p *Printer) FeedDots(n int) {
	p.buffer.Write(cmdFeedDots(n))
}

func (p *Printer) Align(a byte) { p.buffer.Write(cmdAlign(a)) }

func (p *Printer) Bold(on bool) { p.buffer.Write(cmdBold(on)) }

func (p *Printer) Size(width, height int) { p.buffer.Write(cmdSize(width, height)) }

// ResetStyle restores left alignment, normal weight and normal size. Every
// block that changes style calls this before handing off to the next block.
func (p *Printer) ResetStyle() {
	p.buffer.Write(cmdAlign(AlignLeft))
	p.buffer.Write(cmdBold(false))
	p.buffer.Write(cmdSize(1, 1))
}

// Buffered returns the number of bytes awaiting Flush.
func (p *Printer) Buffered() int { return p.buffer.Len() }

// Flush writes the buffered commands to the transport and resets the
// buffer. The buffer is cleared even on failure; a failed write aborts the
// job, so there is nothing to resend.
func (p *Printer) Flush() error {
	if p.buffer.Len() == 0 {
		return nil
	}
	n := p.buffer.Len()
	_, err := p.transport.Write(p.buffer.Bytes())
	p.buffer.Reset()
	if err != nil {
		return fmt.Errorf("device write (%d bytes): %w", n, err)
	}
	return nil
}

// encode maps text to the session code page. Unmappable runes degrade to
// '?' rather than failing the job; the receipt must still come out.
func (p *Printer) encode(s string) []byte {
	switch p.encoding {
	case EncodingCP858:
		out := make([]byte, 0, len(s))
		for _, r := range s {
			if b, ok := charmap.CodePage858.EncodeRune(r); ok {
				out = append(out, b)
			} else {
				p.log.Debug("rune not encodable, substituting", zap.String("rune", string(r)))
				out = append(out, '?')
			}
		}
		return out
	case EncodingGB18030:
		enc := encoding.ReplaceUnsupported(simplifiedchinese.GB18030.NewEncoder())
		b, err := enc.Bytes([]byte(s))
		if err != nil {
			p.log.Debug("gb18030 encode failed, passing through", zap.Error(err))
			return []byte(s)
		}
		return b
	default:
		return []byte(s)
	}
}
