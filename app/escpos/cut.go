package escpos

import (
	"time"

	"go.uber.org/zap"
)

// Cut strategies and modes.
const (
	CutStrategyAtomic = "atomic" // single combined feed-and-cut instruction
	CutStrategySplit  = "split"  // separate feed, settle, then plain cut
	CutModePartial    = "partial"
	CutModeFull       = "full"
)

// CutConfig holds feed-and-cut protocol parameters.
type CutConfig struct {
	Strategy      string
	Mode          string
	FeedBeforeCut int           // motion units handed to the atomic cut
	SplitLines    int           // blank lines fed in split mode
	SplitDots     int           // extra motion units fed in split mode
	WaitAfterFeed time.Duration // settle before the split-mode cut
	WaitAfterCut  time.Duration // settle before anything after the cut
}

// CutSequencer fires the physical cutter at most once per job. Multiple
// code paths reach the end of a receipt; whichever gets here first cuts,
// any later call is a no-op.
type CutSequencer struct {
	cfg   CutConfig
	log   *zap.Logger
	sleep func(time.Duration)
	done  bool
}

func NewCutSequencer(cfg CutConfig, log *zap.Logger) *CutSequencer {
	if log == nil {
		log = zap.NewNop()
	}
	return &CutSequencer{cfg: cfg, log: log, sleep: time.Sleep}
}

// Done reports whether the cutter has fired for this job.
func (c *CutSequencer) Done() bool { return c.done }

// Cut feeds paper clear of the print head and fires the cutter once. The
// style is reset first so a bold or centered tail block cannot leak into
// the feed. Flush runs before each settle wait; sleeping on buffered bytes
// would settle nothing.
func (c *CutSequencer) Cut(p *Printer) error {
	if c.done {
		c.log.Debug("cut already performed, skipping")
		return nil
	}
	c.done = true

	p.ResetStyle()
	partial := c.cfg.Mode != CutModeFull

	if c.cfg.Strategy == CutStrategySplit {
		if c.cfg.SplitLines > 0 {
			p.Feed(c.cfg.SplitLines)
		}
		if c.cfg.SplitDots > 0 {
			p.FeedDots(c.cfg.SplitDots)
		}
		if err := p.Flush(); err != nil {
			return err
		}
		if c.cfg.WaitAfterFeed > 0 {
			c.sleep(c.cfg.WaitAfterFeed)
		}
		p.Raw(cmdCutPlain(partial))
	} else {
		p.Raw(cmdCutAtomic(partial, byte(clampInt(c.cfg.FeedBeforeCut, 0, 255))))
	}

	if err := p.Flush(); err != nil {
		return err
	}
	if c.cfg.WaitAfterCut > 0 {
		c.sleep(c.cfg.WaitAfterCut)
	}
	return nil
}
