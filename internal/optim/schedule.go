package optim

import "math"

// CosineAnnealingLR anneals the learning rate of an optimizer from its
// initial value to a minimum over tMax epochs:
//
//	lr(e) = min + (base - min) * (1 + cos(pi * e / tMax)) / 2
type CosineAnnealingLR struct {
	opt   Optimizer
	base  float64
	min   float64
	tMax  int
	epoch int
}

// NewCosineAnnealingLR creates a schedule starting at the optimizer's
// current learning rate.
func NewCosineAnnealingLR(opt Optimizer, tMax int, minLR float32) *CosineAnnealingLR {
	if tMax <= 0 {
		tMax = 1
	}
	return &CosineAnnealingLR{
		opt:  opt,
		base: float64(opt.GetLR()),
		min:  float64(minLR),
		tMax: tMax,
	}
}

// LR returns the learning rate for epoch e.
func (c *CosineAnnealingLR) LR(e int) float32 {
	return float32(c.min + (c.base-c.min)*(1+math.Cos(math.Pi*float64(e)/float64(c.tMax)))/2)
}

// Step advances one epoch and applies the new learning rate.
func (c *CosineAnnealingLR) Step() {
	c.epoch++
	c.opt.SetLR(c.LR(c.epoch))
}

// Epoch returns the number of completed Step calls.
func (c *CosineAnnealingLR) Epoch() int {
	return c.epoch
}

// SetEpoch moves the schedule to epoch e and applies its learning rate, as
// when resuming a run after e completed epochs.
func (c *CosineAnnealingLR) SetEpoch(e int) {
	c.epoch = e
	c.opt.SetLR(c.LR(e))
}
