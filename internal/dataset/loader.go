package dataset

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/darts/internal/tensor"
)

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize int
	Shuffle   bool  // reshuffle on every Reset
	Augment   bool  // random 4-pixel-padded crop and horizontal flip
	DropLast  bool  // skip the final incomplete batch
	Seed      int64 // shuffling and augmentation
}

// Batch is one mini-batch in NCHW layout.
type Batch struct {
	Images []float32
	Labels []int32
	N      int
	C      int
	H      int
	W      int
}

// Shape returns the image tensor shape [N, C, H, W].
func (b Batch) Shape() tensor.Shape {
	return tensor.Shape{b.N, b.C, b.H, b.W}
}

// ToTensors converts a batch into an image tensor and a label tensor.
func ToTensors[B tensor.Backend](b Batch, backend B) (*tensor.Tensor[float32, B], *tensor.Tensor[int32, B]) {
	images, err := tensor.FromSlice(b.Images, b.Shape(), backend)
	if err != nil {
		panic(fmt.Sprintf("dataset: %v", err))
	}
	labels, err := tensor.FromSlice(b.Labels, tensor.Shape{b.N}, backend)
	if err != nil {
		panic(fmt.Sprintf("dataset: %v", err))
	}
	return images, labels
}

// Loader iterates over a dataset in mini-batches.
//
// Example:
//
//	loader, _ := dataset.NewLoader(train, dataset.LoaderConfig{BatchSize: 64, Shuffle: true})
//	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
//		x, y := dataset.ToTensors(batch, backend)
//		...
//	}
//	loader.Reset()
type Loader struct {
	ds    *Dataset
	cfg   LoaderConfig
	rng   *rand.Rand
	order []int
	pos   int
}

// NewLoader creates a loader positioned at the start of the first epoch.
func NewLoader(ds *Dataset, cfg LoaderConfig) (*Loader, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size %d", ErrInvalidData, cfg.BatchSize)
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: empty dataset", ErrInvalidData)
	}
	if cfg.DropLast && ds.Len() < cfg.BatchSize {
		return nil, fmt.Errorf("%w: %d samples cannot fill a batch of %d", ErrInvalidData, ds.Len(), cfg.BatchSize)
	}

	l := &Loader{
		ds:    ds,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // data order only
		order: make([]int, ds.Len()),
	}
	for i := range l.order {
		l.order[i] = i
	}
	l.Reset()
	return l, nil
}

// Reset starts a new epoch, reshuffling when configured.
func (l *Loader) Reset() {
	l.pos = 0
	if l.cfg.Shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// NumBatches returns the number of batches per epoch.
func (l *Loader) NumBatches() int {
	n := l.ds.Len() / l.cfg.BatchSize
	if !l.cfg.DropLast && l.ds.Len()%l.cfg.BatchSize != 0 {
		n++
	}
	return n
}

// Next returns the next batch, or false at the end of the epoch.
func (l *Loader) Next() (Batch, bool) {
	remaining := len(l.order) - l.pos
	if remaining <= 0 || (l.cfg.DropLast && remaining < l.cfg.BatchSize) {
		return Batch{}, false
	}
	n := min(remaining, l.cfg.BatchSize)

	d := l.ds
	size := d.ImageSize()
	b := Batch{
		Images: make([]float32, n*size),
		Labels: make([]int32, n),
		N:      n,
		C:      d.Channels,
		H:      d.Height,
		W:      d.Width,
	}
	for i := 0; i < n; i++ {
		idx := l.order[l.pos+i]
		b.Labels[i] = d.Labels[idx]
		dst := b.Images[i*size : (i+1)*size]
		if l.cfg.Augment {
			l.augment(dst, d.Image(idx))
		} else {
			copy(dst, d.Image(idx))
		}
	}
	l.pos += n
	return b, true
}

// Cycle returns the next batch, starting a new epoch when the current one
// is exhausted.
func (l *Loader) Cycle() Batch {
	b, ok := l.Next()
	if !ok {
		l.Reset()
		b, _ = l.Next()
	}
	return b
}

// cropPadding is the zero padding of the random crop.
const cropPadding = 4

// augment writes a randomly shifted and possibly mirrored copy of src.
func (l *Loader) augment(dst, src []float32) {
	d := l.ds
	dy := l.rng.Intn(2*cropPadding+1) - cropPadding
	dx := l.rng.Intn(2*cropPadding+1) - cropPadding
	flip := l.rng.Intn(2) == 1

	plane := d.Height * d.Width
	for c := 0; c < d.Channels; c++ {
		for y := 0; y < d.Height; y++ {
			sy := y + dy
			for x := 0; x < d.Width; x++ {
				sx := x
				if flip {
					sx = d.Width - 1 - x
				}
				sx += dx
				var v float32
				if sy >= 0 && sy < d.Height && sx >= 0 && sx < d.Width {
					v = src[c*plane+sy*d.Width+sx]
				}
				dst[c*plane+y*d.Width+x] = v
			}
		}
	}
}
