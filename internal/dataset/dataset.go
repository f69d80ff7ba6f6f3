// Package dataset provides the image datasets used by the architecture
// search: a CIFAR-10 binary reader, a synthetic dataset for smoke runs,
// train/validation splitting and a mini-batch loader with the standard
// CIFAR augmentation (random crop with 4-pixel padding, horizontal flip).
package dataset

import (
	"errors"
	"fmt"
)

// ErrInvalidData is returned for malformed or inconsistent data.
var ErrInvalidData = errors.New("dataset: invalid data")

// Dataset is an in-memory set of CHW float32 images with integer labels.
type Dataset struct {
	Images     []float32 // [n, Channels, Height, Width], normalized
	Labels     []int32   // [n]
	Channels   int
	Height     int
	Width      int
	NumClasses int
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// ImageSize returns the number of values per image.
func (d *Dataset) ImageSize() int {
	return d.Channels * d.Height * d.Width
}

// Image returns the values of sample i. The slice aliases the dataset.
func (d *Dataset) Image(i int) []float32 {
	size := d.ImageSize()
	return d.Images[i*size : (i+1)*size]
}

// Validate checks that images and labels are consistent.
func (d *Dataset) Validate() error {
	if d.Channels <= 0 || d.Height <= 0 || d.Width <= 0 {
		return fmt.Errorf("%w: image shape %dx%dx%d", ErrInvalidData, d.Channels, d.Height, d.Width)
	}
	if len(d.Images) != d.Len()*d.ImageSize() {
		return fmt.Errorf("%w: %d values for %d images of %d", ErrInvalidData, len(d.Images), d.Len(), d.ImageSize())
	}
	for i, l := range d.Labels {
		if l < 0 || int(l) >= d.NumClasses {
			return fmt.Errorf("%w: label %d of sample %d outside [0, %d)", ErrInvalidData, l, i, d.NumClasses)
		}
	}
	return nil
}

// Subset returns a copy holding the samples at indices, in that order.
func (d *Dataset) Subset(indices []int) *Dataset {
	size := d.ImageSize()
	out := &Dataset{
		Images:     make([]float32, 0, len(indices)*size),
		Labels:     make([]int32, 0, len(indices)),
		Channels:   d.Channels,
		Height:     d.Height,
		Width:      d.Width,
		NumClasses: d.NumClasses,
	}
	for _, i := range indices {
		out.Images = append(out.Images, d.Image(i)...)
		out.Labels = append(out.Labels, d.Labels[i])
	}
	return out
}

// Split divides the dataset into its first ⌊portion·n⌋ samples and the
// rest. The search trains weights on the first part and architecture
// weights on the second.
func (d *Dataset) Split(portion float64) (train, valid *Dataset, err error) {
	if portion <= 0 || portion >= 1 {
		return nil, nil, fmt.Errorf("%w: split portion %v must be in (0, 1)", ErrInvalidData, portion)
	}
	n := d.Len()
	cut := int(portion * float64(n))
	if cut == 0 || cut == n {
		return nil, nil, fmt.Errorf("%w: split of %d samples at %v leaves an empty part", ErrInvalidData, n, portion)
	}
	first := make([]int, cut)
	for i := range first {
		first[i] = i
	}
	rest := make([]int, n-cut)
	for i := range rest {
		rest[i] = cut + i
	}
	return d.Subset(first), d.Subset(rest), nil
}
