package dataset

import "math/rand"

// Synthetic creates a learnable dataset of n images: every class has its
// own random per-channel, per-row pattern, and each sample adds Gaussian
// noise with standard deviation 0.5 to its class pattern.
func Synthetic(n, channels, height, width, numClasses int, seed int64) *Dataset {
	//nolint:gosec // synthetic data, not security sensitive
	rng := rand.New(rand.NewSource(seed))

	patterns := make([][]float32, numClasses)
	for k := range patterns {
		patterns[k] = make([]float32, channels*height)
		for i := range patterns[k] {
			patterns[k][i] = float32(rng.NormFloat64())
		}
	}

	d := &Dataset{
		Images:     make([]float32, 0, n*channels*height*width),
		Labels:     make([]int32, n),
		Channels:   channels,
		Height:     height,
		Width:      width,
		NumClasses: numClasses,
	}
	for i := 0; i < n; i++ {
		k := i % numClasses
		d.Labels[i] = int32(k)
		for c := 0; c < channels; c++ {
			for y := 0; y < height; y++ {
				base := patterns[k][c*height+y]
				for x := 0; x < width; x++ {
					d.Images = append(d.Images, base+float32(0.5*rng.NormFloat64()))
				}
			}
		}
	}
	return d
}
