package dataset_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/darts/internal/backend/cpu"
	"github.com/born-ml/darts/internal/dataset"
	"github.com/born-ml/darts/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cifarRecords builds n CIFAR-10 records; record i has label i%10 and every
// pixel of channel c set to byte(i+c).
func cifarRecords(n int) []byte {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		buf.WriteByte(byte(i % 10))
		for c := 0; c < 3; c++ {
			buf.Write(bytes.Repeat([]byte{byte(i + c)}, 32*32))
		}
	}
	return buf.Bytes()
}

func TestReadCIFAR10(t *testing.T) {
	d, err := dataset.ReadCIFAR10(bytes.NewReader(cifarRecords(3)), 0)
	require.NoError(t, err)
	require.NoError(t, d.Validate())

	assert.Equal(t, 3, d.Len())
	assert.Equal(t, []int32{0, 1, 2}, d.Labels)
	assert.Equal(t, 3*32*32, d.ImageSize())

	img := d.Image(2)
	for c := 0; c < 3; c++ {
		want := (float32(2+c)/255 - dataset.CIFARMean[c]) / dataset.CIFARStd[c]
		assert.InDelta(t, want, img[c*1024], 1e-6)
		assert.InDelta(t, want, img[c*1024+1023], 1e-6)
	}
}

func TestReadCIFAR10_MaxSamples(t *testing.T) {
	d, err := dataset.ReadCIFAR10(bytes.NewReader(cifarRecords(5)), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
}

func TestReadCIFAR10_Errors(t *testing.T) {
	data := cifarRecords(2)
	_, err := dataset.ReadCIFAR10(bytes.NewReader(data[:len(data)-10]), 0)
	assert.ErrorIs(t, err, dataset.ErrInvalidData)

	data[0] = 12
	_, err = dataset.ReadCIFAR10(bytes.NewReader(data), 0)
	assert.ErrorIs(t, err, dataset.ErrInvalidData)
}

func TestLoadCIFAR10(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "cifar-10-batches-bin")
	require.NoError(t, os.Mkdir(sub, 0o755))
	for _, name := range dataset.CIFARTrainFiles {
		require.NoError(t, os.WriteFile(filepath.Join(sub, name), cifarRecords(2), 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(sub, dataset.CIFARTestFile), cifarRecords(4), 0o600))

	train, err := dataset.LoadCIFAR10(dir, true, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, train.Len())
	require.NoError(t, train.Validate())

	limited, err := dataset.LoadCIFAR10(dir, true, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, limited.Len())

	test, err := dataset.LoadCIFAR10(sub, false, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, test.Len())

	_, err = dataset.LoadCIFAR10(t.TempDir(), true, 0)
	assert.Error(t, err)
}

func TestSynthetic(t *testing.T) {
	a := dataset.Synthetic(20, 3, 8, 8, 4, 1)
	b := dataset.Synthetic(20, 3, 8, 8, 4, 1)
	c := dataset.Synthetic(20, 3, 8, 8, 4, 2)

	require.NoError(t, a.Validate())
	assert.Equal(t, a.Images, b.Images)
	assert.Equal(t, a.Labels, b.Labels)
	assert.NotEqual(t, a.Images, c.Images)
	assert.Equal(t, int32(3), a.Labels[7])
}

func TestSplit(t *testing.T) {
	d := dataset.Synthetic(10, 1, 2, 2, 2, 1)
	train, valid, err := d.Split(0.5)
	require.NoError(t, err)

	assert.Equal(t, 5, train.Len())
	assert.Equal(t, 5, valid.Len())
	assert.Equal(t, d.Image(0), train.Image(0))
	assert.Equal(t, d.Image(5), valid.Image(0))

	_, _, err = d.Split(1)
	assert.ErrorIs(t, err, dataset.ErrInvalidData)
	_, _, err = d.Split(0.01)
	assert.ErrorIs(t, err, dataset.ErrInvalidData)
}

func TestValidate(t *testing.T) {
	d := dataset.Synthetic(4, 1, 2, 2, 2, 1)
	d.Labels[1] = 5
	assert.ErrorIs(t, d.Validate(), dataset.ErrInvalidData)

	d = dataset.Synthetic(4, 1, 2, 2, 2, 1)
	d.Images = d.Images[:3]
	assert.ErrorIs(t, d.Validate(), dataset.ErrInvalidData)
}

func TestLoader_Batches(t *testing.T) {
	d := dataset.Synthetic(10, 1, 2, 2, 2, 1)
	loader, err := dataset.NewLoader(d, dataset.LoaderConfig{BatchSize: 4})
	require.NoError(t, err)
	assert.Equal(t, 3, loader.NumBatches())

	var sizes []int
	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
		sizes = append(sizes, batch.N)
		assert.Len(t, batch.Images, batch.N*4)
	}
	assert.Equal(t, []int{4, 4, 2}, sizes)

	loader.Reset()
	first, ok := loader.Next()
	require.True(t, ok)
	assert.Equal(t, d.Images[:16], first.Images)
	assert.Equal(t, d.Labels[:4], first.Labels)
}

func TestLoader_DropLastAndCycle(t *testing.T) {
	d := dataset.Synthetic(10, 1, 2, 2, 2, 1)
	loader, err := dataset.NewLoader(d, dataset.LoaderConfig{BatchSize: 4, DropLast: true})
	require.NoError(t, err)
	assert.Equal(t, 2, loader.NumBatches())

	for i := 0; i < 5; i++ {
		assert.Equal(t, 4, loader.Cycle().N)
	}

	_, err = dataset.NewLoader(d, dataset.LoaderConfig{BatchSize: 11, DropLast: true})
	assert.ErrorIs(t, err, dataset.ErrInvalidData)
	_, err = dataset.NewLoader(d, dataset.LoaderConfig{})
	assert.ErrorIs(t, err, dataset.ErrInvalidData)
}

func TestLoader_ShuffleCoversEverySample(t *testing.T) {
	d := dataset.Synthetic(12, 1, 2, 2, 3, 1)
	loader, err := dataset.NewLoader(d, dataset.LoaderConfig{BatchSize: 5, Shuffle: true, Seed: 3})
	require.NoError(t, err)

	counts := map[int32]int{}
	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
		for _, l := range batch.Labels {
			counts[l]++
		}
	}
	assert.Equal(t, map[int32]int{0: 4, 1: 4, 2: 4}, counts)
}

func TestLoader_AugmentPreservesValues(t *testing.T) {
	d := &dataset.Dataset{
		Images:     []float32{1, 2, 3, 4, 5, 6, 7, 8, 9},
		Labels:     []int32{0},
		Channels:   1,
		Height:     3,
		Width:      3,
		NumClasses: 1,
	}
	loader, err := dataset.NewLoader(d, dataset.LoaderConfig{BatchSize: 1, Augment: true, Seed: 1})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		batch := loader.Cycle()
		require.Len(t, batch.Images, 9)
		for _, v := range batch.Images {
			assert.True(t, v >= 0 && v <= 9)
		}
	}
}

func TestToTensors(t *testing.T) {
	backend := cpu.New()
	d := dataset.Synthetic(3, 2, 4, 4, 3, 1)
	loader, err := dataset.NewLoader(d, dataset.LoaderConfig{BatchSize: 3})
	require.NoError(t, err)
	batch, ok := loader.Next()
	require.True(t, ok)

	x, y := dataset.ToTensors(batch, backend)
	assert.Equal(t, tensor.Shape{3, 2, 4, 4}, x.Shape())
	assert.Equal(t, tensor.Shape{3}, y.Shape())
	assert.Equal(t, batch.Labels, y.Data())
}
