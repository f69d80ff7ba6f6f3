package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CIFAR-10 binary layout: each record is one label byte followed by
// 3×32×32 pixel bytes, red plane first.
const (
	CIFARChannels   = 3
	CIFARHeight     = 32
	CIFARWidth      = 32
	CIFARNumClasses = 10

	cifarImageBytes  = CIFARChannels * CIFARHeight * CIFARWidth
	cifarRecordBytes = 1 + cifarImageBytes
)

// Per-channel normalization of the CIFAR-10 training set.
var (
	CIFARMean = [CIFARChannels]float32{0.49139968, 0.48215827, 0.44653124}
	CIFARStd  = [CIFARChannels]float32{0.24703233, 0.24348505, 0.26158768}
)

// CIFARTrainFiles and CIFARTestFile name the files of the binary release.
var (
	CIFARTrainFiles = []string{
		"data_batch_1.bin", "data_batch_2.bin", "data_batch_3.bin",
		"data_batch_4.bin", "data_batch_5.bin",
	}
	CIFARTestFile = "test_batch.bin"
)

// ReadCIFAR10 reads CIFAR-10 binary records until EOF, keeping at most
// maxSamples (0 = all). Pixels are scaled to [0, 1] and normalized with
// CIFARMean and CIFARStd.
func ReadCIFAR10(r io.Reader, maxSamples int) (*Dataset, error) {
	br := bufio.NewReader(r)
	d := &Dataset{
		Channels:   CIFARChannels,
		Height:     CIFARHeight,
		Width:      CIFARWidth,
		NumClasses: CIFARNumClasses,
	}

	record := make([]byte, cifarRecordBytes)
	plane := CIFARHeight * CIFARWidth
	for maxSamples <= 0 || d.Len() < maxSamples {
		_, err := io.ReadFull(br, record)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrInvalidData, d.Len(), err)
		}

		label := record[0]
		if int(label) >= CIFARNumClasses {
			return nil, fmt.Errorf("%w: record %d: label %d", ErrInvalidData, d.Len(), label)
		}
		d.Labels = append(d.Labels, int32(label))
		for i, px := range record[1:] {
			c := i / plane
			d.Images = append(d.Images, (float32(px)/255-CIFARMean[c])/CIFARStd[c])
		}
	}
	return d, nil
}

// LoadCIFAR10 loads the training or test split from dir. The files may sit
// in dir itself or in its cifar-10-batches-bin subdirectory.
func LoadCIFAR10(dir string, train bool, maxSamples int) (*Dataset, error) {
	files := []string{CIFARTestFile}
	if train {
		files = CIFARTrainFiles
	}
	if _, err := os.Stat(filepath.Join(dir, files[0])); err != nil {
		dir = filepath.Join(dir, "cifar-10-batches-bin")
	}

	out := &Dataset{
		Channels:   CIFARChannels,
		Height:     CIFARHeight,
		Width:      CIFARWidth,
		NumClasses: CIFARNumClasses,
	}
	for _, name := range files {
		remaining := 0
		if maxSamples > 0 {
			remaining = maxSamples - out.Len()
			if remaining <= 0 {
				break
			}
		}
		part, err := readCIFARFile(filepath.Join(dir, name), remaining)
		if err != nil {
			return nil, err
		}
		out.Images = append(out.Images, part.Images...)
		out.Labels = append(out.Labels, part.Labels...)
	}
	return out, nil
}

func readCIFARFile(path string, maxSamples int) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CIFAR-10 file: %w", err)
	}
	defer f.Close()

	d, err := ReadCIFAR10(f, maxSamples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return d, nil
}
