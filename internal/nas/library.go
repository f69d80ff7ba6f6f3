package nas

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/tensor"
)

// NoneOp is the name of the zero operation. Genotype extraction never selects it.
const NoneOp = "none"

// Primitives is the search catalogue used by every mixed edge, in order.
//
// The order is significant: column i of an architecture-weight matrix
// belongs to Primitives[i].
var Primitives = []string{
	NoneOp,
	"max_pool_3x3",
	"avg_pool_3x3",
	"skip_connect",
	"sep_conv_3x3",
	"sep_conv_5x5",
	"dil_conv_3x3",
	"dil_conv_5x5",
}

// OpFactory builds one candidate operation mapping c channels to c channels.
// With stride 2 the spatial extent is halved.
type OpFactory[B tensor.Backend] func(c, stride int, affine bool, rng *rand.Rand, backend B) nn.Module[B]

// Library maps operation names to factories.
type Library[B tensor.Backend] struct {
	factories map[string]OpFactory[B]
}

// NewLibrary returns an empty library.
func NewLibrary[B tensor.Backend]() *Library[B] {
	return &Library[B]{factories: make(map[string]OpFactory[B])}
}

// DefaultLibrary returns a library holding the search catalogue plus the
// library-only operations sep_conv_7x7 and conv_7x1_1x7.
func DefaultLibrary[B tensor.Backend]() *Library[B] {
	lib := NewLibrary[B]()
	lib.Register(NoneOp, func(_, stride int, _ bool, _ *rand.Rand, backend B) nn.Module[B] {
		return NewZero(stride, backend)
	})
	lib.Register("avg_pool_3x3", func(_, stride int, _ bool, _ *rand.Rand, backend B) nn.Module[B] {
		return nn.NewAvgPool2D(3, stride, 1, backend)
	})
	lib.Register("max_pool_3x3", func(_, stride int, _ bool, _ *rand.Rand, backend B) nn.Module[B] {
		return nn.NewMaxPool2D(3, stride, 1, backend)
	})
	lib.Register("skip_connect", func(c, stride int, affine bool, rng *rand.Rand, backend B) nn.Module[B] {
		if stride == 1 {
			return NewIdentity[B]()
		}
		return NewFactorizedReduce(c, c, affine, rng, backend)
	})
	lib.Register("sep_conv_3x3", func(c, stride int, affine bool, rng *rand.Rand, backend B) nn.Module[B] {
		return NewSepConv(c, c, 3, stride, 1, affine, rng, backend)
	})
	lib.Register("sep_conv_5x5", func(c, stride int, affine bool, rng *rand.Rand, backend B) nn.Module[B] {
		return NewSepConv(c, c, 5, stride, 2, affine, rng, backend)
	})
	lib.Register("sep_conv_7x7", func(c, stride int, affine bool, rng *rand.Rand, backend B) nn.Module[B] {
		return NewSepConv(c, c, 7, stride, 3, affine, rng, backend)
	})
	lib.Register("dil_conv_3x3", func(c, stride int, affine bool, rng *rand.Rand, backend B) nn.Module[B] {
		return NewDilConv(c, c, 3, stride, 2, 2, affine, rng, backend)
	})
	lib.Register("dil_conv_5x5", func(c, stride int, affine bool, rng *rand.Rand, backend B) nn.Module[B] {
		return NewDilConv(c, c, 5, stride, 4, 2, affine, rng, backend)
	})
	lib.Register("conv_7x1_1x7", func(c, stride int, affine bool, rng *rand.Rand, backend B) nn.Module[B] {
		return NewConv7x1x7(c, stride, affine, rng, backend)
	})
	return lib
}

// Register adds or replaces the factory for name.
func (l *Library[B]) Register(name string, f OpFactory[B]) {
	if name == "" || f == nil {
		panic("nas: Register requires a name and a factory")
	}
	l.factories[name] = f
}

// Has reports whether name is registered.
func (l *Library[B]) Has(name string) bool {
	_, ok := l.factories[name]
	return ok
}

// Names returns the registered names in sorted order.
func (l *Library[B]) Names() []string {
	names := make([]string, 0, len(l.factories))
	for name := range l.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds the operation registered under name.
func (l *Library[B]) New(name string, c, stride int, affine bool, rng *rand.Rand, backend B) (nn.Module[B], error) {
	f, ok := l.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrimitive, name)
	}
	if c <= 0 || (stride != 1 && stride != 2) {
		return nil, fmt.Errorf("%w: %s with channels=%d stride=%d", ErrInvalidConfig, name, c, stride)
	}
	return f(c, stride, affine, rng, backend), nil
}
