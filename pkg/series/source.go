package series

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sguter90/watermaestro/pkg/models"
)

// ReadingSource supplies new readings for a parameter.
// Implementations backed by real telemetry can replace RandomSource without
// touching the sliding window logic.
type ReadingSource interface {
	Read(p models.Parameter) float64
}

// RandomSource draws uniformly distributed readings within each parameter's
// registered range.
type RandomSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSource creates a RandomSource. A nil source is seeded from the
// current time.
func NewRandomSource(source rand.Source) *RandomSource {
	if source == nil {
		source = rand.NewSource(time.Now().UnixNano())
	}
	return &RandomSource{rnd: rand.New(source)}
}

// Read returns a value in [Min, Max) rounded per the parameter's precision.
// One-decimal parameters draw from [Min, Max-0.05) so the top step Max-0.1
// gets the same weight as every other step.
// Unknown parameters read as zero.
func (s *RandomSource) Read(p models.Parameter) float64 {
	info, ok := p.Info()
	if !ok {
		return 0
	}

	s.mu.Lock()
	r := s.rnd.Float64()
	s.mu.Unlock()

	span := info.Max - info.Min
	if info.Precision == models.PrecisionOneDecimal {
		span -= 0.05
	}
	return Quantize(info, r*span+info.Min)
}

// Quantize applies the parameter's rounding policy to a raw value
func Quantize(info models.ParameterInfo, raw float64) float64 {
	switch info.Precision {
	case models.PrecisionOneDecimal:
		v := math.Round(raw*10) / 10
		// rounding may land on the exclusive upper bound
		if v >= info.Max {
			v = math.Round((info.Max-0.1)*10) / 10
		}
		return v
	default:
		return math.Floor(raw)
	}
}

var defaultSource = NewRandomSource(nil)

// Generate draws a reading for p from the package default source
func Generate(p models.Parameter) float64 {
	return defaultSource.Read(p)
}
