package grid

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	"github.com/ctessum/sparse"
)

// Regridder interpolates time series from one horizontal grid onto another.
// Construction precomputes the per-target-cell interpolation weights, which
// is the expensive part; Apply is cheap and safe for concurrent use.
type Regridder struct {
	srcX, srcY []float64
	dstX, dstY []float64
	wx, wy     []axisWeight
}

// axisWeight holds the bracketing source indices and the linear weight of
// one target coordinate along one axis.
type axisWeight struct {
	i0, i1 int
	frac   float64
}

// NewRegridder builds a bilinear interpolation operator from the source
// coordinates onto the target coordinates. Target points outside the source
// extent clamp to the edge value. Coordinates must be strictly increasing.
func NewRegridder(srcY, srcX, dstY, dstX []float64) (*Regridder, error) {
	wy, err := axisWeights(srcY, dstY)
	if err != nil {
		return nil, fmt.Errorf("regrid y axis: %w", err)
	}
	wx, err := axisWeights(srcX, dstX)
	if err != nil {
		return nil, fmt.Errorf("regrid x axis: %w", err)
	}
	return &Regridder{srcX: srcX, srcY: srcY, dstX: dstX, dstY: dstY, wx: wx, wy: wy}, nil
}

func axisWeights(src, dst []float64) ([]axisWeight, error) {
	if len(src) < 1 {
		return nil, fmt.Errorf("empty source axis")
	}
	for i := 1; i < len(src); i++ {
		if src[i] <= src[i-1] {
			return nil, fmt.Errorf("source coordinates not strictly increasing at %d", i)
		}
	}
	ws := make([]axisWeight, len(dst))
	for i, c := range dst {
		j := sort.SearchFloat64s(src, c)
		switch {
		case j == 0:
			ws[i] = axisWeight{i0: 0, i1: 0}
		case j == len(src):
			ws[i] = axisWeight{i0: len(src) - 1, i1: len(src) - 1}
		case src[j] == c:
			ws[i] = axisWeight{i0: j, i1: j}
		default:
			ws[i] = axisWeight{
				i0:   j - 1,
				i1:   j,
				frac: (c - src[j-1]) / (src[j] - src[j-1]),
			}
		}
	}
	return ws, nil
}

// Apply regrids every time step of ts onto the target grid. The returned
// series shares the time axis and identity of the input; the mask is dropped
// since it belongs to the source grid.
func (r *Regridder) Apply(ts *TimeSeries) *TimeSeries {
	nt := ts.NT()
	ny, nx := len(r.wy), len(r.wx)
	out := &TimeSeries{
		VarName:  ts.VarName,
		Quantity: ts.Quantity,
		Units:    ts.Units,
		Time:     ts.Time,
		XCoords:  r.dstX,
		YCoords:  r.dstY,
		Data:     sparse.ZerosDense(nt, ny, nx),
	}
	for t := 0; t < nt; t++ {
		for y, wy := range r.wy {
			for x, wx := range r.wx {
				v00 := ts.Data.Get(t, wy.i0, wx.i0)
				v01 := ts.Data.Get(t, wy.i0, wx.i1)
				v10 := ts.Data.Get(t, wy.i1, wx.i0)
				v11 := ts.Data.Get(t, wy.i1, wx.i1)
				top := v00 + (v01-v00)*wx.frac
				bot := v10 + (v11-v10)*wx.frac
				out.Data.Set(top+(bot-top)*wy.frac, t, y, x)
			}
		}
	}
	return out
}

// RegridderCache memoizes regridding operators keyed by the source and
// target grid coordinates. Operator construction is the only work the
// correction pipeline serializes across cells and units; lookups of an
// existing operator are cheap.
type RegridderCache struct {
	mu  sync.Mutex
	ops map[uint64]*Regridder
}

// NewRegridderCache returns an empty cache.
func NewRegridderCache() *RegridderCache {
	return &RegridderCache{ops: make(map[uint64]*Regridder)}
}

// Get returns the cached operator for the given source and target grids,
// constructing it on first use. Grids of equal shape but different
// coordinates get distinct operators.
func (c *RegridderCache) Get(srcY, srcX, dstY, dstX []float64) (*Regridder, error) {
	key := gridKey(srcY, srcX, dstY, dstX)
	c.mu.Lock()
	defer c.mu.Unlock()
	if op, ok := c.ops[key]; ok {
		return op, nil
	}
	op, err := NewRegridder(srcY, srcX, dstY, dstX)
	if err != nil {
		return nil, err
	}
	c.ops[key] = op
	return op, nil
}

// gridKey hashes the lengths and values of all four coordinate axes.
func gridKey(axes ...[]float64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, axis := range axes {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(axis)))
		h.Write(buf[:])
		for _, v := range axis {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return h.Sum64()
}
