// Package volume maps raw hardware volume values to decibels and to the
// 0..1 scalar the host shows on a slider.
//
// A Curve is a sorted table of raw ranges, each mapped linearly onto a
// decibel range. The scalar is derived from the decibel value through a
// power transfer function once the curve spans more than
// TransferThresholdDB.
package volume

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// TransferThresholdDB is the decibel span above which the transfer
// function is applied to scalar conversions.
const TransferThresholdDB = 30

// DefaultTransferExponent shapes scalar values as dB fraction^(1/2).
const DefaultTransferExponent = 2.0

// Errors returned while building a curve.
var (
	ErrNoRanges    = errors.New("volume: curve needs at least one range")
	ErrBadRange    = errors.New("volume: range is empty or inverted")
	ErrOverlap     = errors.New("volume: ranges overlap")
	ErrBadExponent = errors.New("volume: transfer exponent must be > 0")
)

// Range maps raw values [MinRaw, MaxRaw] linearly onto [MinDB, MaxDB].
type Range struct {
	MinRaw int32
	MaxRaw int32
	MinDB  float64
	MaxDB  float64
}

func (r Range) dbPerRaw() float64 {
	return (r.MaxDB - r.MinDB) / float64(r.MaxRaw-r.MinRaw)
}

// Curve is an immutable raw <-> dB <-> scalar mapping. It is safe for
// concurrent use.
type Curve struct {
	ranges   []Range
	exponent float64
}

// New builds a curve from ranges. Ranges may be given in any order but
// must not overlap in raw or dB space.
func New(exponent float64, ranges ...Range) (*Curve, error) {
	if len(ranges) == 0 {
		return nil, ErrNoRanges
	}
	if exponent <= 0 {
		return nil, ErrBadExponent
	}

	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinRaw < sorted[j].MinRaw })

	for i, r := range sorted {
		if r.MaxRaw <= r.MinRaw || r.MaxDB <= r.MinDB {
			return nil, fmt.Errorf("%w: %+v", ErrBadRange, r)
		}
		if i > 0 {
			prev := sorted[i-1]
			if r.MinRaw < prev.MaxRaw || r.MinDB < prev.MaxDB {
				return nil, fmt.Errorf("%w: %+v and %+v", ErrOverlap, prev, r)
			}
		}
	}

	return &Curve{ranges: sorted, exponent: exponent}, nil
}

// Default returns the curve used by the master volume controls:
// raw 0..96 mapped onto -96..0 dB.
func Default() *Curve {
	c, err := New(DefaultTransferExponent, Range{MinRaw: 0, MaxRaw: 96, MinDB: -96, MaxDB: 0})
	if err != nil {
		panic(err)
	}
	return c
}

// MinRaw returns the smallest raw value.
func (c *Curve) MinRaw() int32 { return c.ranges[0].MinRaw }

// MaxRaw returns the largest raw value.
func (c *Curve) MaxRaw() int32 { return c.ranges[len(c.ranges)-1].MaxRaw }

// MinDB returns the smallest decibel value.
func (c *Curve) MinDB() float64 { return c.ranges[0].MinDB }

// MaxDB returns the largest decibel value.
func (c *Curve) MaxDB() float64 { return c.ranges[len(c.ranges)-1].MaxDB }

// ClampRaw limits raw to [MinRaw, MaxRaw].
func (c *Curve) ClampRaw(raw int32) int32 {
	return min(max(raw, c.MinRaw()), c.MaxRaw())
}

// ClampDB limits db to [MinDB, MaxDB].
func (c *Curve) ClampDB(db float64) float64 {
	if math.IsNaN(db) {
		return c.MinDB()
	}
	return min(max(db, c.MinDB()), c.MaxDB())
}

// ClampScalar limits s to [0, 1].
func ClampScalar(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return min(max(s, 0), 1)
}

func (c *Curve) applyTransfer() bool {
	return c.MaxDB()-c.MinDB() > TransferThresholdDB
}

// RawToDB converts a raw value to decibels. Out of range values clamp.
// Raw values falling in a gap between ranges take the lower range's top.
func (c *Curve) RawToDB(raw int32) float64 {
	raw = c.ClampRaw(raw)
	db := c.MinDB()
	for _, r := range c.ranges {
		if raw < r.MinRaw {
			break
		}
		if raw >= r.MaxRaw {
			db = r.MaxDB
			continue
		}
		return r.MinDB + float64(raw-r.MinRaw)*r.dbPerRaw()
	}
	return db
}

// DBToRaw converts decibels to the nearest raw value. Out of range values clamp.
func (c *Curve) DBToRaw(db float64) int32 {
	db = c.ClampDB(db)
	raw := c.MinRaw()
	for _, r := range c.ranges {
		if db < r.MinDB {
			break
		}
		if db >= r.MaxDB {
			raw = r.MaxRaw
			continue
		}
		return r.MinRaw + int32(math.Round((db-r.MinDB)/r.dbPerRaw()))
	}
	return raw
}

// DBToScalar converts decibels to a 0..1 scalar.
func (c *Curve) DBToScalar(db float64) float64 {
	db = c.ClampDB(db)
	s := (db - c.MinDB()) / (c.MaxDB() - c.MinDB())
	if c.applyTransfer() {
		s = math.Pow(s, 1/c.exponent)
	}
	return ClampScalar(s)
}

// ScalarToDB converts a 0..1 scalar to decibels.
func (c *Curve) ScalarToDB(s float64) float64 {
	s = ClampScalar(s)
	if c.applyTransfer() {
		s = math.Pow(s, c.exponent)
	}
	return c.MinDB() + s*(c.MaxDB()-c.MinDB())
}

// RawToScalar converts a raw value to a 0..1 scalar.
func (c *Curve) RawToScalar(raw int32) float64 {
	return c.DBToScalar(c.RawToDB(raw))
}

// ScalarToRaw converts a 0..1 scalar to the nearest raw value.
func (c *Curve) ScalarToRaw(s float64) int32 {
	return c.DBToRaw(c.ScalarToDB(s))
}
