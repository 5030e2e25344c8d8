package hal

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoded sizes, in bytes.
const (
	SizeUInt32                 = 4
	SizeFloat32                = 4
	SizeFloat64                = 8
	SizeObjectID               = 4
	SizeValueRange             = 16
	SizeStreamBasicDescription = 40
	SizeRangedDescription      = SizeStreamBasicDescription + SizeValueRange
	SizeChannelDescription     = 20
	sizeChannelLayoutHeader    = 12
)

var le = binary.LittleEndian

// Linear PCM format constants.
var FormatLinearPCM = FourCC("lpcm")

const (
	FormatFlagIsSignedInteger uint32 = 1 << 2
	FormatFlagIsPacked        uint32 = 1 << 3
)

// Channel labels.
const (
	ChannelLabelLeft  uint32 = 1
	ChannelLabelRight uint32 = 2
)

// ChannelLayoutTagUseDescriptions marks a layout described channel by channel.
const ChannelLayoutTagUseDescriptions uint32 = 0

// ValueRange is an inclusive [Min, Max] pair.
type ValueRange struct {
	Min float64
	Max float64
}

// StreamBasicDescription describes a stream format.
type StreamBasicDescription struct {
	SampleRate       float64
	FormatID         uint32
	FormatFlags      uint32
	BytesPerPacket   uint32
	FramesPerPacket  uint32
	BytesPerFrame    uint32
	ChannelsPerFrame uint32
	BitsPerChannel   uint32
	Reserved         uint32
}

// RangedDescription is a format plus the sample rates it applies to.
type RangedDescription struct {
	Format          StreamBasicDescription
	SampleRateRange ValueRange
}

// ChannelDescription describes one channel of a layout.
type ChannelDescription struct {
	Label       uint32
	Flags       uint32
	Coordinates [3]float32
}

// ChannelLayout describes the spatial layout of a stream's channels.
type ChannelLayout struct {
	Tag          uint32
	Bitmap       uint32
	Descriptions []ChannelDescription
}

// Size returns the encoded size of the layout.
func (l ChannelLayout) Size() int {
	return sizeChannelLayoutHeader + len(l.Descriptions)*SizeChannelDescription
}

func need(out []byte, n int) error {
	if len(out) < n {
		return fmt.Errorf("%w: have %d, need %d", ErrBadPropertySize, len(out), n)
	}
	return nil
}

// PutUint32 writes v and returns the bytes written.
func PutUint32(out []byte, v uint32) (int, error) {
	if err := need(out, SizeUInt32); err != nil {
		return 0, err
	}
	le.PutUint32(out, v)
	return SizeUInt32, nil
}

// PutBool writes 1 or 0 as a uint32.
func PutBool(out []byte, v bool) (int, error) {
	if v {
		return PutUint32(out, 1)
	}
	return PutUint32(out, 0)
}

// PutFloat32 writes v and returns the bytes written.
func PutFloat32(out []byte, v float32) (int, error) {
	if err := need(out, SizeFloat32); err != nil {
		return 0, err
	}
	le.PutUint32(out, math.Float32bits(v))
	return SizeFloat32, nil
}

// PutFloat64 writes v and returns the bytes written.
func PutFloat64(out []byte, v float64) (int, error) {
	if err := need(out, SizeFloat64); err != nil {
		return 0, err
	}
	le.PutUint64(out, math.Float64bits(v))
	return SizeFloat64, nil
}

// PutString writes s as UTF-8. The buffer must hold the whole string.
func PutString(out []byte, s string) (int, error) {
	if err := need(out, len(s)); err != nil {
		return 0, err
	}
	return copy(out, s), nil
}

// PutObjectIDs writes as many ids as fit in out and returns the bytes written.
func PutObjectIDs(out []byte, ids []ObjectID) int {
	n := min(len(out)/SizeObjectID, len(ids))
	for i := 0; i < n; i++ {
		le.PutUint32(out[i*SizeObjectID:], uint32(ids[i]))
	}
	return n * SizeObjectID
}

// PutUint32s writes as many values as fit in out and returns the bytes written.
func PutUint32s(out []byte, vs []uint32) int {
	n := min(len(out)/SizeUInt32, len(vs))
	for i := 0; i < n; i++ {
		le.PutUint32(out[i*SizeUInt32:], vs[i])
	}
	return n * SizeUInt32
}

func putValueRange(out []byte, r ValueRange) {
	le.PutUint64(out, math.Float64bits(r.Min))
	le.PutUint64(out[8:], math.Float64bits(r.Max))
}

// PutValueRange writes one range.
func PutValueRange(out []byte, r ValueRange) (int, error) {
	if err := need(out, SizeValueRange); err != nil {
		return 0, err
	}
	putValueRange(out, r)
	return SizeValueRange, nil
}

// PutValueRanges writes as many ranges as fit in out.
func PutValueRanges(out []byte, rs []ValueRange) int {
	n := min(len(out)/SizeValueRange, len(rs))
	for i := 0; i < n; i++ {
		putValueRange(out[i*SizeValueRange:], rs[i])
	}
	return n * SizeValueRange
}

func putStreamBasicDescription(out []byte, d StreamBasicDescription) {
	le.PutUint64(out, math.Float64bits(d.SampleRate))
	le.PutUint32(out[8:], d.FormatID)
	le.PutUint32(out[12:], d.FormatFlags)
	le.PutUint32(out[16:], d.BytesPerPacket)
	le.PutUint32(out[20:], d.FramesPerPacket)
	le.PutUint32(out[24:], d.BytesPerFrame)
	le.PutUint32(out[28:], d.ChannelsPerFrame)
	le.PutUint32(out[32:], d.BitsPerChannel)
	le.PutUint32(out[36:], d.Reserved)
}

// PutStreamBasicDescription writes one format.
func PutStreamBasicDescription(out []byte, d StreamBasicDescription) (int, error) {
	if err := need(out, SizeStreamBasicDescription); err != nil {
		return 0, err
	}
	putStreamBasicDescription(out, d)
	return SizeStreamBasicDescription, nil
}

// PutRangedDescriptions writes as many ranged formats as fit in out.
func PutRangedDescriptions(out []byte, ds []RangedDescription) int {
	n := min(len(out)/SizeRangedDescription, len(ds))
	for i := 0; i < n; i++ {
		b := out[i*SizeRangedDescription:]
		putStreamBasicDescription(b, ds[i].Format)
		putValueRange(b[SizeStreamBasicDescription:], ds[i].SampleRateRange)
	}
	return n * SizeRangedDescription
}

// PutChannelLayout writes the whole layout. The buffer must hold all of it.
func PutChannelLayout(out []byte, l ChannelLayout) (int, error) {
	size := l.Size()
	if err := need(out, size); err != nil {
		return 0, err
	}
	le.PutUint32(out, l.Tag)
	le.PutUint32(out[4:], l.Bitmap)
	le.PutUint32(out[8:], uint32(len(l.Descriptions)))
	for i, d := range l.Descriptions {
		b := out[sizeChannelLayoutHeader+i*SizeChannelDescription:]
		le.PutUint32(b, d.Label)
		le.PutUint32(b[4:], d.Flags)
		for j, c := range d.Coordinates {
			le.PutUint32(b[8+4*j:], math.Float32bits(c))
		}
	}
	return size, nil
}

func exact(data []byte, n int) error {
	if len(data) != n {
		return fmt.Errorf("%w: got %d, want %d", ErrBadPropertySize, len(data), n)
	}
	return nil
}

// Uint32 decodes a value that must be exactly 4 bytes.
func Uint32(data []byte) (uint32, error) {
	if err := exact(data, SizeUInt32); err != nil {
		return 0, err
	}
	return le.Uint32(data), nil
}

// Float32 decodes a value that must be exactly 4 bytes.
func Float32(data []byte) (float32, error) {
	if err := exact(data, SizeFloat32); err != nil {
		return 0, err
	}
	return math.Float32frombits(le.Uint32(data)), nil
}

// Float64 decodes a value that must be exactly 8 bytes.
func Float64(data []byte) (float64, error) {
	if err := exact(data, SizeFloat64); err != nil {
		return 0, err
	}
	return math.Float64frombits(le.Uint64(data)), nil
}

// DecodeStreamBasicDescription decodes a format that must be exactly 40 bytes.
func DecodeStreamBasicDescription(data []byte) (StreamBasicDescription, error) {
	if err := exact(data, SizeStreamBasicDescription); err != nil {
		return StreamBasicDescription{}, err
	}
	return StreamBasicDescription{
		SampleRate:       math.Float64frombits(le.Uint64(data)),
		FormatID:         le.Uint32(data[8:]),
		FormatFlags:      le.Uint32(data[12:]),
		BytesPerPacket:   le.Uint32(data[16:]),
		FramesPerPacket:  le.Uint32(data[20:]),
		BytesPerFrame:    le.Uint32(data[24:]),
		ChannelsPerFrame: le.Uint32(data[28:]),
		BitsPerChannel:   le.Uint32(data[32:]),
		Reserved:         le.Uint32(data[36:]),
	}, nil
}

// DecodeObjectIDs decodes a packed id list. Trailing partial entries are ignored.
func DecodeObjectIDs(data []byte) []ObjectID {
	ids := make([]ObjectID, len(data)/SizeObjectID)
	for i := range ids {
		ids[i] = ObjectID(le.Uint32(data[i*SizeObjectID:]))
	}
	return ids
}

// DecodeValueRanges decodes a packed range list.
func DecodeValueRanges(data []byte) []ValueRange {
	rs := make([]ValueRange, len(data)/SizeValueRange)
	for i := range rs {
		b := data[i*SizeValueRange:]
		rs[i] = ValueRange{
			Min: math.Float64frombits(le.Uint64(b)),
			Max: math.Float64frombits(le.Uint64(b[8:])),
		}
	}
	return rs
}

// EncodeUint32 returns v as a 4-byte slice.
func EncodeUint32(v uint32) []byte {
	return le.AppendUint32(nil, v)
}

// EncodeFloat32 returns v as a 4-byte slice.
func EncodeFloat32(v float32) []byte {
	return le.AppendUint32(nil, math.Float32bits(v))
}

// EncodeFloat64 returns v as an 8-byte slice.
func EncodeFloat64(v float64) []byte {
	return le.AppendUint64(nil, math.Float64bits(v))
}

// EncodeStreamBasicDescription returns d as a 40-byte slice.
func EncodeStreamBasicDescription(d StreamBasicDescription) []byte {
	out := make([]byte, SizeStreamBasicDescription)
	putStreamBasicDescription(out, d)
	return out
}
