package project

import (
	"image/color"

	"github.com/mitchellh/mapstructure"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/node"
)

// rgba is the map form of a color param. Alpha defaults to opaque.
type rgba struct {
	R uint8  `mapstructure:"r"`
	G uint8  `mapstructure:"g"`
	B uint8  `mapstructure:"b"`
	A *uint8 `mapstructure:"a"`
}

// DecodeParam converts a raw document value to a value of type want.
// Decoders differ in how they represent numbers (float64 from JSON, int
// from YAML, int64 from TOML), so numeric conversion is weakly typed.
func DecodeParam(raw any, want node.ValueType) (node.Value, error) {
	switch want {
	case node.TypeScalar:
		switch raw.(type) {
		case string, bool, nil:
			return node.Value{}, fgerrors.New(fgerrors.ErrCodeTypeMismatch, "want a number, got %T", raw)
		}
		var f float64
		if err := mapstructure.WeakDecode(raw, &f); err != nil {
			return node.Value{}, fgerrors.Wrap(fgerrors.ErrCodeTypeMismatch, err, "want a number")
		}
		return node.Scalar(f), nil

	case node.TypeString:
		s, ok := raw.(string)
		if !ok {
			return node.Value{}, fgerrors.New(fgerrors.ErrCodeTypeMismatch, "want a string, got %T", raw)
		}
		return node.String(s), nil

	case node.TypeColor:
		c, err := decodeColor(raw)
		if err != nil {
			return node.Value{}, err
		}
		return node.Color(c), nil

	default:
		return node.Value{}, fgerrors.New(fgerrors.ErrCodeUnsupported, "%s inputs cannot be set from a document", want)
	}
}

func decodeColor(raw any) (color.NRGBA, error) {
	switch v := raw.(type) {
	case string:
		c, err := node.ParseHex(v)
		if err != nil {
			return color.NRGBA{}, fgerrors.Wrap(fgerrors.ErrCodeTypeMismatch, err, "invalid color")
		}
		return c, nil

	case []any:
		if len(v) != 3 && len(v) != 4 {
			return color.NRGBA{}, fgerrors.New(fgerrors.ErrCodeTypeMismatch, "color list needs 3 or 4 channels, got %d", len(v))
		}
		var ch []uint8
		if err := mapstructure.WeakDecode(v, &ch); err != nil {
			return color.NRGBA{}, fgerrors.Wrap(fgerrors.ErrCodeTypeMismatch, err, "invalid color channels")
		}
		c := color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: 0xff}
		if len(ch) == 4 {
			c.A = ch[3]
		}
		return c, nil

	case map[string]any:
		var m rgba
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			Result:           &m,
		})
		if err != nil {
			return color.NRGBA{}, err
		}
		if err := dec.Decode(v); err != nil {
			return color.NRGBA{}, fgerrors.Wrap(fgerrors.ErrCodeTypeMismatch, err, "invalid color map")
		}
		c := color.NRGBA{R: m.R, G: m.G, B: m.B, A: 0xff}
		if m.A != nil {
			c.A = *m.A
		}
		return c, nil

	default:
		return color.NRGBA{}, fgerrors.New(fgerrors.ErrCodeTypeMismatch, "want a color, got %T", raw)
	}
}

// EncodeParam converts a literal to its document form: scalars as
// float64, strings as-is, colors as "#rrggbbaa". Textures have no document
// form and report false.
func EncodeParam(v node.Value) (any, bool) {
	switch v.Type() {
	case node.TypeScalar:
		f, _ := v.Scalar()
		return f, true
	case node.TypeString:
		s, _ := v.Str()
		return s, true
	case node.TypeColor:
		c, _ := v.Color()
		return node.FormatHex(c), true
	default:
		return nil, false
	}
}
