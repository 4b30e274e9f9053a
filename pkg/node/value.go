package node

import (
	"fmt"
	"image"
	"image/color"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
)

// ValueType is the declared type of a port or a value flowing through it.
type ValueType uint8

const (
	// TypeInvalid is the zero ValueType. A Value of this type is "unset".
	TypeInvalid ValueType = iota
	// TypeTexture is a decoded RGBA image buffer.
	TypeTexture
	// TypeScalar is a float64 parameter (sizes, opacity, angles).
	TypeScalar
	// TypeString is a text parameter (file paths, captions).
	TypeString
	// TypeColor is a non-premultiplied RGBA color.
	TypeColor
)

var typeNames = map[ValueType]string{
	TypeInvalid: "invalid",
	TypeTexture: "texture",
	TypeScalar:  "scalar",
	TypeString:  "string",
	TypeColor:   "color",
}

func (t ValueType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ValueType(%d)", t)
}

// ParseValueType returns the ValueType named s ("texture", "scalar", ...).
func ParseValueType(s string) (ValueType, error) {
	for t, name := range typeNames {
		if name == s && t != TypeInvalid {
			return t, nil
		}
	}
	return TypeInvalid, fgerrors.New(fgerrors.ErrCodeInvalidInput, "unknown value type %q", s)
}

// Compatible reports whether a value of type src may flow into a port of
// type dst. Types are nominal: only identical, valid types are compatible.
func Compatible(src, dst ValueType) bool {
	return src != TypeInvalid && src == dst
}

// Value is a tagged value carried by a port. The zero Value is unset.
type Value struct {
	typ ValueType
	tex *image.NRGBA
	num float64
	str string
	col color.NRGBA
}

// Texture wraps an image buffer. A nil image yields an unset Value.
func Texture(img *image.NRGBA) Value {
	if img == nil {
		return Value{}
	}
	return Value{typ: TypeTexture, tex: img}
}

// Scalar wraps a float64.
func Scalar(f float64) Value { return Value{typ: TypeScalar, num: f} }

// String wraps a string.
func String(s string) Value { return Value{typ: TypeString, str: s} }

// Color wraps a color.
func Color(c color.NRGBA) Value { return Value{typ: TypeColor, col: c} }

// Type returns the value's type, or TypeInvalid for an unset value.
func (v Value) Type() ValueType { return v.typ }

// IsSet reports whether v holds a value.
func (v Value) IsSet() bool { return v.typ != TypeInvalid }

// Texture returns the image held by v.
func (v Value) Texture() (*image.NRGBA, bool) { return v.tex, v.typ == TypeTexture }

// Scalar returns the number held by v.
func (v Value) Scalar() (float64, bool) { return v.num, v.typ == TypeScalar }

// Str returns the string held by v.
func (v Value) Str() (string, bool) { return v.str, v.typ == TypeString }

// Color returns the color held by v.
func (v Value) Color() (color.NRGBA, bool) { return v.col, v.typ == TypeColor }

// Equal reports whether two values are equal. Textures compare by identity.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeTexture:
		return v.tex == o.tex
	case TypeScalar:
		return v.num == o.num
	case TypeString:
		return v.str == o.str
	case TypeColor:
		return v.col == o.col
	}
	return true
}

// String formats v for logs and diagnostics.
func (v Value) String() string {
	switch v.typ {
	case TypeTexture:
		b := v.tex.Bounds()
		return fmt.Sprintf("texture(%dx%d)", b.Dx(), b.Dy())
	case TypeScalar:
		return fmt.Sprintf("%g", v.num)
	case TypeString:
		return fmt.Sprintf("%q", v.str)
	case TypeColor:
		return FormatHex(v.col)
	}
	return "<unset>"
}

// FormatHex formats c as "#rrggbbaa".
func FormatHex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ParseHex parses "#rgb", "#rrggbb" or "#rrggbbaa". Alpha defaults to 0xff.
func ParseHex(s string) (color.NRGBA, error) {
	c := color.NRGBA{A: 0xff}
	if len(s) == 0 || s[0] != '#' {
		return c, fgerrors.New(fgerrors.ErrCodeInvalidInput, "color %q must start with '#'", s)
	}
	hex := s[1:]
	var err error
	switch len(hex) {
	case 3:
		_, err = fmt.Sscanf(hex, "%1x%1x%1x", &c.R, &c.G, &c.B)
		c.R, c.G, c.B = c.R*0x11, c.G*0x11, c.B*0x11
	case 6:
		_, err = fmt.Sscanf(hex, "%02x%02x%02x", &c.R, &c.G, &c.B)
	case 8:
		_, err = fmt.Sscanf(hex, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		return c, fgerrors.New(fgerrors.ErrCodeInvalidInput, "color %q has invalid length", s)
	}
	if err != nil {
		return c, fgerrors.Wrap(fgerrors.ErrCodeInvalidInput, err, "parse color %q", s)
	}
	return c, nil
}
