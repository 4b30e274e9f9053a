package node

import (
	"image"
	"image/color"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
)

// Inputs holds the resolved input values handed to [Evaluator.Evaluate],
// keyed by input port name.
type Inputs map[string]Value

// Outputs holds the values produced by [Evaluator.Evaluate], keyed by output
// port name.
type Outputs map[string]Value

// Has reports whether the input called name was resolved.
func (in Inputs) Has(name string) bool {
	_, ok := in[name]
	return ok
}

func (in Inputs) get(name string, want ValueType) (Value, error) {
	v, ok := in[name]
	if !ok {
		return Value{}, fgerrors.New(fgerrors.ErrCodeUnconnectedInput, "input %q is not set", name)
	}
	if v.Type() != want {
		return Value{}, fgerrors.New(fgerrors.ErrCodeTypeMismatch, "input %q is %s, want %s", name, v.Type(), want)
	}
	return v, nil
}

// Texture returns the texture bound to input name.
func (in Inputs) Texture(name string) (*image.NRGBA, error) {
	v, err := in.get(name, TypeTexture)
	if err != nil {
		return nil, err
	}
	img, _ := v.Texture()
	return img, nil
}

// Scalar returns the number bound to input name.
func (in Inputs) Scalar(name string) (float64, error) {
	v, err := in.get(name, TypeScalar)
	if err != nil {
		return 0, err
	}
	f, _ := v.Scalar()
	return f, nil
}

// String returns the string bound to input name.
func (in Inputs) String(name string) (string, error) {
	v, err := in.get(name, TypeString)
	if err != nil {
		return "", err
	}
	s, _ := v.Str()
	return s, nil
}

// Color returns the color bound to input name.
func (in Inputs) Color(name string) (color.NRGBA, error) {
	v, err := in.get(name, TypeColor)
	if err != nil {
		return color.NRGBA{}, err
	}
	c, _ := v.Color()
	return c, nil
}

// Texture returns the texture produced on output name, if any.
func (out Outputs) Texture(name string) (*image.NRGBA, bool) {
	v, ok := out[name]
	if !ok {
		return nil, false
	}
	return v.Texture()
}
