package nodes

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/imaging"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/node"
)

// Registered type names.
const (
	TypeSolid     = "solid"
	TypeImage     = "image"
	TypeValue     = "value"
	TypeInvert    = "invert"
	TypeBlur      = "blur"
	TypeTransform = "transform"
	TypeMerge     = "merge"
	TypeViewer    = "viewer"
)

// Port names shared by several types.
const (
	PortTexture = "texture"
	PortValue   = "value"
)

// Default solid dimensions.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// MaxDimension bounds the width and height of generated textures.
const MaxDimension = 16384

var black = color.NRGBA{A: 0xff}

// Definitions returns the definitions of all built-in node types.
func Definitions() []node.Definition {
	return []node.Definition{
		{
			Type:        TypeSolid,
			Kind:        node.KindGenerator,
			Description: "Fills a texture with a single color",
			Inputs: []node.PortSpec{
				{Name: "color", Type: node.TypeColor, Default: node.Color(black)},
				{Name: "width", Type: node.TypeScalar, Default: node.Scalar(DefaultWidth)},
				{Name: "height", Type: node.TypeScalar, Default: node.Scalar(DefaultHeight)},
			},
			Outputs: texturePort(),
			New:     stateless(solid),
		},
		{
			Type:        TypeImage,
			Kind:        node.KindGenerator,
			Description: "Decodes an image file into a texture",
			Inputs:      []node.PortSpec{{Name: "path", Type: node.TypeString}},
			Outputs:     texturePort(),
			New:         stateless(decode),
		},
		{
			Type:        TypeValue,
			Kind:        node.KindGenerator,
			Description: "Emits a scalar parameter",
			Inputs:      []node.PortSpec{{Name: PortValue, Type: node.TypeScalar, Default: node.Scalar(0)}},
			Outputs:     []node.PortSpec{{Name: PortValue, Type: node.TypeScalar}},
			New:         stateless(value),
		},
		{
			Type:        TypeInvert,
			Kind:        node.KindFilter,
			Description: "Inverts the colors of a texture",
			Inputs:      texturePort(),
			Outputs:     texturePort(),
			New:         stateless(invert),
		},
		{
			Type:        TypeBlur,
			Kind:        node.KindFilter,
			Description: "Applies a gaussian blur",
			Inputs: []node.PortSpec{
				{Name: PortTexture, Type: node.TypeTexture},
				{Name: "sigma", Type: node.TypeScalar, Default: node.Scalar(1)},
			},
			Outputs: texturePort(),
			New:     stateless(blur),
		},
		{
			Type:        TypeTransform,
			Kind:        node.KindFilter,
			Description: "Scales and rotates a texture",
			Inputs: []node.PortSpec{
				{Name: PortTexture, Type: node.TypeTexture},
				{Name: "scale", Type: node.TypeScalar, Default: node.Scalar(1)},
				{Name: "rotate", Type: node.TypeScalar, Default: node.Scalar(0)},
			},
			Outputs: texturePort(),
			New:     stateless(transform),
		},
		{
			Type:        TypeMerge,
			Kind:        node.KindCompositor,
			Description: "Draws blend over base at an offset",
			Inputs: []node.PortSpec{
				{Name: "base", Type: node.TypeTexture},
				{Name: "blend", Type: node.TypeTexture},
				{Name: "opacity", Type: node.TypeScalar, Default: node.Scalar(1)},
				{Name: "x", Type: node.TypeScalar, Default: node.Scalar(0)},
				{Name: "y", Type: node.TypeScalar, Default: node.Scalar(0)},
			},
			Outputs: texturePort(),
			New:     stateless(merge),
		},
		{
			Type:        TypeViewer,
			Kind:        node.KindOutput,
			Description: "Displays a texture in an attached sink",
			Inputs:      texturePort(),
			Outputs:     texturePort(),
			New:         stateless(view),
		},
	}
}

// Register adds every built-in type to r.
func Register(r *node.Registry) error {
	for _, def := range Definitions() {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *node.Registry
)

// Default returns a process-wide registry holding the built-in types.
// Callers may register additional types on it.
func Default() *node.Registry {
	defaultOnce.Do(func() {
		defaultRegistry = node.NewRegistry()
		if err := Register(defaultRegistry); err != nil {
			panic(err)
		}
	})
	return defaultRegistry
}

func texturePort() []node.PortSpec {
	return []node.PortSpec{{Name: PortTexture, Type: node.TypeTexture}}
}

func stateless(fn node.EvaluatorFunc) func() node.Evaluator {
	return func() node.Evaluator { return fn }
}

func textureOut(img *image.NRGBA) node.Outputs {
	return node.Outputs{PortTexture: node.Texture(img)}
}

func dimension(in node.Inputs, name string) (int, error) {
	f, err := in.Scalar(name)
	if err != nil {
		return 0, err
	}
	d := int(math.Round(f))
	if d < 1 || d > MaxDimension {
		return 0, fgerrors.New(fgerrors.ErrCodeInvalidInput, "%s %v out of range [1, %d]", name, f, MaxDimension)
	}
	return d, nil
}

func solid(_ context.Context, in node.Inputs) (node.Outputs, error) {
	c, err := in.Color("color")
	if err != nil {
		return nil, err
	}
	w, err := dimension(in, "width")
	if err != nil {
		return nil, err
	}
	h, err := dimension(in, "height")
	if err != nil {
		return nil, err
	}
	return textureOut(imaging.New(w, h, c)), nil
}

func decode(ctx context.Context, in node.Inputs) (node.Outputs, error) {
	path, err := in.String("path")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fgerrors.New(fgerrors.ErrCodeInvalidInput, "image path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fgerrors.Wrap(fgerrors.ErrCodeInvalidInput, err, "decode %s", path)
	}
	return textureOut(imaging.Clone(img)), nil
}

func value(_ context.Context, in node.Inputs) (node.Outputs, error) {
	f, err := in.Scalar(PortValue)
	if err != nil {
		return nil, err
	}
	return node.Outputs{PortValue: node.Scalar(f)}, nil
}

func invert(_ context.Context, in node.Inputs) (node.Outputs, error) {
	src, err := in.Texture(PortTexture)
	if err != nil {
		return nil, err
	}
	return textureOut(imaging.Invert(src)), nil
}

func blur(_ context.Context, in node.Inputs) (node.Outputs, error) {
	src, err := in.Texture(PortTexture)
	if err != nil {
		return nil, err
	}
	sigma, err := in.Scalar("sigma")
	if err != nil {
		return nil, err
	}
	if sigma < 0 {
		return nil, fgerrors.New(fgerrors.ErrCodeInvalidInput, "sigma must not be negative, got %v", sigma)
	}
	// imaging.Blur returns a plain copy for sigma <= 0.
	return textureOut(imaging.Blur(src, sigma)), nil
}

func transform(_ context.Context, in node.Inputs) (node.Outputs, error) {
	src, err := in.Texture(PortTexture)
	if err != nil {
		return nil, err
	}
	scale, err := in.Scalar("scale")
	if err != nil {
		return nil, err
	}
	angle, err := in.Scalar("rotate")
	if err != nil {
		return nil, err
	}
	if scale <= 0 {
		return nil, fgerrors.New(fgerrors.ErrCodeInvalidInput, "scale must be positive, got %v", scale)
	}

	out := src
	if scale != 1 {
		b := src.Bounds()
		w := max(1, int(math.Round(float64(b.Dx())*scale)))
		h := max(1, int(math.Round(float64(b.Dy())*scale)))
		if w > MaxDimension || h > MaxDimension {
			return nil, fgerrors.New(fgerrors.ErrCodeInvalidInput, "scaled size %dx%d exceeds %d", w, h, MaxDimension)
		}
		out = imaging.Resize(out, w, h, imaging.Lanczos)
	}
	if angle != 0 {
		out = imaging.Rotate(out, angle, color.Transparent)
	}
	if out == src {
		out = imaging.Clone(src)
	}
	return textureOut(out), nil
}

func merge(_ context.Context, in node.Inputs) (node.Outputs, error) {
	base, err := in.Texture("base")
	if err != nil {
		return nil, err
	}
	top, err := in.Texture("blend")
	if err != nil {
		return nil, err
	}
	opacity, err := in.Scalar("opacity")
	if err != nil {
		return nil, err
	}
	x, err := in.Scalar("x")
	if err != nil {
		return nil, err
	}
	y, err := in.Scalar("y")
	if err != nil {
		return nil, err
	}
	pos := image.Pt(int(math.Round(x)), int(math.Round(y)))
	return textureOut(imaging.Overlay(base, top, pos, clamp01(opacity))), nil
}

func view(_ context.Context, in node.Inputs) (node.Outputs, error) {
	src, err := in.Texture(PortTexture)
	if err != nil {
		return nil, err
	}
	return textureOut(src), nil
}

func clamp01(f float64) float64 {
	return math.Min(1, math.Max(0, f))
}
