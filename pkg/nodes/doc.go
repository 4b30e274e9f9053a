// Package nodes provides the built-in framegraph node types.
//
// Textures are *image.NRGBA values produced and transformed with
// github.com/disintegration/imaging. Every filter returns a fresh image and
// never mutates its inputs, so one upstream texture may safely feed several
// downstream nodes within a pass.
//
// # Types
//
//	solid      generator   color, width, height          -> texture
//	image      generator   path                          -> texture
//	value      generator   value                         -> value
//	invert     filter      texture                       -> texture
//	blur       filter      texture, sigma                -> texture
//	transform  filter      texture, scale, rotate        -> texture
//	merge      compositor  base, blend, opacity, x, y    -> texture
//	viewer     output      texture                       -> texture
//
// Use [Register] to add them to a registry, or [Default] for a shared
// registry that already holds them.
package nodes
