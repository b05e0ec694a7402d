// Package zimage wraps the external Z-Image-Turbo diffusion engine.
//
// The package owns parameter validation, seed handling, PNG utilities,
// and a pooled Generator around the engine bindings. The engine itself
// is an external library: builds with the "zimage" tag link the real
// CGo bindings, while the default build uses a deterministic stub
// renderer suitable for development and tests.
package zimage
