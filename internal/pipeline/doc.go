// SPDX-License-Identifier: MPL-2.0

// Package pipeline turns a parsed forgefile into a container image.
//
// The pipeline stages fetch and download payloads host-side, generates a
// Dockerfile with one instruction block per step, and delegates the build to
// a container engine. Built images are cached by a content hash over the base
// image identity, the manifest, and every staged payload, so an unchanged
// environment reuses its image without rebuilding.
//
// The main entry point is the Builder interface, implemented by ImageBuilder:
//
//	builder := pipeline.NewImageBuilder(engine, cfg)
//	result, err := builder.Build(ctx, forge)
//	// result.ImageTag contains the built image to use
//
// Steps execute strictly in manifest order and the pipeline stops at the
// first failure. A failed build never tags an image.
package pipeline
