// SPDX-License-Identifier: MPL-2.0

// Package forgefile defines the build recipe manifest for envforge.
//
// A forgefile is a CUE document describing how to derive an environment image
// from a base image: the base reference, an optional output tag, and an
// ordered list of provisioning steps. Steps come in four kinds:
//
//   - package-install: install system or language packages via a package manager
//   - fetch: download an archive, extract it, and remove the archive
//   - build-install: run a build/install procedure inside a fetched source tree
//   - download: place a single file at a fixed path, optionally executable
//
// Steps execute strictly in declared order; a later step may rely only on
// filesystem state produced by earlier steps. The package validates both the
// shape of each step's arguments and that ordering invariant before any
// build work starts.
package forgefile
