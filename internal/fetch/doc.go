// SPDX-License-Identifier: MPL-2.0

// Package fetch downloads step payloads (archives and single files) into the
// build context before any image layer is built. Downloads are written to a
// temporary file and renamed into place only after the transfer and all
// integrity checks succeed, so a failed download never leaves a partial file
// behind.
package fetch
