// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// The package defines error types that carry operation context and remediation
// steps, plus a catalog of known failure modes with Markdown-formatted guidance
// rendered in the terminal when a build aborts.
package issue
