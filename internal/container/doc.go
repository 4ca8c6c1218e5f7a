// SPDX-License-Identifier: MPL-2.0

// Package container provides an abstraction layer over CLI container engines
// (Docker/Podman) for the image operations the build pipeline needs: building
// from a synthesized Dockerfile, pulling and inspecting base images, and
// removing stale cached images.
package container
