// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ManifestNotFoundId Id = iota + 1
	ManifestParseErrorId
	ContainerEngineNotFoundId
	NetworkFailureId
	IntegrityFailureId
	DependencyFailureId
	BuildFailureId
	ConfigLoadFailedId
	LockfileDriftId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

// Issue describes a known failure mode with Markdown remediation guidance.
type Issue struct {
	id       Id
	mdMsg    MarkdownMsg
	docLinks []HttpLink
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# No forgefile found!

We searched for a forgefile but couldn't find one in the expected locations.

## Things you can try:
- Create a forgefile in your current directory:
~~~
$ envforge init
~~~

- Or point envforge at an explicit manifest:
~~~
$ envforge build path/to/forgefile.cue
~~~`,
	}

	manifestParseErrorIssue = &Issue{
		id: ManifestParseErrorId,
		mdMsg: `
# Failed to parse forgefile!

Your forgefile contains syntax errors or invalid configuration.

## Common issues:
- Invalid CUE syntax (missing quotes, braces, etc.)
- Unknown step kinds or field names
- A step carrying fields its kind does not define
- A build-install step referencing a directory no earlier fetch produced

## Things you can try:
- Check the error message above for the exact path of the invalid value
- Validate the manifest without building:
~~~
$ envforge validate
~~~

## Example of a valid step list:
~~~cue
steps: [
	{kind: "package-install", packages: ["libpcap-dev"]},
	{kind: "fetch", url: "https://example.com/src-1.0.tar.gz", workdir: "src-1.0"},
	{kind: "build-install", workdir: "src-1.0"},
]
~~~`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

Building an environment image requires a container engine, but none is available.

## Supported container engines:
- **Podman** (recommended for rootless setups)
- **Docker**

## Things you can try:
- Install Podman:
  - Linux: ` + "`sudo apt install podman`" + ` or ` + "`sudo dnf install podman`" + `
  - macOS: ` + "`brew install podman`" + `

- Install Docker:
  - https://docs.docker.com/get-docker/

- Configure your preferred engine in ~/.config/envforge/config.cue:
~~~cue
container_engine: "podman"  // or "docker"
~~~`,
	}

	networkFailureIssue = &Issue{
		id: NetworkFailureId,
		mdMsg: `
# Fetch target unreachable!

A fetch or download step could not retrieve its payload. No partial file was
left behind; the build was aborted before any image work started.

## Common causes:
- Typo in the URL
- The file moved or was removed upstream
- No network access from this machine (proxy, firewall)

## Things you can try:
- Verify the URL opens in a browser or with curl
- Check proxy settings (HTTP_PROXY / HTTPS_PROXY)
- Pin a mirror URL in the forgefile`,
	}

	integrityFailureIssue = &Issue{
		id: IntegrityFailureId,
		mdMsg: `
# Corrupt or unexpected archive!

A fetched payload did not match what the step declared: either the archive is
not in a recognized format or its SHA-256 pin did not match.

## Things you can try:
- Re-run the build; a truncated transfer produces this error
- Verify the archive manually:
~~~
$ curl -LO <url> && sha256sum <file>
~~~
- Update the sha256 pin in the forgefile if upstream re-released the file`,
	}

	dependencyFailureIssue = &Issue{
		id: DependencyFailureId,
		mdMsg: `
# Package unresolvable!

A package-install step asked the package manager for a package it could not
resolve in the configured repositories.

## Things you can try:
- Check the package name for typos
- Confirm the base image's distribution carries the package
- For pip packages, check the spelling on https://pypi.org`,
	}

	buildFailureIssue = &Issue{
		id: BuildFailureId,
		mdMsg: `
# Build step failed!

A build-install procedure exited nonzero, or the image build itself failed.
No partially-tagged image was produced.

## Things you can try:
- Re-run with verbose output to see the full build log:
~~~
$ envforge --verbose build
~~~
- Check that the source tree contains the expected build descriptor
  (setup.py, Makefile, ...)
- Confirm earlier steps installed the toolchain the build needs`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Your envforge configuration file could not be loaded.

## Things you can try:
- Check the CUE syntax of the config file
- Show the resolved config path:
~~~
$ envforge config path
~~~
- Recreate a default configuration:
~~~
$ envforge config init
~~~`,
	}

	lockfileDriftIssue = &Issue{
		id: LockfileDriftId,
		mdMsg: `
# Lockfile drift detected!

The current plan no longer matches forgefile.lock, so a locked build cannot
guarantee the pinned package set.

## Things you can try:
- Inspect what changed (base image digest, step payloads)
- Rebuild without --locked to accept the new state and refresh the lockfile`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

You don't have permission to perform this operation.

## Common causes:
- Writing the build context to a protected directory
- Container engine requires elevated permissions

## Things you can try:
- Check directory permissions for the cache and build context locations
- For Docker, ensure you're in the docker group:
~~~
$ sudo usermod -aG docker $USER
~~~
- Use rootless containers with Podman`,
	}

	issues = map[Id]*Issue{
		manifestNotFoundIssue.Id():        manifestNotFoundIssue,
		manifestParseErrorIssue.Id():      manifestParseErrorIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		networkFailureIssue.Id():          networkFailureIssue,
		integrityFailureIssue.Id():        integrityFailureIssue,
		dependencyFailureIssue.Id():       dependencyFailureIssue,
		buildFailureIssue.Id():            buildFailureIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		lockfileDriftIssue.Id():           lockfileDriftIssue,
		permissionDeniedIssue.Id():        permissionDeniedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
