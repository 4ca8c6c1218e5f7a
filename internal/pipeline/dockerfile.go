// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"envforge-cli/pkg/forgefile"
)

// payloadDir is the directory inside the build context where staged fetch
// and download payloads live.
const payloadDir = "payloads"

// generateDockerfile creates the Dockerfile content for an environment image.
// Each step becomes exactly one instruction block, so the engine caches and
// reports per step.
func generateDockerfile(f *forgefile.Forgefile) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "FROM %s\n\n", f.BaseImage)
	sb.WriteString("# Generated by envforge. Do not edit; edit the forgefile instead.\n\n")

	if len(f.Env) > 0 {
		keys := make([]string, 0, len(f.Env))
		for k := range f.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "ENV %s=%s\n", k, quote(f.Env[k]))
		}
		sb.WriteString("\n")
	}

	workdir := f.EffectiveWorkdir()
	fmt.Fprintf(&sb, "WORKDIR %s\n\n", workdir)

	for i := range f.Steps {
		step := &f.Steps[i]
		fmt.Fprintf(&sb, "# step %d: %s (%s)\n", i+1, step.DisplayName(), step.Kind)
		sb.WriteString(renderStep(i, step))
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderStep renders the instruction block for a single step.
func renderStep(index int, step *forgefile.Step) string {
	switch step.Kind {
	case forgefile.StepPackageInstall:
		return renderPackageInstall(index, step)
	case forgefile.StepFetch:
		return renderFetch(index, step)
	case forgefile.StepBuildInstall:
		return renderBuildInstall(index, step)
	case forgefile.StepDownload:
		return renderDownload(index, step)
	}
	return ""
}

// renderPackageInstall emits one RUN invoking the step's package manager.
// Index caches are cleaned in the same layer to keep the image small.
func renderPackageInstall(index int, step *forgefile.Step) string {
	pkgs := make([]string, 0, len(step.Packages))
	for _, p := range step.Packages {
		pkgs = append(pkgs, quote(p))
	}
	list := strings.Join(pkgs, " ")

	var install string
	switch step.EffectiveManager() {
	case forgefile.ManagerApt:
		install = fmt.Sprintf(
			"apt-get update && \\\n    apt-get install -y --no-install-recommends %s && \\\n    rm -rf /var/lib/apt/lists/*", list)
	case forgefile.ManagerApk:
		install = fmt.Sprintf("apk add --no-cache %s", list)
	case forgefile.ManagerDnf:
		install = fmt.Sprintf("dnf install -y %s && \\\n    dnf clean all", list)
	case forgefile.ManagerPip:
		install = fmt.Sprintf("pip install --no-cache-dir %s", list)
	}

	return fmt.Sprintf("RUN echo %s && \\\n    %s\n", quote(stepMarker(index, step)), install)
}

// renderFetch copies the staged archive into the image and extracts it in the
// working directory, removing the archive in the same layer. A declared
// workdir that differs from the archive's implied top-level directory is
// realized by renaming after extraction.
func renderFetch(index int, step *forgefile.Step) string {
	file := payloadFileName(index, step)
	archive := urlFileName(step.URL)

	cmds := []string{extractCommand(archive), "rm -f " + quote(archive)}
	if mv := renameCommand(archive, step.Workdir); mv != "" {
		cmds = append(cmds, mv)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "COPY %s %s\n", path.Join(payloadDir, file), quote(archive))
	fmt.Fprintf(&sb, "RUN echo %s && \\\n    %s\n",
		quote(stepMarker(index, step)), strings.Join(cmds, " && \\\n    "))
	return sb.String()
}

// renameCommand returns the shell command that moves the archive's implied
// top-level directory to the step's declared workdir, or "" when no rename is
// needed. Release archives unpack into a directory named after the file minus
// its extension; the same convention Step.ExtractDir assumes for unset
// workdirs.
func renameCommand(archive, workdir string) string {
	if workdir == "" {
		return ""
	}
	implied := impliedTopLevelDir(archive)
	if path.Clean(workdir) == path.Clean(implied) {
		return ""
	}

	var sb strings.Builder
	if parent := path.Dir(path.Clean(workdir)); parent != "." && parent != "/" {
		sb.WriteString("mkdir -p " + quote(parent) + " && ")
	}
	sb.WriteString("mv " + quote(implied) + " " + quote(workdir))
	return sb.String()
}

// impliedTopLevelDir returns the directory an archive is expected to unpack
// into, following the release naming convention.
func impliedTopLevelDir(archive string) string {
	lower := strings.ToLower(archive)
	for _, ext := range []string{".tar.gz", ".tgz", ".tar.bz2", ".tar.xz", ".tar", ".zip"} {
		if strings.HasSuffix(lower, ext) {
			return archive[:len(archive)-len(ext)]
		}
	}
	return archive
}

// renderBuildInstall runs the build command inside the step's working
// directory.
func renderBuildInstall(index int, step *forgefile.Step) string {
	words := make([]string, 0, len(step.Command))
	for _, w := range step.BuildCommand() {
		words = append(words, quote(w))
	}
	return fmt.Sprintf("RUN echo %s && \\\n    cd %s && \\\n    %s\n",
		quote(stepMarker(index, step)), quote(step.Workdir), strings.Join(words, " "))
}

// renderDownload copies the staged file to its destination and marks it
// executable when requested.
func renderDownload(index int, step *forgefile.Step) string {
	file := payloadFileName(index, step)

	var sb strings.Builder
	fmt.Fprintf(&sb, "COPY %s %s\n", path.Join(payloadDir, file), quote(step.Dest))
	// The marker is emitted even without chmod so failure classification can
	// attribute later layers to the right step.
	if step.Executable {
		fmt.Fprintf(&sb, "RUN echo %s && \\\n    chmod +x %s\n",
			quote(stepMarker(index, step)), quote(step.Dest))
	} else {
		fmt.Fprintf(&sb, "RUN echo %s\n", quote(stepMarker(index, step)))
	}
	return sb.String()
}

// extractCommand returns the shell command that unpacks archive into the
// current directory.
func extractCommand(archive string) string {
	q := quote(archive)
	lower := strings.ToLower(archive)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar -xzf " + q
	case strings.HasSuffix(lower, ".tar.bz2"):
		return "tar -xjf " + q
	case strings.HasSuffix(lower, ".tar.xz"):
		return "tar -xJf " + q
	case strings.HasSuffix(lower, ".tar"):
		return "tar -xf " + q
	case strings.HasSuffix(lower, ".zip"):
		return "unzip -q " + q
	}
	return "tar -xf " + q
}

// stepMarker returns the echo line that identifies a step in the engine build
// log. Failure classification scans for these markers to attribute a failed
// layer to its step.
func stepMarker(index int, step *forgefile.Step) string {
	return fmt.Sprintf(">>> step %d: %s (%s)", index+1, step.DisplayName(), step.Kind)
}

// payloadFileName returns the build-context file name for a staged payload.
// The index prefix keeps two steps fetching the same file name apart.
func payloadFileName(index int, step *forgefile.Step) string {
	return fmt.Sprintf("%02d-%s", index+1, urlFileName(step.URL))
}

// urlFileName extracts the file name from a step URL.
func urlFileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

// quote shell-quotes s for safe interpolation into a RUN line.
func quote(s string) string {
	quoted, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		// Quote fails only on non-printable input.
		return s
	}
	return quoted
}
