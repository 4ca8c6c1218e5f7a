// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	"fmt"
	"sort"
	"strings"
)

// GenerateCUE renders a Forgefile as a CUE document. Used by `envforge init`
// to write starter manifests and by `envforge config`-style round-tripping.
func GenerateCUE(f *Forgefile) string {
	var sb strings.Builder

	sb.WriteString("// envforge build recipe.\n")
	sb.WriteString("// Steps run in order; each step may rely only on the state left by earlier steps.\n\n")

	fmt.Fprintf(&sb, "base: %q\n", f.BaseImage)
	if f.Tag != "" {
		fmt.Fprintf(&sb, "tag: %q\n", f.Tag)
	}
	if f.Workdir != "" {
		fmt.Fprintf(&sb, "workdir: %q\n", f.Workdir)
	}

	if len(f.Env) > 0 {
		sb.WriteString("\nenv: {\n")
		keys := make([]string, 0, len(f.Env))
		for k := range f.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "\t%q: %q\n", k, f.Env[k])
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\nsteps: [\n")
	for _, s := range f.Steps {
		writeStepCUE(&sb, s)
	}
	sb.WriteString("]\n")

	return sb.String()
}

func writeStepCUE(sb *strings.Builder, s Step) {
	sb.WriteString("\t{\n")
	fmt.Fprintf(sb, "\t\tkind: %q\n", s.Kind)
	if s.Name != "" {
		fmt.Fprintf(sb, "\t\tname: %q\n", s.Name)
	}

	switch s.Kind {
	case StepPackageInstall:
		if s.Manager != "" {
			fmt.Fprintf(sb, "\t\tmanager: %q\n", s.Manager)
		}
		fmt.Fprintf(sb, "\t\tpackages: [%s]\n", quoteList(s.Packages))
	case StepFetch:
		fmt.Fprintf(sb, "\t\turl: %q\n", s.URL)
		if s.SHA256 != "" {
			fmt.Fprintf(sb, "\t\tsha256: %q\n", s.SHA256)
		}
		if s.Workdir != "" {
			fmt.Fprintf(sb, "\t\tworkdir: %q\n", s.Workdir)
		}
	case StepBuildInstall:
		fmt.Fprintf(sb, "\t\tworkdir: %q\n", s.Workdir)
		if len(s.Command) > 0 {
			fmt.Fprintf(sb, "\t\tcommand: [%s]\n", quoteList(s.Command))
		}
	case StepDownload:
		fmt.Fprintf(sb, "\t\turl: %q\n", s.URL)
		fmt.Fprintf(sb, "\t\tdest: %q\n", s.Dest)
		if s.SHA256 != "" {
			fmt.Fprintf(sb, "\t\tsha256: %q\n", s.SHA256)
		}
		if s.Executable {
			sb.WriteString("\t\texecutable: true\n")
		}
	}

	sb.WriteString("\t},\n")
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = fmt.Sprintf("%q", it)
	}
	return strings.Join(quoted, ", ")
}

// StarterTemplate returns the Forgefile written by `envforge init` for the
// given template name ("minimal" or "default").
func StarterTemplate(template string) *Forgefile {
	switch template {
	case "minimal":
		return &Forgefile{
			BaseImage: "debian:stable-slim",
			Steps: []Step{
				{Kind: StepPackageInstall, Packages: []string{"ca-certificates"}},
			},
		}
	default:
		return &Forgefile{
			BaseImage: "jupyter/datascience-notebook:latest",
			Tag:       "notebook-env:latest",
			Steps: []Step{
				{
					Kind:     StepPackageInstall,
					Name:     "capture headers",
					Packages: []string{"libpcap-dev"},
				},
				{
					Kind:    StepFetch,
					Name:    "pcapy source",
					URL:     "https://github.com/helpsystems/pcapy/archive/refs/tags/0.11.5.tar.gz",
					Workdir: "pcapy-0.11.5",
				},
				{
					Kind:    StepBuildInstall,
					Name:    "pcapy binding",
					Workdir: "pcapy-0.11.5",
				},
				{
					Kind:     StepPackageInstall,
					Name:     "protocol toolkit",
					Manager:  ManagerPip,
					Packages: []string{"scapy"},
				},
				{
					Kind:       StepDownload,
					Name:       "launcher",
					URL:        "https://example.com/platform/start-notebook.sh",
					Dest:       "/usr/local/bin/start-notebook.sh",
					Executable: true,
				},
			},
		}
	}
}
