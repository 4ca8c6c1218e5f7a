// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"strings"
	"testing"

	"envforge-cli/pkg/forgefile"
)

func TestImageBuilderPlan(t *testing.T) {
	engine := newMockEngine()
	builder := newTestBuilder(t, engine)
	f := notebookForge()

	plan, err := builder.Plan(context.Background(), f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.BaseImage != f.BaseImage {
		t.Errorf("BaseImage = %q, want %q", plan.BaseImage, f.BaseImage)
	}
	if plan.Workdir != "/opt/envforge" {
		t.Errorf("Workdir = %q, want /opt/envforge", plan.Workdir)
	}
	if !strings.HasPrefix(plan.Tag, "envforge:") {
		t.Errorf("Tag = %q, want envforge: prefix", plan.Tag)
	}
	if plan.Cached {
		t.Error("expected Cached to be false")
	}
	if len(plan.Steps) != len(f.Steps) {
		t.Fatalf("expected %d planned steps, got %d", len(f.Steps), len(plan.Steps))
	}

	// Steps keep manifest order.
	wantKinds := []forgefile.StepKind{
		forgefile.StepPackageInstall,
		forgefile.StepFetch,
		forgefile.StepBuildInstall,
		forgefile.StepPackageInstall,
		forgefile.StepDownload,
	}
	for i, ps := range plan.Steps {
		if ps.Index != i+1 {
			t.Errorf("step %d: Index = %d, want %d", i, ps.Index, i+1)
		}
		if ps.Kind != wantKinds[i] {
			t.Errorf("step %d: Kind = %s, want %s", i, ps.Kind, wantKinds[i])
		}
		if len(ps.Instructions) == 0 {
			t.Errorf("step %d: no instructions", i)
		}
	}

	// Only network-backed steps stage payloads.
	staged := 0
	for _, ps := range plan.Steps {
		if ps.Staged {
			staged++
		}
	}
	if staged != 2 {
		t.Errorf("expected 2 staged steps, got %d", staged)
	}

	if !strings.Contains(plan.Dockerfile, "FROM "+f.BaseImage) {
		t.Error("plan Dockerfile missing FROM line")
	}

	// Planning must not build anything.
	if len(engine.buildCalls) != 0 {
		t.Errorf("expected no build calls during planning, got %d", len(engine.buildCalls))
	}
}

func TestImageBuilderPlanReportsCached(t *testing.T) {
	engine := newMockEngine()
	engine.imageExistsResult = true
	builder := newTestBuilder(t, engine)

	plan, err := builder.Plan(context.Background(), notebookForge())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !plan.Cached {
		t.Error("expected Cached to be true when the image exists")
	}
}
