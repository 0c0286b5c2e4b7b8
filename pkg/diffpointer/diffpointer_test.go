package diffpointer

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/matzehuels/commitcanvas/pkg/commit"
	cerrors "github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/graph"
)

type recordingDiffer struct {
	calls [][3]string
	err   error
}

func (d *recordingDiffer) Show(_ context.Context, repo, source, target string) (string, error) {
	d.calls = append(d.calls, [3]string{repo, source, target})
	if d.err != nil {
		return "", d.err
	}
	return "diff --git a/x b/x\n", nil
}

func TestViewportToGraph(t *testing.T) {
	tests := []struct {
		name   string
		vp     Viewport
		sx, sy float64
		want   graph.Position
	}{
		{"identity", Viewport{Zoom: 1}, 10, 20, graph.Position{X: 10, Y: 20}},
		{"pan and zoom", Viewport{X: 100, Y: 50, Zoom: 2}, 300, 250, graph.Position{X: 100, Y: 100}},
		{"zero zoom", Viewport{X: 5, Y: 5}, 10, 10, graph.Position{X: 5, Y: 5}},
		{"negative zoom", Viewport{Zoom: -3}, 4, 8, graph.Position{X: 4, Y: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.vp.ToGraph(tt.sx, tt.sy); got != tt.want {
				t.Errorf("ToGraph(%v, %v) = %v, want %v", tt.sx, tt.sy, got, tt.want)
			}
		})
	}
}

func TestLifecycle(t *testing.T) {
	d := &recordingDiffer{}
	p := New("/repo", d)

	if _, _, ok := p.Virtual(); ok {
		t.Fatal("idle pointer has a virtual node")
	}
	if p.UpdateCursor(1, 1) {
		t.Error("UpdateCursor while idle should be ignored")
	}

	if err := p.Start("aaa", graph.Position{X: 1, Y: 2}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.State() != Armed {
		t.Fatalf("State() = %v, want armed", p.State())
	}

	p.UpdateCursorScreen(300, 250, Viewport{X: 100, Y: 50, Zoom: 2})
	node, edge, ok := p.Virtual()
	if !ok {
		t.Fatal("armed pointer has no virtual node")
	}
	if node.ID != VirtualNodeID || !node.IsVirtual() || node.Position != (graph.Position{X: 100, Y: 100}) {
		t.Errorf("virtual node = %+v", node)
	}
	if edge.Source != "aaa" || edge.Target != VirtualNodeID || !edge.Virtual {
		t.Errorf("virtual edge = %+v", edge)
	}

	sel, err := p.SelectTarget(context.Background(), "bbb")
	if err != nil {
		t.Fatalf("SelectTarget: %v", err)
	}
	if sel.Source != "aaa" || sel.Target != "bbb" || sel.Patch == "" {
		t.Errorf("selection = %+v", sel)
	}
	if len(d.calls) != 1 || d.calls[0] != [3]string{"/repo", "aaa", "bbb"} {
		t.Errorf("differ calls = %v", d.calls)
	}
	if p.State() != Idle {
		t.Error("pointer should be idle after selection")
	}
	if _, _, ok := p.Virtual(); ok {
		t.Error("virtual node survived selection")
	}
}

func TestSelectRejections(t *testing.T) {
	d := &recordingDiffer{}
	p := New("/repo", d)
	if err := p.Start("aaa", graph.Position{}); err != nil {
		t.Fatal(err)
	}

	_, err := p.SelectTarget(context.Background(), commit.WorkingCopyID)
	if !cerrors.Is(err, cerrors.ErrCodeNotDiffable) {
		t.Errorf("working copy target err = %v, want NOT_DIFFABLE", err)
	}
	_, err = p.SelectTarget(context.Background(), "aaa")
	if !cerrors.Is(err, cerrors.ErrCodeInvalidInput) {
		t.Errorf("self target err = %v, want INVALID_INPUT", err)
	}
	if p.State() != Armed || p.Source() != "aaa" {
		t.Error("rejected selection must keep the pointer armed")
	}
	if len(d.calls) != 0 {
		t.Errorf("differ called %d times", len(d.calls))
	}
}

func TestStartWorkingCopy(t *testing.T) {
	p := New("/repo", nil)
	err := p.Start(commit.WorkingCopyID, graph.Position{})
	if !cerrors.Is(err, cerrors.ErrCodeNotDiffable) {
		t.Errorf("err = %v, want NOT_DIFFABLE", err)
	}
	if p.State() != Idle {
		t.Error("pointer armed on working copy")
	}
}

func TestCancelIdempotent(t *testing.T) {
	p := New("/repo", nil)
	p.Cancel()
	if err := p.Start("aaa", graph.Position{}); err != nil {
		t.Fatal(err)
	}
	p.Cancel()
	p.Cancel()
	if p.State() != Idle || p.Source() != "" {
		t.Errorf("after Cancel: state=%v source=%q", p.State(), p.Source())
	}
	if _, err := p.Select("bbb"); !cerrors.Is(err, cerrors.ErrCodeInvalidInput) {
		t.Errorf("Select while idle err = %v", err)
	}
}

func TestDifferFailure(t *testing.T) {
	boom := stderrors.New("boom")
	p := New("/repo", &recordingDiffer{err: boom})
	if err := p.Start("aaa", graph.Position{}); err != nil {
		t.Fatal(err)
	}
	_, err := p.SelectTarget(context.Background(), "bbb")
	if !stderrors.Is(err, boom) || cerrors.GetCode(err) != cerrors.ErrCodeFetch {
		t.Errorf("err = %v", err)
	}
	if p.State() != Idle {
		t.Error("pointer should be idle once the pair was handed off")
	}
}
