// ABOUTME: Tests for the result panel presenter: escaping, visibility, and minimized-state reset.
// ABOUTME: Hide must be idempotent and always clear the minimized sub-state.

package stream

import "testing"

func TestPresentEscapesContent(t *testing.T) {
	p := NewPanel(nil)
	p.Present(`<script>alert("x")</script>`, KindResult)

	s := p.State()
	if s.Content == `<script>alert("x")</script>` {
		t.Error("content was not escaped")
	}
	if s.Content != "&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;" {
		t.Errorf("unexpected escaped content %q", s.Content)
	}
}

func TestPresentSetsHeader(t *testing.T) {
	p := NewPanel(nil)
	p.Present("done", KindResult)

	s := p.State()
	if s.Label != "Result" || s.Icon == "" {
		t.Errorf("unexpected header %q/%q", s.Icon, s.Label)
	}
}

func TestPresentUnknownKindUsesFallbackHeader(t *testing.T) {
	p := NewPanel(nil)
	p.Present("x", Kind("weird"))

	s := p.State()
	if s.Label != "Step" {
		t.Errorf("expected generic label, got %q", s.Label)
	}
}

func TestPresentDoesNotChangeVisibility(t *testing.T) {
	p := NewPanel(nil)
	p.Present("x", KindAct)
	if p.State().Visible {
		t.Error("Present must not show the panel")
	}
}

func TestHideIdempotentAndResetsMinimized(t *testing.T) {
	p := NewPanel(nil)
	p.Show()
	p.Minimize()
	if !p.State().Minimized {
		t.Fatal("expected minimized after Minimize")
	}

	p.Hide()
	p.Hide()

	s := p.State()
	if s.Visible {
		t.Error("expected hidden")
	}
	if s.Minimized {
		t.Error("Hide must reset minimized")
	}

	p.Show()
	if p.State().Minimized {
		t.Error("Show after Hide must start from a non-minimized baseline")
	}
}

func TestMinimizeIgnoredWhileHidden(t *testing.T) {
	p := NewPanel(nil)
	p.Minimize()
	if p.State().Minimized {
		t.Error("hidden panel must not minimize")
	}
}

func TestRestore(t *testing.T) {
	p := NewPanel(nil)
	p.Show()
	p.Minimize()
	p.Restore()
	if p.State().Minimized {
		t.Error("expected restored panel")
	}
}

func TestSinkReceivesSnapshots(t *testing.T) {
	var got []PanelState
	p := NewPanel(func(s PanelState) { got = append(got, s) })

	p.Present("x", KindAct)
	p.Show()
	p.Hide()

	if len(got) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(got))
	}
	if !got[1].Visible || got[2].Visible {
		t.Error("snapshots out of order")
	}
}
