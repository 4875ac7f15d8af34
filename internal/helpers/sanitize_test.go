package helpers

import "testing"

func TestPlainText_RemovesTagsAndScripts(t *testing.T) {
	input := `<p>Hello <strong>world</strong><script>alert('x')</script></p>`
	got := PlainText(input)
	want := "Hello world"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPlainText_DecodesEntitiesAndCollapsesSpace(t *testing.T) {
	input := "Learn about\n  Azure &amp; <em>AI</em>  services."
	got := PlainText(input)
	want := "Learn about Azure & AI services."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPlainText_Empty(t *testing.T) {
	if got := PlainText("   "); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
