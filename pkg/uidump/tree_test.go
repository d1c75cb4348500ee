package uidump

import (
	"bytes"
	"strings"
	"testing"
)

const sourceXML = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy index="0" rotation="0">
  <android.widget.FrameLayout class="android.widget.FrameLayout" text="" resource-id="" bounds="[0,0][1080,2340]">
    <android.widget.Button class="android.widget.Button" text="Claim" resource-id="com.tunes.player:id/claim" clickable="true" focused="true" bounds="[100,200][300,400]" />
    <android.widget.ScrollView class="android.widget.ScrollView" scrollable="true" enabled="false" bounds="[0,400][1080,2000]" />
  </android.widget.FrameLayout>
</hierarchy>`

func TestParseTree(t *testing.T) {
	roots, err := ParseTree(sourceXML)
	if err != nil {
		t.Fatalf("ParseTree failed: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(roots))
	}
	if Count(roots) != 3 {
		t.Errorf("Count() = %d, want 3", Count(roots))
	}

	btn := roots[0].Children[0]
	if btn.Text != "Claim" || !btn.Clickable || !btn.Focused || !btn.Enabled {
		t.Errorf("unexpected button: %+v", btn)
	}
	scroll := roots[0].Children[1]
	if !scroll.Scrollable || scroll.Enabled {
		t.Errorf("unexpected scroll view: %+v", scroll)
	}
}

func TestParseTree_NoHierarchy(t *testing.T) {
	if _, err := ParseTree(`<node text="x" />`); err == nil {
		t.Error("expected error without hierarchy element")
	}
}

func TestParseTree_Invalid(t *testing.T) {
	if _, err := ParseTree(`<hierarchy><node`); err == nil {
		t.Error("expected error for truncated XML")
	}
}

func TestParseTree_ShellDumpNesting(t *testing.T) {
	roots, err := ParseTree(`<hierarchy rotation="0">` +
		`<node class="android.widget.FrameLayout" bounds="[0,0][100,100]">` +
		`<node class="android.widget.LinearLayout" bounds="[0,0][100,50]">` +
		`<node class="android.widget.TextView" text="Skip" bounds="[0,0][50,50]" />` +
		`</node>` +
		`<node class="android.widget.Button" text="Claim" bounds="[0,50][100,100]" />` +
		`</node>` +
		`<node class="android.widget.Toast" text="Saved" bounds="[0,90][100,100]" />` +
		`</hierarchy>`)
	if err != nil {
		t.Fatalf("ParseTree failed: %v", err)
	}
	if len(roots) != 2 || Count(roots) != 5 {
		t.Fatalf("expected 2 roots and 5 elements, got %d and %d", len(roots), Count(roots))
	}
	frame := roots[0]
	if frame.ClassName != "android.widget.FrameLayout" || len(frame.Children) != 2 {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	if got := frame.Children[0].Children[0].Text; got != "Skip" {
		t.Errorf("nested text = %q, want Skip", got)
	}
	if got := frame.Children[1].Text; got != "Claim" {
		t.Errorf("sibling text = %q, want Claim", got)
	}
	if got := roots[1].Text; got != "Saved" {
		t.Errorf("second root text = %q, want Saved", got)
	}
}

func TestParseTree_TruncatedKeepsPartialTree(t *testing.T) {
	roots, err := ParseTree(`<hierarchy><node class="a" bounds="[0,0][1,1]"><node class="b" bounds="[0,0][1,1]" />`)
	if err != nil {
		t.Fatalf("ParseTree failed: %v", err)
	}
	if Count(roots) != 2 || roots[0].Children[0].ClassName != "b" {
		t.Errorf("unexpected partial tree: %+v", roots)
	}
}

func TestWrite_Indented(t *testing.T) {
	roots, err := ParseTree(sourceXML)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, roots); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"<hierarchy>\n",
		`  <node class="android.widget.FrameLayout"`,
		`    <node class="android.widget.Button" text="Claim" content-desc="" resource-id="com.tunes.player:id/claim" clickable="true" enabled="true" focused="true" scrollable="false" bounds="[100,200][300,400]" />`,
		`scrollable="true"`,
		"  </node>\n",
		"</hierarchy>\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWrite_EscapesAllFiveCharacters(t *testing.T) {
	original := `a<b>c&d"e'f`
	roots := []*Element{{ClassName: "android.widget.TextView", Text: original, Enabled: true}}

	var buf bytes.Buffer
	if err := Write(&buf, roots); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	const escaped = `a&lt;b&gt;c&amp;d&quot;e&apos;f`
	if !strings.Contains(out, `text="`+escaped+`"`) {
		t.Fatalf("expected escaped text attribute, got:\n%s", out)
	}
	if got := Unescape(escaped); got != original {
		t.Errorf("Unescape() = %q, want %q", got, original)
	}

	// the written snapshot parses back to the original text
	parsed, err := ParseTree(out)
	if err != nil {
		t.Fatalf("ParseTree of written output failed: %v", err)
	}
	if parsed[0].Text != original {
		t.Errorf("round-trip text = %q, want %q", parsed[0].Text, original)
	}
}

func TestEscapeUnescape(t *testing.T) {
	tests := []string{
		"",
		"plain",
		"<>&\"'",
		"&amp; already escaped",
		"&lt;tag&gt;",
	}
	for _, s := range tests {
		if got := Unescape(Escape(s)); got != s {
			t.Errorf("Unescape(Escape(%q)) = %q", s, got)
		}
	}
}
