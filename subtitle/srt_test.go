package subtitle

import (
	"errors"
	"testing"
)

func TestRender(t *testing.T) {
	blocks := []Block{
		{Index: 1, Start: "0:00:00,100", End: "0:00:00,520", Text: "NAMASTE"},
		{Index: 2, Start: "0:00:00,600", End: "0:00:01,100", Text: "DUNIYA"},
	}
	want := "1\n0:00:00,100 --> 0:00:00,520\nNAMASTE\n\n2\n0:00:00,600 --> 0:00:01,100\nDUNIYA\n"
	if got := Render(blocks); got != want {
		t.Errorf("Render =\n%q\nwant\n%q", got, want)
	}
	if got := Render(nil); got != "" {
		t.Errorf("Render(nil) = %q", got)
	}
}

func TestSessionSRT(t *testing.T) {
	s := NewSession()
	if _, err := s.Ingest([]WordEvent{{Text: "ek", Start: 0, End: 0.25}}); err != nil {
		t.Fatal(err)
	}
	want := "1\n0:00:00,000 --> 0:00:00,250\nEK\n"
	if got := s.SRT(); got != want {
		t.Errorf("SRT = %q, want %q", got, want)
	}
}

func TestParseRoundTrip(t *testing.T) {
	blocks := []Block{
		{Index: 1, Start: "0:00:00,100", End: "0:00:00,520", Text: "NAMASTE"},
		{Index: 2, Start: "0:00:00,600", End: "0:00:01,100", Text: "DUNIYA"},
	}
	got, err := Parse(Render(blocks))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != blocks[0] || got[1] != blocks[1] {
		t.Errorf("Parse = %+v", got)
	}
}

func TestParseTolerance(t *testing.T) {
	tests := []struct {
		name  string
		input string
		texts []string
	}{
		{
			name:  "crlf",
			input: "1\r\n0:00:00,000 --> 0:00:01,000\r\nEK\r\n\r\n2\r\n0:00:01,000 --> 0:00:02,000\r\nDO\r\n",
			texts: []string{"EK", "DO"},
		},
		{
			name:  "fenced with preamble",
			input: "Here is the converted text:\n```srt\n1\n0:00:00,000 --> 0:00:01,000\nnamaste\n```\n",
			texts: []string{"namaste"},
		},
		{
			name:  "missing blank line",
			input: "1\n0:00:00,000 --> 0:00:01,000\nek\n2\n0:00:01,000 --> 0:00:02,000\ndo\n",
			texts: []string{"ek", "do"},
		},
		{
			name:  "multi line text and trailing note",
			input: "1\n0:00:00,000 --> 0:00:01,000\nline one\nline two\n\nNote: done\n",
			texts: []string{"line one\nline two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.texts) {
				t.Fatalf("got %d blocks, want %d", len(got), len(tt.texts))
			}
			for i, text := range tt.texts {
				if got[i].Text != text {
					t.Errorf("block %d text = %q, want %q", i, got[i].Text, text)
				}
			}
		})
	}
}

func TestParseRejectsNonSRT(t *testing.T) {
	for _, input := range []string{"", "hello world", "1\nno arrow here\n"} {
		if _, err := Parse(input); !errors.Is(err, ErrMalformedSRT) {
			t.Errorf("Parse(%q) = %v, want ErrMalformedSRT", input, err)
		}
	}
}

func TestChunk(t *testing.T) {
	blocks := make([]Block, 7)
	tests := []struct {
		size int
		want []int
	}{
		{3, []int{3, 3, 1}},
		{7, []int{7}},
		{10, []int{7}},
		{0, []int{7}},
	}
	for _, tt := range tests {
		got := Chunk(blocks, tt.size)
		if len(got) != len(tt.want) {
			t.Fatalf("Chunk(7, %d) gave %d chunks", tt.size, len(got))
		}
		for i, n := range tt.want {
			if len(got[i]) != n {
				t.Errorf("Chunk(7, %d)[%d] has %d blocks, want %d", tt.size, i, len(got[i]), n)
			}
		}
	}
	if Chunk(nil, 3) != nil {
		t.Error("Chunk(nil) should be nil")
	}
}
