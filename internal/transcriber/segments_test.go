package transcriber

import (
	"math"
	"testing"
)

func TestBuildSegments_NativePreferred(t *testing.T) {
	resp := &Response{
		Text:     "hello world again",
		Duration: 6,
		Segments: []RawSegment{
			{Start: 0, End: 3, Text: " hello world ", Words: []Word{{Word: "hello", Start: 0, End: 1}, {Word: "world", Start: 1, End: 3}}},
			{Start: 3, End: 6, Text: "again", Confidence: 0.7},
		},
		Words: []Word{{Word: "ignored", Start: 0, End: 1}},
	}

	segs := buildSegments(resp)
	if len(segs) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(segs))
	}
	if segs[0].Text != "hello world" {
		t.Errorf("Expected trimmed text 'hello world', got %q", segs[0].Text)
	}
	if len(segs[0].Words) != 2 {
		t.Errorf("Expected word timestamps preserved, got %d words", len(segs[0].Words))
	}
	if segs[0].Confidence != defaultConfidence {
		t.Errorf("Expected default confidence %v for missing value, got %v", defaultConfidence, segs[0].Confidence)
	}
	if segs[1].Confidence != 0.7 {
		t.Errorf("Expected provider confidence 0.7, got %v", segs[1].Confidence)
	}
}

func TestBuildSegments_WordWindows(t *testing.T) {
	words := make([]Word, 23)
	for i := range words {
		words[i] = Word{Word: "w", Start: float64(i), End: float64(i) + 0.5}
	}
	resp := &Response{Text: "many words", Duration: 23, Words: words}

	segs := buildSegments(resp)
	if len(segs) != 3 {
		t.Fatalf("Expected 3 windows for 23 words, got %d", len(segs))
	}
	if segs[0].Start != 0 || segs[0].End != 9.5 {
		t.Errorf("Window 0: expected [0, 9.5], got [%v, %v]", segs[0].Start, segs[0].End)
	}
	if segs[2].Start != 20 || segs[2].End != 22.5 {
		t.Errorf("Window 2: expected [20, 22.5], got [%v, %v]", segs[2].Start, segs[2].End)
	}
	if len(segs[1].Words) != 10 {
		t.Errorf("Expected 10 words per full window, got %d", len(segs[1].Words))
	}
}

func TestBuildSegments_MissingWordEndFallsBackToStart(t *testing.T) {
	resp := &Response{
		Words: []Word{{Word: "a", Start: 1.5}, {Word: "b", Start: 2.5, End: 3}},
	}
	segs := buildSegments(resp)
	if len(segs) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segs))
	}
	if segs[0].Words[0].End != 1.5 {
		t.Errorf("Expected missing end to fall back to start 1.5, got %v", segs[0].Words[0].End)
	}
}

func TestBuildSegments_SentenceHeuristic(t *testing.T) {
	// Bare text, no segments or words: exactly 3 sentences in order,
	// covering [0, duration] monotonically.
	resp := &Response{
		Text:     "Hello. How are you? I am fine!",
		Duration: 10,
	}

	segs := buildSegments(resp)
	if len(segs) != 3 {
		t.Fatalf("Expected exactly 3 segments, got %d", len(segs))
	}

	want := []string{"Hello.", "How are you?", "I am fine!"}
	for i, w := range want {
		if segs[i].Text != w {
			t.Errorf("segment %d: expected %q, got %q", i, w, segs[i].Text)
		}
		if segs[i].Text == "" {
			t.Errorf("segment %d is empty", i)
		}
	}

	if segs[0].Start != 0 {
		t.Errorf("First segment must start at 0, got %v", segs[0].Start)
	}
	if math.Abs(segs[2].End-10) > 1e-9 {
		t.Errorf("Last segment must end at total duration 10, got %v", segs[2].End)
	}
	for i := 0; i < len(segs); i++ {
		if segs[i].End < segs[i].Start {
			t.Errorf("segment %d: end %v before start %v", i, segs[i].End, segs[i].Start)
		}
		if i > 0 && segs[i].Start != segs[i-1].End {
			t.Errorf("segment %d: start %v does not continue from %v", i, segs[i].Start, segs[i-1].End)
		}
	}

	// Duration apportioned by word count: 1, 3 and 3 words of 7 total
	if math.Abs(segs[0].End-10.0/7.0) > 1e-9 {
		t.Errorf("Expected first boundary at %v, got %v", 10.0/7.0, segs[0].End)
	}
}

func TestBuildSegments_CJKTerminators(t *testing.T) {
	resp := &Response{Text: "你好。你吃了吗？", Duration: 4}

	segs := buildSegments(resp)
	if len(segs) != 2 {
		t.Fatalf("Expected 2 segments for CJK text, got %d", len(segs))
	}
	if segs[0].Text != "你好。" {
		t.Errorf("Expected first CJK sentence kept intact, got %q", segs[0].Text)
	}
	if math.Abs(segs[1].End-4) > 1e-9 {
		t.Errorf("Expected coverage out to 4s, got %v", segs[1].End)
	}
}

func TestBuildSegments_NoTerminator(t *testing.T) {
	resp := &Response{Text: "trailing text without punctuation", Duration: 5}

	segs := buildSegments(resp)
	if len(segs) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segs))
	}
	if segs[0].Start != 0 || segs[0].End != 5 {
		t.Errorf("Expected [0, 5], got [%v, %v]", segs[0].Start, segs[0].End)
	}
}

func TestBuildSegments_EmptyText(t *testing.T) {
	if segs := buildSegments(&Response{Text: "   ", Duration: 3}); len(segs) != 0 {
		t.Errorf("Expected no segments for blank text, got %d", len(segs))
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"three latin", "A. B? C!", 3},
		{"ellipsis", "Wait… what.", 2},
		{"mixed cjk", "你好。Fine.", 2},
		{"no terminator", "just words", 1},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.in)
			if len(got) != tt.want {
				t.Errorf("splitSentences(%q) = %v, want %d parts", tt.in, got, tt.want)
			}
		})
	}
}
