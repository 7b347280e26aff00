package correlator

import "testing"

func TestParseSegmentID_processed_path(t *testing.T) {
	cases := []struct {
		url  string
		want SegmentID
	}{
		{"http://localhost:8000/api/segments/248123.ts", 248123},
		{"https://cdn.example.com/live/segments/42.ts", 42},
		{"/segments/7.m4s", 7},
	}
	for _, c := range cases {
		got, ok := ParseSegmentID(c.url)
		if !ok || got != c.want {
			t.Errorf("ParseSegmentID(%q) = %d, %v; want %d, true", c.url, got, ok, c.want)
		}
	}
}

func TestParseSegmentID_raw_fallback(t *testing.T) {
	cases := []struct {
		url  string
		want SegmentID
	}{
		{"https://abbey-road.akamaized.net/some/long/prefix/248123.ts", 248123},
		{"http://localhost:8000/api/raw/99.ts", 99},
		{"https://cdn.example.com/v1/chunk-stream/12345.m4s", 12345},
	}
	for _, c := range cases {
		got, ok := ParseSegmentID(c.url)
		if !ok || got != c.want {
			t.Errorf("ParseSegmentID(%q) = %d, %v; want %d, true", c.url, got, ok, c.want)
		}
	}
}

func TestParseSegmentID_no_match(t *testing.T) {
	cases := []string{
		"",
		"http://localhost:8000/api/stream",
		"https://cdn.example.com/playlist.m3u8",
		"/segments/abc.ts",
		"no-slashes-at-all",
		"https://cdn.example.com/123",      // no extension
		"https://cdn.example.com/12a3.ts",  // digits not the whole component
	}
	for _, url := range cases {
		if id, ok := ParseSegmentID(url); ok {
			t.Errorf("ParseSegmentID(%q) = %d, true; want no match", url, id)
		}
	}
}

func TestParseSegmentID_zero_is_invalid(t *testing.T) {
	for _, url := range []string{"/segments/0.ts", "https://cdn.example.com/0.ts"} {
		if id, ok := ParseSegmentID(url); ok {
			t.Errorf("ParseSegmentID(%q) = %d, true; id 0 must be treated as absent", url, id)
		}
	}
}

func TestParseSegmentID_overflow(t *testing.T) {
	if id, ok := ParseSegmentID("/segments/99999999999999999999999999.ts"); ok {
		t.Errorf("overflowing digits should not match, got %d", id)
	}
}

func TestParseSegmentID_prefers_segments_path(t *testing.T) {
	// Both patterns match; the processed-feed pattern must win. They
	// capture the same component here, but the stricter anchor is the one
	// that defines the convention.
	got, ok := ParseSegmentID("http://localhost:8000/api/segments/555.ts")
	if !ok || got != 555 {
		t.Errorf("got %d, %v; want 555, true", got, ok)
	}
}

func FuzzParseSegmentID(f *testing.F) {
	f.Add("http://localhost:8000/api/segments/248123.ts")
	f.Add("https://abbey-road.akamaized.net/prefix/1.ts")
	f.Add("")
	f.Add("/segments/0.ts")
	f.Add("://///.ts")
	f.Fuzz(func(t *testing.T, url string) {
		// Must never panic and must never return ok with a zero id.
		id, ok := ParseSegmentID(url)
		if ok && id == 0 {
			t.Errorf("ParseSegmentID(%q) returned ok with zero id", url)
		}
	})
}
