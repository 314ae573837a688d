package httprange

import (
	"testing"
)

func TestParseContentRange(t *testing.T) {
	var tests = []struct {
		s   string
		cr  *ContentRange
		err string
	}{
		{"", nil, ""},
		{"items 0-1/2", nil, "invalid unit of Content-Range header"},
		{"bytes 0-1", nil, "invalid size of Content-Range header"},
		{"bytes 500-600/abc", nil, "cannot parse size of Content-Range header"},
		{"bytes 500-600/-5", nil, "cannot parse size of Content-Range header"},
		{"bytes 600/999", nil, "cannot parse Content-Range header, expected format \"start-end\""},
		{"bytes -600/999", nil, "cannot parse start of Content-Range header"},
		{"bytes 0-/999", nil, "cannot parse end of Content-Range header"},
		{"bytes 10-5/999", nil, "end of Content-Range header precedes its start"},
		{"bytes 0-999/999", nil, "end of Content-Range header exceeds its size"},
		{"bytes 0-63/128", &ContentRange{Start: 0, End: 63, Size: 128}, ""},
		{"bytes 4000000-6999999/*", &ContentRange{Start: 4000000, End: 6999999, Size: UnknownSize}, ""},
		{"bytes 7000000-9999999/10000000", &ContentRange{Start: 7000000, End: 9999999, Size: 10000000}, ""},
	}

	for _, tt := range tests {
		cr, err := ParseContentRange(tt.s)
		if err != nil {
			if err.Error() != tt.err {
				t.Errorf("ParseContentRange(%q) error = %s, want %s", tt.s, err, tt.err)
			}
			continue
		}
		if tt.err != "" {
			t.Errorf("ParseContentRange(%q) error = nil, want %s", tt.s, tt.err)
			continue
		}
		if tt.cr == nil {
			if cr != nil {
				t.Errorf("ParseContentRange(%q) = %+v, want nil", tt.s, cr)
			}
			continue
		}
		if *cr != *tt.cr {
			t.Errorf("ParseContentRange(%q) = %+v, want %+v", tt.s, cr, tt.cr)
		}
	}
}

func TestContentRangeLength(t *testing.T) {
	var tests = []struct {
		cr     ContentRange
		length int64
		known  bool
		last   bool
	}{
		{ContentRange{0, 63, 128}, 64, true, false},
		{ContentRange{64, 127, 128}, 64, true, true},
		{ContentRange{0, 0, 1}, 1, true, true},
		{ContentRange{100, 199, UnknownSize}, 100, false, false},
	}
	for _, tt := range tests {
		if got := tt.cr.Length(); got != tt.length {
			t.Errorf("%+v.Length() = %d, want %d", tt.cr, got, tt.length)
		}
		if got := tt.cr.HasSize(); got != tt.known {
			t.Errorf("%+v.HasSize() = %v, want %v", tt.cr, got, tt.known)
		}
		if got := tt.cr.IsLastByte(); got != tt.last {
			t.Errorf("%+v.IsLastByte() = %v, want %v", tt.cr, got, tt.last)
		}
	}
}

func TestReceivedRange(t *testing.T) {
	var tests = []struct {
		n    int64
		want string
	}{
		{0, ""},
		{-1, ""},
		{1, "bytes=0-0"},
		{3999000, "bytes=0-3998999"},
	}
	for _, tt := range tests {
		if got := ReceivedRange(tt.n); got != tt.want {
			t.Errorf("ReceivedRange(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
