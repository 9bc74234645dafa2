package domain

import "testing"

func TestFetchRange(t *testing.T) {
	cases := []struct {
		r     FetchRange
		len   int64
		empty bool
	}{
		{FetchRange{Low: 101, High: 105}, 5, false},
		{FetchRange{Low: 1, High: 1}, 1, false},
		{FetchRange{Low: 6, High: 5}, 0, true},
		{FetchRange{Low: 10, High: 2}, 0, true},
	}
	for _, c := range cases {
		if got := c.r.Len(); got != c.len {
			t.Fatalf("%+v Len = %d, want %d", c.r, got, c.len)
		}
		if got := c.r.Empty(); got != c.empty {
			t.Fatalf("%+v Empty = %v, want %v", c.r, got, c.empty)
		}
	}

	r := FetchRange{Low: 101, High: 103}
	if !r.Contains(101) || !r.Contains(103) || r.Contains(100) || r.Contains(104) {
		t.Fatalf("Contains bounds wrong for %+v", r)
	}
}
