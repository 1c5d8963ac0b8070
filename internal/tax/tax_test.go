package tax

import "testing"

func TestComputeGST(t *testing.T) {
	cases := []struct {
		amount int64
		gst    int64
		total  int64
	}{
		{499, 90, 589},
		{999, 180, 1179},
		{100, 18, 118},
		{1, 0, 1},
		{0, 0, 0},
		{-50, 0, -50},
	}

	for _, tc := range cases {
		if got := ComputeGST(tc.amount); got != tc.gst {
			t.Fatalf("ComputeGST(%d) = %d, want %d", tc.amount, got, tc.gst)
		}
		if got := TotalWithGST(tc.amount); got != tc.total {
			t.Fatalf("TotalWithGST(%d) = %d, want %d", tc.amount, got, tc.total)
		}
	}
}
