package importer

import "testing"

func TestPoolSizeAuto(t *testing.T) {
	cases := []struct {
		name  string
		ratio float64
		cpus  int
		want  int
	}{
		{"half of eight", 0.5, 8, 4},
		{"half of four", 0.5, 4, 2},
		{"low ratio rounds up from half", 0.5, 1, 1},
		{"single cpu never zero", 0.1, 1, 1},
		{"ratio at ceiling", 0.7, 4, 2},
		{"ratio at ceiling sixteen", 0.7, 16, 11},
		{"tiny ratio large machine", 0.1, 32, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := poolSizeFor("auto", tc.ratio, tc.cpus); got != tc.want {
				t.Errorf("poolSizeFor(auto, %v, %d) = %d, want %d", tc.ratio, tc.cpus, got, tc.want)
			}
		})
	}
}

func TestPoolSizeExplicit(t *testing.T) {
	cases := []struct {
		name    string
		workers string
		cpus    int
		want    int
	}{
		{"within ceiling", "3", 8, 3},
		{"capped at ceiling", "16", 8, 5},
		{"capped at ceiling sixteen cpus", "16", 16, 11},
		{"raised to one", "-2", 8, 1},
		{"single cpu", "4", 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := poolSizeFor(tc.workers, 0.5, tc.cpus); got != tc.want {
				t.Errorf("poolSizeFor(%s, 0.5, %d) = %d, want %d", tc.workers, tc.cpus, got, tc.want)
			}
		})
	}
}

func TestPoolSizeUnparseableFallsBackToAuto(t *testing.T) {
	if got := poolSizeFor("lots", 0.5, 8); got != 4 {
		t.Errorf("poolSizeFor(lots, 0.5, 8) = %d, want 4", got)
	}
	if got := poolSizeFor("", 0.5, 8); got != 4 {
		t.Errorf("poolSizeFor(empty, 0.5, 8) = %d, want 4", got)
	}
}

func TestPoolSizeNeverExceedsCeiling(t *testing.T) {
	for cpus := 1; cpus <= 64; cpus++ {
		ceiling := cpus * 7 / 10
		if ceiling < 1 {
			ceiling = 1
		}
		for _, w := range []string{"auto", "1", "8", "64"} {
			got := poolSizeFor(w, 0.7, cpus)
			if got < 1 {
				t.Fatalf("poolSizeFor(%s, 0.7, %d) = %d, below 1", w, cpus, got)
			}
			if got > ceiling {
				t.Fatalf("poolSizeFor(%s, 0.7, %d) = %d, above ceiling %d", w, cpus, got, ceiling)
			}
		}
	}
}
