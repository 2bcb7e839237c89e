package importer

import (
	"math"
	"runtime"
	"strconv"

	"github.com/chartbagapp/chartbag-server/internal/config"
)

// workerCeilingRatio caps the pool so extraction never saturates the host.
const workerCeilingRatio = 0.7

// PoolSize resolves the configured worker setting against the machine.
// maxWorkers is either "auto" or a positive integer string.
func PoolSize(maxWorkers string, autoRatio float64) int {
	return poolSizeFor(maxWorkers, autoRatio, runtime.NumCPU())
}

func poolSizeFor(maxWorkers string, autoRatio float64, cpus int) int {
	size := 0
	if maxWorkers != "" && maxWorkers != config.WorkersAuto {
		if n, err := strconv.Atoi(maxWorkers); err == nil {
			size = n
		}
	}
	if size == 0 {
		size = int(math.Round(float64(cpus) * autoRatio))
	}

	ceiling := int(math.Floor(float64(cpus) * workerCeilingRatio))
	if size > ceiling {
		size = ceiling
	}
	if size < 1 {
		size = 1
	}
	return size
}
