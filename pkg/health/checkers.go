package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when the process runs more than threshold
// goroutines. It catches leaked per-user workers and stuck deliveries.
func GoroutineCountCheck(threshold int) CheckFunc {
	return GaugeCheck("goroutine count", runtime.NumGoroutine, threshold)
}

// GaugeCheck fails when value() exceeds threshold.
func GaugeCheck(name string, value func() int, threshold int) CheckFunc {
	return func(context.Context) error {
		if v := value(); v > threshold {
			return errors.Errorf("%s %d exceeds threshold %d", name, v, threshold)
		}
		return nil
	}
}
