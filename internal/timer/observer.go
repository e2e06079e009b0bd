package timer

import "github.com/behrlich/ioruntime/internal/metrics"

// WheelObserver adapts a metrics.Observer (which carries many more
// methods than a Wheel needs) down to this package's own Observer, so
// Wheel never imports internal/metrics directly.
type WheelObserver struct {
	obs metrics.Observer
}

// NewWheelObserver wraps obs for use as a Wheel's Observer.
func NewWheelObserver(obs metrics.Observer) WheelObserver {
	return WheelObserver{obs: obs}
}

func (w WheelObserver) ObserveTimerRegistered() { w.obs.ObserveTimerRegistered() }
func (w WheelObserver) ObserveTimerFired()      { w.obs.ObserveTimerFired() }
func (w WheelObserver) ObserveTimerCancelled()  { w.obs.ObserveTimerCancelled() }
func (w WheelObserver) ObserveWheelCascade()    { w.obs.ObserveWheelCascade() }

var _ Observer = WheelObserver{}
