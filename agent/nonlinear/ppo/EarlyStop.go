package ppo

// stopState is the state of an earlyStop controller
type stopState int

const (
	running stopState = iota
	stopped
)

// klTolerance scales the target KL divergence to get the threshold
// above which training stops
const klTolerance = 1.5

// earlyStop stops a training step once the approximate KL divergence
// between the old and new policies grows too large. Once stopped, it
// stays stopped for the rest of the training step.
type earlyStop struct {
	targetKL *float64
	state    stopState
}

func newEarlyStop(targetKL *float64) *earlyStop {
	return &earlyStop{targetKL: targetKL}
}

// observe records the approximate KL divergence of a policy update
// and returns whether training should stop
func (e *earlyStop) observe(approxKL float64) bool {
	if e.targetKL != nil && approxKL > klTolerance*(*e.targetKL) {
		e.state = stopped
	}
	return e.stopped()
}

func (e *earlyStop) stopped() bool {
	return e.state == stopped
}
