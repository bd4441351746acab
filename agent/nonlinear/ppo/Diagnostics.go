package ppo

import "fmt"

// runningMean is an incrementally updated arithmetic mean
type runningMean struct {
	value float64
	n     int
}

func (r *runningMean) add(x float64) {
	r.n++
	r.value += (x - r.value) / float64(r.n)
}

func (r *runningMean) reset() {
	*r = runningMean{}
}

// slotStats holds the running means of the debug metrics of a single
// policy slot since that slot was last flushed
type slotStats struct {
	actorModelNorm        runningMean
	actorGradNorm         runningMean
	actorPreClipGradNorm  runningMean
	criticModelNorm       runningMean
	criticGradNorm        runningMean
	criticPreClipGradNorm runningMean
	learningRate          runningMean
	policyLoss            runningMean
	valueLoss             runningMean
	entropyLoss           runningMean
	totalLoss             runningMean
	meanTargetValue       runningMean
	meanPredictValue      runningMean
}

// namedMean pairs a running mean with the name it is logged under
type namedMean struct {
	name string
	mean *runningMean
}

// metrics returns the running means of s in logging order
func (s *slotStats) metrics() []namedMean {
	return []namedMean{
		{"actor_model_norm", &s.actorModelNorm},
		{"actor_grad_norm", &s.actorGradNorm},
		{"actor_pre_clip_grad_norm", &s.actorPreClipGradNorm},
		{"critic_model_norm", &s.criticModelNorm},
		{"critic_grad_norm", &s.criticGradNorm},
		{"critic_pre_clip_grad_norm", &s.criticPreClipGradNorm},
		{"lr", &s.learningRate},
		{"policy_loss", &s.policyLoss},
		{"value_loss", &s.valueLoss},
		{"entropy_loss", &s.entropyLoss},
		{"total_loss", &s.totalLoss},
		{"mean_target_value", &s.meanTargetValue},
		{"mean_predict_value", &s.meanPredictValue},
	}
}

func (s *slotStats) add(u updateResult) {
	s.actorModelNorm.add(u.actorModelNorm)
	s.actorGradNorm.add(u.actorGradNorm)
	s.actorPreClipGradNorm.add(u.actorPreClipGradNorm)
	s.criticModelNorm.add(u.criticModelNorm)
	s.criticGradNorm.add(u.criticGradNorm)
	s.criticPreClipGradNorm.add(u.criticPreClipGradNorm)
	s.learningRate.add(u.learningRate)
	s.policyLoss.add(u.policyLoss)
	s.valueLoss.add(u.valueLoss)
	s.entropyLoss.add(u.entropyLoss)
	s.totalLoss.add(u.totalLoss)
	s.meanTargetValue.add(u.meanTargetValue)
	s.meanPredictValue.add(u.meanPredictValue)
}

func (s *slotStats) reset() {
	*s = slotStats{}
}

// trainingState holds the counters that persist across training
// steps
type trainingState struct {
	// numGradientSteps counts individual policy updates over all
	// slots
	numGradientSteps int

	// stepsSinceFlush counts individual policy updates since the
	// last slot of the policy set was flushed
	stepsSinceFlush int

	// nUpdates counts epochs, including partial ones
	nUpdates int
}

// diagnostics aggregates per-update debug metrics for each policy
// slot and periodically flushes their means to a Recorder.
//
// All slots share the counter of updates since the last flush. Any
// slot flushes once that counter reaches the cadence, but the counter
// is reset only when the last slot of the policy set flushes. In dual
// modes the slots alternate, so with an even cadence the counter always
// reaches it on an auxiliary update and the primary slot never flushes.
type diagnostics struct {
	cadence  int
	lastSlot Slot
	slots    [2]slotStats
	rec      Recorder
}

func newDiagnostics(cadence int, lastSlot Slot, rec Recorder) *diagnostics {
	return &diagnostics{
		cadence:  cadence,
		lastSlot: lastSlot,
		rec:      rec,
	}
}

// observe folds the results of an applied update of slot into its
// running means and flushes the slot if it is due
func (d *diagnostics) observe(state *trainingState, slot Slot,
	u updateResult) error {
	state.numGradientSteps++
	state.stepsSinceFlush++

	stats := &d.slots[slot]
	stats.add(u)

	if state.stepsSinceFlush < d.cadence {
		return nil
	}

	if err := d.flush(slot, state.numGradientSteps); err != nil {
		return err
	}
	if slot == d.lastSlot {
		state.stepsSinceFlush = 0
	}
	return nil
}

// flush records the running means of slot, dumps them, and resets
// them to zero
func (d *diagnostics) flush(slot Slot, step int) error {
	stats := &d.slots[slot]
	for _, m := range stats.metrics() {
		d.rec.Record("debug/"+slot.prefix()+m.name, m.mean.value)
	}
	if err := d.rec.Dump(step); err != nil {
		return fmt.Errorf("flush: could not dump debug metrics: %w", err)
	}
	stats.reset()
	return nil
}
