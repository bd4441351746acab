package experiment

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/stat"
)

// Return tracks the return and length of each episode in an
// experiment.
//
// Note: An episode must finish for its return to be tracked. If the
// last episode in an experiment does not finish, its return is lost.
type Return struct {
	currentReturn  float64
	currentLength  int
	episodeReturns []float64
	episodeLengths []float64
}

// NewReturn creates and returns a new Return tracker
func NewReturn() *Return {
	return &Return{}
}

// Track tracks the reward of a single step, which was the last step in
// its episode if done is true
func (r *Return) Track(reward float64, done bool) {
	r.currentReturn += reward
	r.currentLength++

	if done {
		r.episodeReturns = append(r.episodeReturns, r.currentReturn)
		r.episodeLengths = append(r.episodeLengths,
			float64(r.currentLength))
		r.currentReturn = 0
		r.currentLength = 0
	}
}

// Episodes returns the number of finished episodes
func (r *Return) Episodes() int {
	return len(r.episodeReturns)
}

// Data returns the return of each finished episode
func (r *Return) Data() []float64 {
	return r.episodeReturns
}

// Mean returns the mean return over the last n finished episodes, or
// NaN if no episodes have finished
func (r *Return) Mean(n int) float64 {
	return tailMean(r.episodeReturns, n)
}

// MeanLength returns the mean length of the last n finished episodes,
// or NaN if no episodes have finished
func (r *Return) MeanLength(n int) float64 {
	return tailMean(r.episodeLengths, n)
}

func tailMean(x []float64, n int) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	if n < len(x) {
		x = x[len(x)-n:]
	}
	return stat.Mean(x, nil)
}

// Save saves the returns of all finished episodes to filename
func (r *Return) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %w", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err = en.Encode(r.episodeReturns); err != nil {
		return fmt.Errorf("save: could not encode returns: %w", err)
	}
	return nil
}

// LoadData loads and returns the data saved by a Return tracker
func LoadData(filename string) ([]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadData: could not open data file: %w", err)
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	var data []float64
	if err = dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("loadData: could not decode data: %w", err)
	}
	return data, nil
}
