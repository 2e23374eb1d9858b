package dsk

import (
	"fmt"
	"math"
)

// VariableInfo holds the statistics observed for a single feature across a
// dataset.
type VariableInfo interface {
	// Name returns the feature name.
	Name() string

	// Count returns the number of examples the feature was observed in.
	Count() int

	// Copy returns a deep copy which shares no state with the receiver.
	Copy() VariableInfo
}

// observer is implemented by VariableInfos which can be updated with newly
// observed values.
type observer interface {
	Observe(value float64)
}

// RealInfo is a VariableInfo for a real valued feature. Along with the count it
// tracks the minimum, maximum, mean and variance of the observed values. It is
// not threadsafe.
type RealInfo struct {
	name  string
	count int
	min   float64
	max   float64
	mean  float64
	m2    float64
}

// NewRealInfo returns a RealInfo for the named feature which hasn't observed
// anything.
func NewRealInfo(name string) *RealInfo {
	return &RealInfo{
		name: name,
		min:  math.Inf(1),
		max:  math.Inf(-1),
	}
}

// Observe adds a value to the statistics.
func (r *RealInfo) Observe(value float64) {
	r.count++
	if value < r.min {
		r.min = value
	}
	if value > r.max {
		r.max = value
	}
	delta := value - r.mean
	r.mean += delta / float64(r.count)
	r.m2 += delta * (value - r.mean)
}

// Name implements VariableInfo.
func (r *RealInfo) Name() string { return r.name }

// Count implements VariableInfo.
func (r *RealInfo) Count() int { return r.count }

// Min returns the smallest observed value.
func (r *RealInfo) Min() float64 { return r.min }

// Max returns the largest observed value.
func (r *RealInfo) Max() float64 { return r.max }

// Mean returns the mean of the observed values.
func (r *RealInfo) Mean() float64 { return r.mean }

// Variance returns the sample variance of the observed values, or 0 if fewer
// than two were observed.
func (r *RealInfo) Variance() float64 {
	if r.count < 2 {
		return 0
	}
	return r.m2 / float64(r.count-1)
}

// Copy implements VariableInfo.
func (r *RealInfo) Copy() VariableInfo {
	c := *r
	return &c
}

func (r *RealInfo) String() string {
	return fmt.Sprintf("RealFeature(name=%s,count=%d,max=%v,min=%v,mean=%v,variance=%v)", r.name, r.count, r.max, r.min, r.mean, r.Variance())
}
