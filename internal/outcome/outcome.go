// Package outcome resolves probabilistic action results from declarative
// weighted tables.
//
// A table is a list of buckets partitioning the uniform 1-100 roll space.
// Resolution is pure given a draw source: locate the bucket containing the
// roll, draw a magnitude percentage inside the bucket's range, and apply the
// bucket's sign rule to produce signed deltas for the initiator and target.
// Tables are loaded once and validated at startup; a malformed table is a
// configuration error, never a draw-time surprise.
package outcome

import (
	"fmt"
	"time"

	"github.com/louisbranch/standing.credit/internal/random"
)

// Apply names which party a bucket's magnitude lands on.
type Apply string

const (
	// ApplyTarget debits the target only.
	ApplyTarget Apply = "target"
	// ApplyInitiator debits the initiator only (a backfire).
	ApplyInitiator Apply = "initiator"
	// ApplyBoth debits both parties.
	ApplyBoth Apply = "both"
)

// Bucket is one weighted branch of an outcome table, selected when the
// uniform roll falls inside [Lo, Hi].
type Bucket struct {
	Label     string   `yaml:"label"`
	FlavorKey string   `yaml:"flavor"`
	Range     [2]int   `yaml:"range"`
	Percent   [2]int   `yaml:"percent"`
	Floor     int      `yaml:"floor"`
	Apply     Apply    `yaml:"apply"`
	Transfer  bool     `yaml:"transfer"`
	Chaotic   bool     `yaml:"chaotic"`
	Penalty   Duration `yaml:"penalty"`
}

// Lo returns the inclusive lower bound of the bucket's roll range.
func (b Bucket) Lo() int { return b.Range[0] }

// Hi returns the inclusive upper bound of the bucket's roll range.
func (b Bucket) Hi() int { return b.Range[1] }

// Contains reports whether roll falls inside the bucket.
func (b Bucket) Contains(roll int) bool {
	return roll >= b.Range[0] && roll <= b.Range[1]
}

// Table is a complete outcome table for one action kind.
type Table struct {
	Kind    string
	Buckets []Bucket
}

// Outcome is the resolved result of one roll against a table.
type Outcome struct {
	Roll           int
	Label          string
	FlavorKey      string
	InitiatorDelta int64
	TargetDelta    int64
	Penalty        time.Duration
}

// Fizzle reports whether the outcome moves no credit at all.
func (o Outcome) Fizzle() bool {
	return o.InitiatorDelta == 0 && o.TargetDelta == 0
}

// Resolve resolves one roll against a table.
//
// The roll is drawn by the caller so resolution stays independently seedable;
// src supplies the remaining draws (magnitude percentage and, for chaotic
// buckets, one fair coin flip per affected party).
func Resolve(table Table, baseMagnitude int64, roll int, src random.Source) (Outcome, error) {
	if roll < 1 || roll > 100 {
		return Outcome{}, fmt.Errorf("roll %d out of [1,100]", roll)
	}
	if baseMagnitude < 0 {
		return Outcome{}, fmt.Errorf("base magnitude must not be negative, got %d", baseMagnitude)
	}

	bucket, ok := table.bucketFor(roll)
	if !ok {
		// Validated tables partition 1-100, so this indicates a table that
		// skipped validation.
		return Outcome{}, fmt.Errorf("table %s has no bucket for roll %d", table.Kind, roll)
	}

	pct := src.Percent(bucket.Percent[0], bucket.Percent[1])
	magnitude := baseMagnitude * int64(pct) / 100
	if magnitude < int64(bucket.Floor) {
		magnitude = int64(bucket.Floor)
	}

	result := Outcome{
		Roll:      roll,
		Label:     bucket.Label,
		FlavorKey: bucket.FlavorKey,
		Penalty:   time.Duration(bucket.Penalty),
	}

	if magnitude == 0 {
		return result, nil
	}

	if bucket.Transfer {
		result.TargetDelta = -magnitude
		result.InitiatorDelta = magnitude
		return result, nil
	}

	if bucket.Apply == ApplyTarget || bucket.Apply == ApplyBoth {
		result.TargetDelta = signed(magnitude, bucket.Chaotic, src)
	}
	if bucket.Apply == ApplyInitiator || bucket.Apply == ApplyBoth {
		result.InitiatorDelta = signed(magnitude, bucket.Chaotic, src)
	}
	return result, nil
}

// signed negates the magnitude for fixed-sign buckets; chaotic buckets flip
// an independent fair coin per party.
func signed(magnitude int64, chaotic bool, src random.Source) int64 {
	if chaotic && src.Coin() {
		return magnitude
	}
	return -magnitude
}

func (t Table) bucketFor(roll int) (Bucket, bool) {
	for _, bucket := range t.Buckets {
		if bucket.Contains(roll) {
			return bucket, true
		}
	}
	return Bucket{}, false
}
