package outcome

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/standing.credit/internal/credit"
	"github.com/louisbranch/standing.credit/internal/platform/errors"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// Severity configures one disaster tier. Disasters use a single negative-bias
// probability instead of a full bucket table: each selected victim draws a
// magnitude percentage and the bias decides whether the delta is a loss.
type Severity struct {
	Targets      [2]int  `yaml:"targets"`
	Percent      [2]int  `yaml:"percent"`
	Floor        int     `yaml:"floor"`
	NegativeBias float64 `yaml:"negative_bias"`
	PoolDepth    int     `yaml:"pool_depth"`
}

// Tables bundles every outcome table the engine draws from.
type Tables struct {
	Steal     Table
	Sabotage  Table
	Disasters map[string]Severity
}

// tablesFile is the YAML document shape.
type tablesFile struct {
	Steal     []Bucket            `yaml:"steal"`
	Sabotage  []Bucket            `yaml:"sabotage"`
	Disasters map[string]Severity `yaml:"disasters"`
}

// ForKind returns the table for a player action kind.
func (t Tables) ForKind(kind credit.ActionKind) (Table, error) {
	switch kind {
	case credit.ActionSteal:
		return t.Steal, nil
	case credit.ActionSabotage:
		return t.Sabotage, nil
	}
	return Table{}, errors.New(errors.CodeActionInvalidKind, fmt.Sprintf("no outcome table for kind %q", kind))
}

// Default parses and validates the embedded outcome tables.
func Default() (Tables, error) {
	return Parse(defaultTablesYAML)
}

// Load parses and validates an outcome table override file.
func Load(path string) (Tables, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read tables: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML tables document and validates it.
func Parse(raw []byte) (Tables, error) {
	var file tablesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Tables{}, errors.Wrap(errors.CodeOutcomeTableInvalid, "decode outcome tables", err)
	}

	tables := Tables{
		Steal:     Table{Kind: string(credit.ActionSteal), Buckets: file.Steal},
		Sabotage:  Table{Kind: string(credit.ActionSabotage), Buckets: file.Sabotage},
		Disasters: file.Disasters,
	}
	if err := tables.Validate(); err != nil {
		return Tables{}, err
	}
	return tables, nil
}

// Validate checks every table and severity, failing fast on the first
// malformed definition.
func (t Tables) Validate() error {
	if err := t.Steal.Validate(); err != nil {
		return err
	}
	if err := t.Sabotage.Validate(); err != nil {
		return err
	}
	if len(t.Disasters) == 0 {
		return errors.New(errors.CodeOutcomeTableInvalid, "at least one disaster severity is required")
	}
	for name, severity := range t.Disasters {
		if err := severity.Validate(name); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that the buckets partition 1-100 exactly, with no gaps or
// overlaps, and that each bucket's configuration is internally consistent.
func (t Table) Validate() error {
	if len(t.Buckets) == 0 {
		return invalidf("table %s has no buckets", t.Kind)
	}

	buckets := make([]Bucket, len(t.Buckets))
	copy(buckets, t.Buckets)
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Lo() < buckets[j].Lo() })

	next := 1
	for _, bucket := range buckets {
		if bucket.Label == "" {
			return invalidf("table %s has a bucket without a label", t.Kind)
		}
		if bucket.Lo() > bucket.Hi() {
			return invalidf("table %s bucket %s has inverted range [%d,%d]", t.Kind, bucket.Label, bucket.Lo(), bucket.Hi())
		}
		if bucket.Lo() < next {
			return invalidf("table %s bucket %s overlaps roll %d", t.Kind, bucket.Label, bucket.Lo())
		}
		if bucket.Lo() > next {
			return invalidf("table %s leaves rolls %d-%d uncovered", t.Kind, next, bucket.Lo()-1)
		}
		if bucket.Percent[0] < 0 || bucket.Percent[1] < bucket.Percent[0] {
			return invalidf("table %s bucket %s has invalid percent range [%d,%d]", t.Kind, bucket.Label, bucket.Percent[0], bucket.Percent[1])
		}
		if bucket.Floor < 0 {
			return invalidf("table %s bucket %s has negative floor", t.Kind, bucket.Label)
		}
		switch bucket.Apply {
		case ApplyTarget, ApplyInitiator, ApplyBoth:
		default:
			return invalidf("table %s bucket %s has unknown apply rule %q", t.Kind, bucket.Label, bucket.Apply)
		}
		if bucket.Transfer && bucket.Apply != ApplyTarget {
			return invalidf("table %s bucket %s: transfer requires apply=target", t.Kind, bucket.Label)
		}
		if bucket.Transfer && bucket.Chaotic {
			return invalidf("table %s bucket %s: transfer and chaotic are mutually exclusive", t.Kind, bucket.Label)
		}
		if bucket.Penalty < 0 {
			return invalidf("table %s bucket %s has negative penalty", t.Kind, bucket.Label)
		}
		next = bucket.Hi() + 1
	}
	if next != 101 {
		return invalidf("table %s leaves rolls %d-100 uncovered", t.Kind, next)
	}
	return nil
}

// Validate checks one disaster severity definition.
func (s Severity) Validate(name string) error {
	if s.Targets[0] < 1 || s.Targets[1] < s.Targets[0] {
		return invalidf("severity %s has invalid target range [%d,%d]", name, s.Targets[0], s.Targets[1])
	}
	if s.Percent[0] < 0 || s.Percent[1] < s.Percent[0] {
		return invalidf("severity %s has invalid percent range [%d,%d]", name, s.Percent[0], s.Percent[1])
	}
	if s.Floor < 1 {
		return invalidf("severity %s requires a floor of at least 1", name)
	}
	if s.NegativeBias < 0 || s.NegativeBias > 1 {
		return invalidf("severity %s has negative bias %f outside [0,1]", name, s.NegativeBias)
	}
	if s.PoolDepth < 1 {
		return invalidf("severity %s requires a pool depth of at least 1", name)
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return errors.New(errors.CodeOutcomeTableInvalid, fmt.Sprintf(format, args...))
}
