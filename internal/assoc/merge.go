package assoc

import (
	"fmt"
	"log/slog"
)

// addTrackedTargets merges temporary targets into the accumulated set. Each
// temporary target either joins a matching target or becomes a new one with
// the next UTN of the counter.
func addTrackedTargets(name string, from, to *TargetSet, counter *utnCounter, s Settings) (merged, created int, err error) {
	slog.Info("Adding tracked targets", "source", name, "from", from.Len(), "to", to.Len())

	for _, tmp := range from.Targets() {
		if !tmp.HasTimestamps() {
			continue
		}

		if utn, ok := findUTNForTarget(tmp, to, s); ok {
			existing, err := to.Lookup(utn)
			if err != nil {
				return merged, created, err
			}
			existing.Add(tmp.Reports()...)
			merged++
			continue
		}

		target := NewTarget(counter.allocate())
		target.Add(tmp.Reports()...)
		to.Insert(target)
		created++
	}

	slog.Info("Added tracked targets", "source", name, "merged", merged, "created", created, "to", to.Len())

	return merged, created, nil
}

// selfAssociate drains targets in ascending UTN order into a fresh set,
// merging fragments of the same aircraft. UTNs of the result are dense from 0.
func selfAssociate(targets *TargetSet, s Settings) (*TargetSet, *utnCounter, error) {
	slog.Info("Self-associating targets", "targets", targets.Len())

	fresh := NewTargetSet()
	counter := &utnCounter{}

	for _, t := range targets.Targets() {
		utn, ok := findUTNForTarget(t, fresh, s)
		if !ok {
			utn = counter.allocate()
			fresh.Insert(NewTarget(utn))
		} else {
			slog.Debug("Self-association match", "utn", t.UTN, "into", utn)
		}

		target, err := fresh.Lookup(utn)
		if err != nil {
			return nil, nil, err
		}
		target.Add(t.Reports()...)
		targets.Remove(t.UTN)
	}

	slog.Info("Self-associated targets", "targets", fresh.Len())

	return fresh, counter, nil
}

// addressLookup maps each aircraft address to the UTN carrying it. Targets
// with more than one address, or addresses on several targets, violate
// address exclusivity.
func addressLookup(set *TargetSet) (map[uint32]uint32, error) {
	lookup := make(map[uint32]uint32)

	for _, t := range set.Targets() {
		if !t.HasAddress() {
			continue
		}

		addrs := t.Addresses()
		if len(addrs) != 1 {
			return nil, fmt.Errorf("%w: utn %d has %d addresses", ErrAddressConflict, t.UTN, len(addrs))
		}
		if other, exists := lookup[addrs[0]]; exists {
			return nil, fmt.Errorf("%w: address %06X on utn %d and %d", ErrAddressConflict, addrs[0], other, t.UTN)
		}
		lookup[addrs[0]] = t.UTN
	}

	return lookup, nil
}
