package service

import "github.com/sga-platform/sga-notas-api/internal/models"

// ComputeDiff compares two slot images in canonical order and returns the
// slots whose value differs. An absent slot is a distinct comparable value:
// absent to 15.0 counts as a change, 15.0 to 15.0 does not. Both the audit
// recorder and the notification selector consume this one diff; it is never
// recomputed differently per consumer.
func ComputeDiff(before, after map[models.Slot]*float64) []models.SlotChange {
	var changes []models.SlotChange
	for _, slot := range models.SlotOrder {
		old := before[slot]
		cur := after[slot]
		if !slotValueEqual(old, cur) {
			changes = append(changes, models.SlotChange{Slot: slot, Old: old, New: cur})
		}
	}
	return changes
}

func slotValueEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
