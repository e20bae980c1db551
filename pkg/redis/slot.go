package redis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	importingSeparator = "-<-"
	migratingSeparator = "->-"
)

// Slot represent a Redis Cluster slot
type Slot uint64

// String string representation of a slot
func (s Slot) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// DecodeSlot parse a string representation of a slot
func DecodeSlot(s string) (Slot, error) {
	slot, err := strconv.ParseUint(s, 10, 64)
	return Slot(slot), err
}

// SlotSlice attaches the methods of sort.Interface to []Slot, sorting in increasing order
type SlotSlice []Slot

func (s SlotSlice) Len() int           { return len(s) }
func (s SlotSlice) Less(i, j int) bool { return s[i] < s[j] }
func (s SlotSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func (s SlotSlice) String() string {
	return fmt.Sprintf("%s", SlotRangesFromSlots(s))
}

// SlotRange represent a Range of slots
type SlotRange struct {
	Min Slot
	Max Slot
}

// String string representation of a slotrange
func (s SlotRange) String() string {
	return fmt.Sprintf("%s-%s", s.Min, s.Max)
}

// Total returns total of slots in the range
func (s SlotRange) Total() int {
	return int(s.Max - s.Min + 1)
}

// ImportingSlot represents an importing slot (slot + importing from node id)
type ImportingSlot struct {
	SlotID     Slot
	FromNodeID string
}

// String string representation of an importing slot
func (s ImportingSlot) String() string {
	return fmt.Sprintf("%s%s%s", s.SlotID, importingSeparator, s.FromNodeID)
}

// MigratingSlot represents a migrating slot (slot + migrating to node id)
type MigratingSlot struct {
	SlotID   Slot
	ToNodeID string
}

// String string representation of a migrating slot
func (s MigratingSlot) String() string {
	return fmt.Sprintf("%s%s%s", s.SlotID, migratingSeparator, s.ToNodeID)
}

// DecodeSlotRange decode from a string a RangeSlot
//
// A token can be a single slot ("42"), an inclusive range of stable slots
// ("1000-2000"), or a transitional marker as reported by CLUSTER NODES:
// "[42->-<dest-id>]" for a slot migrating out, "[42-<-<src-id>]" for a slot
// being imported.
func DecodeSlotRange(str string) ([]Slot, *ImportingSlot, *MigratingSlot, error) {
	result := []Slot{}
	if strings.HasPrefix(str, "[") {
		if !strings.HasSuffix(str, "]") {
			return result, nil, nil, fmt.Errorf("unable to parse migration slot token '%s'", str)
		}
		content := str[1 : len(str)-1]
		if idx := strings.Index(content, migratingSeparator); idx != -1 {
			slot, err := DecodeSlot(content[:idx])
			if err != nil {
				return result, nil, nil, err
			}
			return result, nil, &MigratingSlot{SlotID: slot, ToNodeID: content[idx+len(migratingSeparator):]}, nil
		}
		if idx := strings.Index(content, importingSeparator); idx != -1 {
			slot, err := DecodeSlot(content[:idx])
			if err != nil {
				return result, nil, nil, err
			}
			return result, &ImportingSlot{SlotID: slot, FromNodeID: content[idx+len(importingSeparator):]}, nil, nil
		}
		return result, nil, nil, fmt.Errorf("unable to parse migration slot token '%s'", str)
	}

	vals := strings.Split(str, "-")
	switch len(vals) {
	case 1:
		slot, err := DecodeSlot(vals[0])
		if err != nil {
			return result, nil, nil, err
		}
		result = append(result, slot)
	case 2:
		min, err := DecodeSlot(vals[0])
		if err != nil {
			return result, nil, nil, err
		}
		max, err := DecodeSlot(vals[1])
		if err != nil {
			return result, nil, nil, err
		}
		if max < min {
			return result, nil, nil, fmt.Errorf("range start after range end in '%s'", str)
		}
		result = BuildSlotSlice(min, max)
	default:
		return result, nil, nil, fmt.Errorf("unable to parse slot range '%s'", str)
	}

	return result, nil, nil, nil
}

// BuildSlotSlice return a slice of all slots between min and max (inclusive)
func BuildSlotSlice(min, max Slot) []Slot {
	slots := []Slot{}
	for s := min; s <= max; s++ {
		slots = append(slots, s)
	}
	return slots
}

// SlotRangesFromSlots return a slice of slot ranges from a slice of slots
func SlotRangesFromSlots(slots []Slot) []SlotRange {
	ranges := []SlotRange{}
	sortedSlots := append([]Slot{}, slots...)
	sort.Sort(SlotSlice(sortedSlots))

	var currentRange *SlotRange
	for _, slot := range sortedSlots {
		if currentRange == nil {
			currentRange = &SlotRange{Min: slot, Max: slot}
			continue
		}
		if slot == currentRange.Max || slot == currentRange.Max+1 {
			currentRange.Max = slot
			continue
		}
		ranges = append(ranges, *currentRange)
		currentRange = &SlotRange{Min: slot, Max: slot}
	}
	if currentRange != nil {
		ranges = append(ranges, *currentRange)
	}

	return ranges
}

// Contains returns true if the given slot is part of the slot slice
func Contains(slots []Slot, slot Slot) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}

// RemoveSlots returns a new slice with all slots of removedSlots removed, keeping order
func RemoveSlots(slots []Slot, removedSlots []Slot) []Slot {
	newSlice := []Slot{}
	for _, s := range slots {
		if !Contains(removedSlots, s) {
			newSlice = append(newSlice, s)
		}
	}
	return newSlice
}

// AddSlots returns a new slice with all slots of addedSlots added, ignoring duplicates
func AddSlots(slots []Slot, addedSlots []Slot) []Slot {
	newSlice := append([]Slot{}, slots...)
	for _, s := range addedSlots {
		if !Contains(newSlice, s) {
			newSlice = append(newSlice, s)
		}
	}
	return newSlice
}
