// Package storage implements the slotted page, heap file and storage
// manager that make up the disk-backed storage layer: a fixed-size page
// packing variable-length records behind stable slot identifiers, an
// append-growable file of such pages, and a process-wide registry
// multiplexing heap files by container.
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/mnohosten/heapstore/pkg/ids"
)

const (
	// PageSize is the fixed byte size of every page image, on disk and in
	// memory.
	PageSize = 4096
	// FixedHeaderSize is the per-page header budget: page_id,
	// number_of_slots, furthest_slot, max_slot_id, each a little-endian
	// uint16.
	FixedHeaderSize = 8
	// SlotHeaderSize is the per-slot header budget: slot id, offset,
	// length, each a little-endian uint16.
	SlotHeaderSize = 6
)

// slotEntry records where one record's bytes live inside a page's data
// region.
type slotEntry struct {
	offset uint16
	length uint16
}

// Page is a slotted container for variable-length records inside a
// fixed-size byte buffer. Slot identifiers are stable across insertions
// and deletions until a slot is explicitly removed; deletion compacts the
// data region so live bytes always occupy a single contiguous prefix.
type Page struct {
	id      ids.PageID
	entries map[ids.SlotID]slotEntry
	data    []byte // data region; live bytes in [0, packedEnd), grown on demand by AddValue
	// maxSlot is the largest slot identifier ever assigned on this page. It
	// is monotonic: unlike number_of_slots, it never decreases on delete,
	// matching the on-disk max_slot_id header field.
	maxSlot ids.SlotID
}

// NewPage creates an empty page with the given identifier.
func NewPage(id ids.PageID) *Page {
	return &Page{
		id:      id,
		entries: make(map[ids.SlotID]slotEntry),
		data:    make([]byte, 0, PageSize),
	}
}

// ID returns the page's immutable identifier.
func (p *Page) ID() ids.PageID { return p.id }

// NumSlots returns the number of live slots.
func (p *Page) NumSlots() int { return len(p.entries) }

// headerSize is H_FIX + H_SLOT * number_of_slots.
func (p *Page) headerSize() int {
	return FixedHeaderSize + SlotHeaderSize*len(p.entries)
}

// packedEnd is the offset just past the furthest live record's bytes, or
// 0 if the page is empty.
func (p *Page) packedEnd() uint16 {
	var end uint16
	for _, e := range p.entries {
		if v := e.offset + e.length; v > end {
			end = v
		}
	}
	return end
}

// FreeSpace returns the largest contiguous free region: P minus the
// header budget minus the packed data.
func (p *Page) FreeSpace() int {
	return PageSize - p.headerSize() - int(p.packedEnd())
}

// nextSlotID applies the reclamation policy: the lowest free identifier
// below the largest slot id currently live, else number_of_slots. The
// scan is against the live entry set, not the monotonic historical
// max_slot_id header field (which only ever grows, even across deletes).
func (p *Page) nextSlotID() ids.SlotID {
	if len(p.entries) > 0 {
		var liveMax ids.SlotID
		first := true
		for id := range p.entries {
			if first || id > liveMax {
				liveMax = id
				first = false
			}
		}
		for candidate := ids.SlotID(0); candidate < liveMax; candidate++ {
			if _, ok := p.entries[candidate]; !ok {
				return candidate
			}
		}
	}
	return ids.SlotID(len(p.entries))
}

// AddValue attempts to insert bytes into the page. It returns the
// allocated slot identifier and true on success, or false if admitting
// the record would violate the free-space invariant: len(bytes) +
// H_SLOT >= free_space is rejected (the stricter admission form). A
// rejected insert never mutates page state.
func (p *Page) AddValue(value []byte) (ids.SlotID, bool) {
	if len(value)+SlotHeaderSize >= p.FreeSpace() {
		return 0, false
	}

	slot := p.nextSlotID()
	offset := p.packedEnd()

	if int(offset)+len(value) > len(p.data) {
		grown := make([]byte, int(offset)+len(value))
		copy(grown, p.data)
		p.data = grown
	}
	copy(p.data[offset:int(offset)+len(value)], value)

	p.entries[slot] = slotEntry{offset: offset, length: uint16(len(value))}
	if slot > p.maxSlot {
		p.maxSlot = slot
	}
	return slot, true
}

// GetValue returns a copy of the record stored at slot, or false if the
// slot is unknown.
func (p *Page) GetValue(slot ids.SlotID) ([]byte, bool) {
	e, ok := p.entries[slot]
	if !ok {
		return nil, false
	}
	out := make([]byte, e.length)
	copy(out, p.data[e.offset:e.offset+e.length])
	return out, true
}

// DeleteValue removes the record at slot, compacting the data region by
// left-shifting every byte after the deleted range by exactly the
// deleted record's length, and adjusting the offsets of slots that
// followed it. It returns false if the slot is unknown.
func (p *Page) DeleteValue(slot ids.SlotID) bool {
	e, ok := p.entries[slot]
	if !ok {
		return false
	}

	gapStart := e.offset
	gapLen := e.length
	end := p.packedEnd()

	if gapLen > 0 && end > gapStart+gapLen {
		copy(p.data[gapStart:], p.data[gapStart+gapLen:end])
	}
	// Zero the tail that is no longer part of any live record.
	for i := int(end) - int(gapLen); i < int(end); i++ {
		if i >= 0 && i < len(p.data) {
			p.data[i] = 0
		}
	}

	delete(p.entries, slot)
	for id, other := range p.entries {
		if other.offset > gapStart {
			other.offset -= gapLen
			p.entries[id] = other
		}
	}

	return true
}

// GetBytes serializes the page to a fixed P-byte image: live record
// bytes occupy [0, packedEnd), the header is laid out at the high end of
// the image growing downward, and everything else is zero.
func (p *Page) GetBytes() []byte {
	out := make([]byte, PageSize)
	end := p.packedEnd()
	copy(out[:end], p.data[:end])

	furthestSlot, hasFurthest := p.furthestSlot()
	var furthestVal uint16
	if hasFurthest {
		furthestVal = uint16(furthestSlot)
	}

	binary.LittleEndian.PutUint16(out[PageSize-2:], uint16(p.id))
	binary.LittleEndian.PutUint16(out[PageSize-4:], uint16(len(p.entries)))
	binary.LittleEndian.PutUint16(out[PageSize-6:], furthestVal)
	binary.LittleEndian.PutUint16(out[PageSize-8:], uint16(p.maxSlot))

	slots := make([]ids.SlotID, 0, len(p.entries))
	for id := range p.entries {
		slots = append(slots, id)
	}
	sortSlotIDs(slots)

	base := PageSize - FixedHeaderSize
	for k, id := range slots {
		e := p.entries[id]
		off := base - SlotHeaderSize*(k+1)
		binary.LittleEndian.PutUint16(out[off+4:], uint16(id))
		binary.LittleEndian.PutUint16(out[off+2:], e.offset)
		binary.LittleEndian.PutUint16(out[off:], e.length)
	}

	return out
}

// furthestSlot returns the slot whose (offset+length) is largest, and
// whether the page has any live slots at all.
func (p *Page) furthestSlot() (ids.SlotID, bool) {
	if len(p.entries) == 0 {
		return 0, false
	}
	var best ids.SlotID
	var bestEnd uint16
	first := true
	for id, e := range p.entries {
		v := e.offset + e.length
		if first || v > bestEnd {
			best = id
			bestEnd = v
			first = false
		}
	}
	return best, true
}

// FromBytes reconstructs a page from a P-byte image previously produced
// by GetBytes.
func FromBytes(image []byte) (*Page, error) {
	if len(image) != PageSize {
		return nil, fmt.Errorf("storage: page image must be %d bytes, got %d: %w", PageSize, len(image), ErrIO)
	}

	id := binary.LittleEndian.Uint16(image[PageSize-2:])
	numSlots := binary.LittleEndian.Uint16(image[PageSize-4:])
	maxSlotID := binary.LittleEndian.Uint16(image[PageSize-8:])

	p := NewPage(ids.PageID(id))
	base := PageSize - FixedHeaderSize

	for k := 0; k < int(numSlots); k++ {
		off := base - SlotHeaderSize*(k+1)
		slotID := binary.LittleEndian.Uint16(image[off+4:])
		offset := binary.LittleEndian.Uint16(image[off+2:])
		length := binary.LittleEndian.Uint16(image[off:])
		p.entries[ids.SlotID(slotID)] = slotEntry{offset: offset, length: length}
	}

	end := p.packedEnd()
	p.data = make([]byte, end)
	copy(p.data, image[:end])

	p.maxSlot = ids.SlotID(maxSlotID)

	return p, nil
}

func sortSlotIDs(s []ids.SlotID) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
