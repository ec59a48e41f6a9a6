package hub75

import "unsafe"

// chunkSize is the blast loop's unroll granularity. Rows are padded to a
// multiple of it; functional behavior does not depend on its value.
const chunkSize = 8

// element is the set of port access widths. blast is instantiated once per
// width, giving three physically distinct compiled loops that cannot drift
// apart the way hand-duplicated source can.
type element interface {
	~uint8 | ~uint16 | ~uint32
}

// blast streams one row-plane of pre-packed elements to the data port,
// toggling the clock once per element. Elements narrower than the port word
// are shifted into their lane before the write.
//
// With a toggle register each element costs two writes: the stored value
// (new data XORed against the previous column, clock bit included, taking
// the clock low) and a clock toggle taking it high. Without one it costs
// three: set data, set clock, clear data and clock. Port writes are
// memory-mapped stores, slower than the panel's minimum clock hold time, so
// the phases need no added delay.
//
// On return the port's data and clock bits are back at the resting low
// pattern, which the next invocation (and the host's packed data) assumes.
func blast[T element](c *Core, data []T) {
	shift := uint(c.portOffset) * uint(c.elemWidth) * 8
	chunks := len(data) / chunkSize
	i := 0
	if t := c.toggle; t != nil {
		clock := c.clockMask
		for ; chunks > 0; chunks-- {
			t.ToggleBits(uint32(data[i]) << shift)
			t.ToggleBits(clock)
			t.ToggleBits(uint32(data[i+1]) << shift)
			t.ToggleBits(clock)
			t.ToggleBits(uint32(data[i+2]) << shift)
			t.ToggleBits(clock)
			t.ToggleBits(uint32(data[i+3]) << shift)
			t.ToggleBits(clock)
			t.ToggleBits(uint32(data[i+4]) << shift)
			t.ToggleBits(clock)
			t.ToggleBits(uint32(data[i+5]) << shift)
			t.ToggleBits(clock)
			t.ToggleBits(uint32(data[i+6]) << shift)
			t.ToggleBits(clock)
			t.ToggleBits(uint32(data[i+7]) << shift)
			t.ToggleBits(clock)
			i += chunkSize
		}
		// The toggle sequence leaves the last column's data on the lines.
		c.port.ClearBits(c.rgbAndClockMask)
		return
	}

	p := c.port
	clock := c.clockMask
	rgbclock := c.rgbAndClockMask
	for ; chunks > 0; chunks-- {
		p.SetBits(uint32(data[i]) << shift)
		p.SetBits(clock)
		p.ClearBits(rgbclock)
		p.SetBits(uint32(data[i+1]) << shift)
		p.SetBits(clock)
		p.ClearBits(rgbclock)
		p.SetBits(uint32(data[i+2]) << shift)
		p.SetBits(clock)
		p.ClearBits(rgbclock)
		p.SetBits(uint32(data[i+3]) << shift)
		p.SetBits(clock)
		p.ClearBits(rgbclock)
		p.SetBits(uint32(data[i+4]) << shift)
		p.SetBits(clock)
		p.ClearBits(rgbclock)
		p.SetBits(uint32(data[i+5]) << shift)
		p.SetBits(clock)
		p.ClearBits(rgbclock)
		p.SetBits(uint32(data[i+6]) << shift)
		p.SetBits(clock)
		p.ClearBits(rgbclock)
		p.SetBits(uint32(data[i+7]) << shift)
		p.SetBits(clock)
		p.ClearBits(rgbclock)
		i += chunkSize
	}
}

// asWords and asLongs reinterpret a row-plane byte slice as wider elements.
// Row offsets are multiples of the element width, and the buffer base is
// allocator-aligned, so the views are aligned.

func asWords(b []byte) []uint16 {
	return unsafe.Slice((*uint16)(unsafe.Pointer(&b[0])), len(b)/2)
}

func asLongs(b []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// putWord and putLong store elements in the byte order the blast views read
// them back with: the host's native order.

func putWord(b []byte, v uint16) {
	*(*uint16)(unsafe.Pointer(&b[0])) = v
}

func putLong(b []byte, v uint32) {
	*(*uint32)(unsafe.Pointer(&b[0])) = v
}
