// Package shmchannel implements the named POSIX shared-memory ring buffer
// that couples the SIP/RTP engine to the standalone audio-processor
// binaries (spec.md §3 "SHM audio channel", §4.6, §9 "SHM ring buffer").
//
// The layout is a fixed header of atomically-updated head/tail indices
// followed by a flat array of fixed-size frame slots. It deliberately uses
// no language-specific synchronization primitive: head and tail are plain
// uint64 words updated with atomic loads/stores, which any other process
// mapping the same region — including a non-Go audio-processor binary —
// can interoperate with by observing the same memory layout.
package shmchannel

import (
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// DefaultCapacity and DefaultFrameSize match spec.md §3's stated defaults.
const (
	DefaultCapacity  = 2048
	DefaultFrameSize = 512

	magic      = uint64(0x53484d5f415046ff) // "SHM_APF" tagged
	headerSize = 64
)

// Role distinguishes which end of the channel a process owns. Producer and
// consumer share the exact same memory layout; only the set of allowed
// operations differs, enforced here at the API level, not the wire level,
// so a foreign process attaching by name is never restricted by it.
type Role int

const (
	RoleProducer Role = iota
	RoleConsumer
)

// Channel is one attached end of a named SHM ring buffer.
type Channel struct {
	name      string
	role      Role
	capacity  uint64
	frameSize uint64

	file *os.File
	mem  []byte

	head *uint64 // producer-owned index
	tail *uint64 // consumer-owned index
	slots []byte
}

// shmPath maps a channel name (e.g. "/ap_in_42") to its /dev/shm file path.
// POSIX shm_open names are slash-prefixed and map directly onto /dev/shm.
func shmPath(name string) string {
	if len(name) > 0 && name[0] == '/' {
		return "/dev/shm" + name
	}
	return "/dev/shm/" + name
}

// InName and OutName build the channel names spec.md §4.6 requires:
// "/ap_in_<num_id>" (SIP is producer) and "/ap_out_<num_id>" (SIP is
// consumer).
func InName(numericID int) string  { return fmt.Sprintf("/ap_in_%d", numericID) }
func OutName(numericID int) string { return fmt.Sprintf("/ap_out_%d", numericID) }

// OpenOrCreate attaches to the named region, creating and initializing it
// if absent. Creation and attach are idempotent: whichever side (producer
// or consumer) gets there first lays out the header; the other attaches
// to the existing region unchanged (spec.md §4.6 "idempotent across
// producer and consumer").
func OpenOrCreate(name string, role Role, capacity, frameSize uint64) (*Channel, error) {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if frameSize == 0 {
		frameSize = DefaultFrameSize
	}

	path := shmPath(name)
	size := int64(headerSize + capacity*(8+frameSize))

	created := false
	file, err := os.OpenFile(path, os.O_RDWR, 0600)
	if os.IsNotExist(err) {
		file, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil {
			created = true
		} else if os.IsExist(err) {
			file, err = os.OpenFile(path, os.O_RDWR, 0600)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open shm %s: %w", name, err)
	}

	if created {
		if err := file.Truncate(size); err != nil {
			file.Close()
			return nil, fmt.Errorf("truncate shm %s: %w", name, err)
		}
	} else {
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("stat shm %s: %w", name, err)
		}
		if info.Size() < size {
			if err := file.Truncate(size); err != nil {
				file.Close()
				return nil, fmt.Errorf("grow shm %s: %w", name, err)
			}
		}
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap shm %s: %w", name, err)
	}

	ch := &Channel{
		name:      name,
		role:      role,
		capacity:  capacity,
		frameSize: frameSize,
		file:      file,
		mem:       mem,
	}
	ch.head = (*uint64)(atomicPtr(mem, 8))
	ch.tail = (*uint64)(atomicPtr(mem, 16))
	ch.slots = mem[headerSize:]

	if created {
		atomic.StoreUint64((*uint64)(atomicPtr(mem, 0)), magic)
		atomic.StoreUint64(ch.head, 0)
		atomic.StoreUint64(ch.tail, 0)
	}

	return ch, nil
}

// WriteFrame is the single-producer, non-blocking write (spec.md §4.6
// write_frame). Data longer than frameSize is truncated; on a full ring the
// oldest frame is overwritten (drop-oldest) so the newest audio always wins.
func (c *Channel) WriteFrame(data []byte) {
	head := atomic.LoadUint64(c.head)
	tail := atomic.LoadUint64(c.tail)

	if head-tail >= c.capacity {
		// Ring full: drop the oldest frame by advancing tail first.
		atomic.StoreUint64(c.tail, tail+1)
	}

	slot := c.slotAt(head % c.capacity)
	n := copy(slot[8:], data)
	for i := n; i < int(c.frameSize); i++ {
		slot[8+i] = 0
	}
	putUint64(slot[:8], uint64(n))

	atomic.StoreUint64(c.head, head+1)
}

// ReadFrame is the single-consumer, non-blocking read (spec.md §4.6
// read_frame). Returns ok=false when the ring is empty without blocking.
func (c *Channel) ReadFrame() (frame []byte, ok bool) {
	head := atomic.LoadUint64(c.head)
	tail := atomic.LoadUint64(c.tail)

	if tail >= head {
		return nil, false
	}

	slot := c.slotAt(tail % c.capacity)
	n := getUint64(slot[:8])
	out := make([]byte, n)
	copy(out, slot[8:8+n])

	atomic.StoreUint64(c.tail, tail+1)
	return out, true
}

func (c *Channel) slotAt(index uint64) []byte {
	stride := 8 + c.frameSize
	off := index * stride
	return c.slots[off : off+stride]
}

// Close unmaps the region. It does not unlink the backing file: the other
// end (or a standalone processor binary) may still be attached.
func (c *Channel) Close() error {
	if err := unix.Munmap(c.mem); err != nil {
		c.file.Close()
		return fmt.Errorf("munmap %s: %w", c.name, err)
	}
	return c.file.Close()
}

// Unlink removes the named region from /dev/shm. Call this once, from
// whichever side tears the call down (spec.md §4.1 BYE: "release SHM
// channels").
func Unlink(name string) error {
	if err := os.Remove(shmPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlink shm %s: %w", name, err)
	}
	return nil
}
