package master

import (
	"context"
	"errors"
	"sync"

	"github.com/gravwell/ethercat/cia402"
	"github.com/gravwell/ethercat/pdo"
)

// SimAdapter is a deterministic, in-process Adapter used by the worker's
// own tests (spec has no real-hardware test harness; this fills the same
// role the teacher's in-repo fakes fill for its own ingesters' tests).
// It models one simulated servo per configured slave that walks its own
// CiA-402 state machine in response to the controlword it is written,
// entirely independent of this repo's own cia402 package, so tests that
// exercise the worker against SimAdapter are exercising two independent
// implementations of the same transition table.
type SimAdapter struct {
	mu sync.Mutex

	slaves  []*simSlave
	image   []byte
	offsets map[simKey]pdo.Offset
	// sdo backs SDO (mailbox) access to objects that aren't PDO-mapped --
	// on real hardware the service channel reaches any object regardless of
	// cyclic mapping, so simKeys absent from offsets fall back here instead
	// of failing.
	sdo map[simKey][]byte

	activated bool
	appTimeNs int64
}

type simKey struct {
	position int
	index    uint16
	subindex uint8
}

type simSlave struct {
	id    SlaveIdentity
	state ApplicationState
	sw    uint16 // statusword, walks in response to controlword

	cwOffset, swOffset pdo.Offset
	hasCW, hasSW       bool
}

// NewSimAdapter returns a ready-to-Request SimAdapter with imageSize bytes
// of process image backing store.
func NewSimAdapter(imageSize int) *SimAdapter {
	return &SimAdapter{
		image:   make([]byte, imageSize),
		offsets: make(map[simKey]pdo.Offset),
		sdo:     make(map[simKey][]byte),
	}
}

func (s *SimAdapter) Request(ctx context.Context, sdoOnly bool) error { return nil }
func (s *SimAdapter) Release() error                                  { return nil }
func (s *SimAdapter) CreateDomain() error                             { return nil }

func (s *SimAdapter) ConfigureSlave(id SlaveIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slaves = append(s.slaves, &simSlave{id: id, state: StateInit, sw: cia402.SWPatternSwitchOnDisabled})
	return nil
}

func (s *SimAdapter) RegisterPdoEntries(id SlaveIdentity, entries []PdoEntryReg) ([]PdoEntryOffset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PdoEntryOffset, 0, len(entries))
	for _, e := range entries {
		off := len(s.image)
		sz := int(e.BitLength+7) / 8
		if sz == 0 {
			sz = 1
		}
		s.image = append(s.image, make([]byte, sz)...)
		o := pdo.Offset{Index: e.Index, Subindex: e.Subindex, ByteOff: off, BitLength: e.BitLength}
		s.offsets[simKey{id.Position, e.Index, e.Subindex}] = o
		out = append(out, PdoEntryOffset{PdoEntryReg: e, ByteOffset: off})

		for _, sl := range s.slaves {
			if sl.id.Position != id.Position {
				continue
			}
			if e.Index == cia402.IndexControlword {
				sl.cwOffset, sl.hasCW = o, true
			}
			if e.Index == cia402.IndexStatusword {
				sl.swOffset, sl.hasSW = o, true
			}
		}
	}
	return out, nil
}

func (s *SimAdapter) ConfigureDC(id SlaveIdentity, cfg DCConfig) error { return nil }
func (s *SimAdapter) SelectReferenceClock(id SlaveIdentity) error     { return nil }

func (s *SimAdapter) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activated = true
	for _, sl := range s.slaves {
		sl.state = StateOp
	}
	return nil
}

func (s *SimAdapter) Deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activated = false
	return nil
}

func (s *SimAdapter) SetApplicationTime(timeNs int64) {
	s.mu.Lock()
	s.appTimeNs = timeNs
	s.mu.Unlock()
}

func (s *SimAdapter) Send() error { return nil }

// Receive walks every simulated slave's statusword one step closer to
// Operation Enabled in response to the controlword most recently written
// into its image slot, mirroring the real drive's reaction to the
// cia402 state machine's output one cycle later.
func (s *SimAdapter) Receive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slaves {
		if !sl.hasCW || !sl.hasSW {
			continue
		}
		cw := pdo.ReadU16(s.image, sl.cwOffset)
		sl.sw = nextSimStatusword(sl.sw, cw)
		pdo.WriteU16(s.image, sl.swOffset, sl.sw)
	}
	return nil
}

func nextSimStatusword(sw, cw uint16) uint16 {
	if cw == cia402.CWDisableVoltage {
		return cia402.SWPatternSwitchOnDisabled
	}
	if cw == cia402.CWFaultReset {
		return cia402.SWPatternSwitchOnDisabled
	}
	switch sw & cia402.SWMaskStateSelect {
	case cia402.SWPatternSwitchOnDisabled:
		if cw == cia402.CWShutdown {
			return cia402.SWPatternReadyToSwitchOn
		}
	case cia402.SWPatternReadyToSwitchOn:
		if cw == cia402.CWSwitchOn {
			return cia402.SWPatternSwitchedOn
		}
	case cia402.SWPatternSwitchedOn:
		if cw == cia402.CWEnableOpSimplified {
			return cia402.SWPatternOperationEnabled
		}
	case cia402.SWPatternOperationEnabled:
		if cw != cia402.CWEnableOpSimplified {
			return cia402.SWPatternSwitchedOn
		}
	}
	return sw
}

func (s *SimAdapter) ProcessDomain() error { return nil }
func (s *SimAdapter) QueueDomain() error   { return nil }

func (s *SimAdapter) DomainImage() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

func (s *SimAdapter) SdoUpload(position int, index uint16, subindex uint8, maxSize int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := simKey{position, index, subindex}
	if o, ok := s.offsets[key]; ok {
		return pdo.ReadBytes(s.image, o), nil
	}
	if v, ok := s.sdo[key]; ok {
		return append([]byte(nil), v...), nil
	}
	return nil, errors.New("sim: object not registered")
}

func (s *SimAdapter) SdoDownload(position int, index uint16, subindex uint8, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := simKey{position, index, subindex}
	if o, ok := s.offsets[key]; ok {
		pdo.WriteBytes(s.image, o, data)
		return nil
	}
	s.sdo[key] = append([]byte(nil), data...)
	return nil
}

// DomainState reports the working counter as the count of slaves currently
// in Op, classified the way ecrt_domain_state's wc_state would: zero with
// no slaves contributing, complete when every configured slave is in Op,
// incomplete otherwise (e.g. mid-dropout).
func (s *SimAdapter) DomainState() (int, DomainWCState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wc := 0
	for _, sl := range s.slaves {
		if sl.state == StateOp {
			wc++
		}
	}
	switch {
	case wc == 0:
		return wc, WCZero
	case wc == len(s.slaves):
		return wc, WCComplete
	default:
		return wc, WCIncomplete
	}
}

func (s *SimAdapter) GetSlaveState(position int) ApplicationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slaves {
		if sl.id.Position == position {
			return sl.state
		}
	}
	return StateUnknown
}

// SetSlaveState forces a simulated slave's application-layer state,
// letting tests drive an OP dropout scenario (spec §8 scenario 5) without
// a real bus.
func (s *SimAdapter) SetSlaveState(position int, state ApplicationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slaves {
		if sl.id.Position == position {
			sl.state = state
			return
		}
	}
}

func (s *SimAdapter) SlaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slaves)
}
