package inventory

// Move is a relocation decided during a balancing pass.
type Move struct {
	VM     *VirtualMachine
	Source *Host
	Target *Host
}

// MoveSummary is the printable form of a Move.
type MoveSummary struct {
	VM       string `json:"vm"`
	MemoryMB int64  `json:"memoryMB"`
	Source   string `json:"source"`
	Target   string `json:"target"`
}

// StagingSet holds the moves of a single pass in the order they were staged.
type StagingSet struct {
	moves  []*Move
	byName map[string]*Move
}

func NewStagingSet() *StagingSet {
	return &StagingSet{byName: map[string]*Move{}}
}

// Stage marks the vm for relocation to target and projects the move on both hosts.
// A vm already staged in this set is ignored.
func (s *StagingSet) Stage(vm *VirtualMachine, source, target *Host) (*Move, bool) {
	if _, found := s.byName[vm.Name]; found || vm.Staged {
		return nil, false
	}

	vm.Staged = true
	vm.Host = target.Ref
	source.MemoryUsedMB -= vm.MemoryAllocatedMB
	target.MemoryUsedMB += vm.MemoryAllocatedMB

	m := &Move{VM: vm, Source: source, Target: target}
	s.moves = append(s.moves, m)
	s.byName[vm.Name] = m
	return m, true
}

func (s *StagingSet) Moves() []*Move {
	return s.moves
}

func (s *StagingSet) Get(vmName string) (*Move, bool) {
	m, ok := s.byName[vmName]
	return m, ok
}

func (s *StagingSet) Len() int {
	return len(s.moves)
}

func (s *StagingSet) Empty() bool {
	return len(s.moves) == 0
}

func (s *StagingSet) Summary() []MoveSummary {
	summary := make([]MoveSummary, 0, len(s.moves))
	for _, m := range s.moves {
		summary = append(summary, MoveSummary{
			VM:       m.VM.Name,
			MemoryMB: m.VM.MemoryAllocatedMB,
			Source:   m.Source.String(),
			Target:   m.Target.String(),
		})
	}
	return summary
}
