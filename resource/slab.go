package resource

type slot struct {
	res  Resource
	live bool
}

// slab stores resources by ID with free-list reuse. ID n lives at index
// n-1 so the zero ID never resolves. Callers hold the table lock.
type slab struct {
	slots []slot
	free  []ID
	live  int
}

func newSlab() slab {
	return slab{
		slots: make([]slot, 0, 64),
		free:  make([]ID, 0, 16),
	}
}

func (s *slab) insert(r Resource) ID {
	s.live++
	if n := len(s.free); n > 0 {
		id := s.free[n-1]
		s.free = s.free[:n-1]
		s.slots[id-1] = slot{res: r, live: true}
		return id
	}
	s.slots = append(s.slots, slot{res: r, live: true})
	return ID(len(s.slots))
}

func (s *slab) get(id ID) (Resource, bool) {
	if id == 0 || int(id) > len(s.slots) {
		return nil, false
	}
	sl := s.slots[id-1]
	if !sl.live {
		return nil, false
	}
	return sl.res, true
}

func (s *slab) remove(id ID) (Resource, bool) {
	r, ok := s.get(id)
	if !ok {
		return nil, false
	}
	s.slots[id-1] = slot{}
	s.free = append(s.free, id)
	s.live--
	return r, true
}

func (s *slab) each(fn func(ID, Resource) bool) {
	for i, sl := range s.slots {
		if sl.live && !fn(ID(i+1), sl.res) {
			return
		}
	}
}
