package graph

// DropNodeKeepingEdges returns a copy of s without node id but with every
// edge that touches it, a state the Graph API never produces.
func DropNodeKeepingEdges(s *Snapshot, id string) *Snapshot {
	c := s.clone()
	delete(c.nodes, id)
	return &Snapshot{state: c}
}
