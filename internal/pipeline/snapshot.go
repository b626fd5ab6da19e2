package pipeline

// Snapshot is a point-in-time summary of pipeline activity, broadcast
// to subscribers (a CLI progress bar, a future status command) the way
// the teacher streams retrieval progress back to its caller.
type Snapshot struct {
	Processed int
	Queued    int
	ForReview int
}

// Subscribe returns a channel that receives a Snapshot after every
// state-changing operation. The channel is buffered; a slow consumer
// misses intermediate snapshots rather than blocking the pipeline.
func (p *Pipeline) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 16)
	p.mu.Lock()
	p.listeners = append(p.listeners, ch)
	p.mu.Unlock()
	return ch
}

// Snapshot returns the current counters without subscribing.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

func (p *Pipeline) bumpProcessed() { p.bump(func(s *Snapshot) { s.Processed++ }) }
func (p *Pipeline) bumpQueued()    { p.bump(func(s *Snapshot) { s.Queued++ }) }
func (p *Pipeline) bumpReview()    { p.bump(func(s *Snapshot) { s.ForReview++ }) }

func (p *Pipeline) bump(mutate func(*Snapshot)) {
	p.mu.Lock()
	mutate(&p.snapshot)
	snap := p.snapshot
	listeners := append([]chan Snapshot(nil), p.listeners...)
	p.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- snap:
		default:
		}
	}
}
