package telemetry

import (
	"context"
	"log"
	"sync"
)

// Pool supervises the fire-and-forget simulation tasks, keyed by flight
// plan id. Keeping a cancel handle per running flight lets an authority
// cancel of an ACTIVE plan stop the in-flight simulation instead of
// letting it race the cancellation.
type Pool struct {
	sim    *Simulator
	logger *log.Logger

	mu      sync.Mutex
	running map[int]context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates an empty pool over the given simulator.
func NewPool(sim *Simulator, logger *log.Logger) *Pool {
	if logger == nil {
		logger = log.Default()
	}
	return &Pool{
		sim:     sim,
		logger:  logger,
		running: make(map[int]context.CancelFunc),
	}
}

// Launch starts the simulation for planID on its own goroutine and
// returns immediately. Returns false without launching if a simulation
// for that plan is already running; the Start precondition makes that a
// bug rather than a routine occurrence, so it is also logged.
func (p *Pool) Launch(planID int) bool {
	p.mu.Lock()
	if _, exists := p.running[planID]; exists {
		p.mu.Unlock()
		p.logger.Printf("Simulation for flight %d already running, refusing duplicate launch", planID)
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.running[planID] = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.running, planID)
			p.mu.Unlock()
			cancel()
		}()
		p.sim.Run(ctx, planID)
	}()
	return true
}

// Cancel stops the running simulation for planID, if any. Returns
// whether a simulation was found.
func (p *Pool) Cancel(planID int) bool {
	p.mu.Lock()
	cancel, ok := p.running[planID]
	p.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// ActiveCount returns how many simulations are currently running.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}

// Shutdown cancels every running simulation and waits for the tasks to
// exit. Called during server shutdown.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	for _, cancel := range p.running {
		cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()
}
