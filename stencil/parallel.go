package stencil

import (
	"sync"
)

// parallelThreshold is the minimum number of interior rows to use the pool.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// band is a contiguous range of interior rows [y0, y1) for one worker.
// Bands write disjoint rows of d and only read s.
type band struct {
	d, s   []float32
	w      int
	y0, y1 int
}

// bandPool runs interior rows on persistent worker goroutines.
type bandPool struct {
	numWorkers int
	rowFn      rowFunc

	workChan chan band     // sends work to workers
	doneChan chan struct{} // workers signal completion
	stopChan chan struct{} // signals workers to exit
	wg       sync.WaitGroup
	running  bool
}

func newBandPool(numWorkers int, rowFn rowFunc) *bandPool {
	return &bandPool{
		numWorkers: numWorkers,
		rowFn:      rowFn,
	}
}

// start launches the workers on first use.
func (p *bandPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan band, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *bandPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *bandPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case b, ok := <-p.workChan:
			if !ok {
				return
			}
			for y := b.y0; y < b.y1; y++ {
				p.rowFn(b.d, b.s, b.w, y)
			}
			p.doneChan <- struct{}{}
		}
	}
}

// run computes rows [y0, y1) and returns once every band is done.
func (p *bandPool) run(d, s []float32, w, y0, y1 int) {
	p.start()

	rows := y1 - y0
	chunk := (rows + p.numWorkers - 1) / p.numWorkers

	sent := 0
	for start := y0; start < y1; start += chunk {
		end := min(start+chunk, y1)
		p.workChan <- band{d: d, s: s, w: w, y0: start, y1: end}
		sent++
	}

	for i := 0; i < sent; i++ {
		<-p.doneChan
	}
}
