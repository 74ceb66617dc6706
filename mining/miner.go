package mining

import (
	"strings"
	"sync"
	"time"

	bc "anchorledger/blockchain"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// taskBacklog bounds how many submitted jobs may wait for a free worker
// before Submit blocks.
const taskBacklog = 16

// Result describes a successful proof-of-work search.
type Result struct {
	// Hash satisfying the difficulty, hex encoded.
	Hash string
	// Nonce producing the hash.
	Nonce int64
	// Attempts is the number of hashes computed, including the final one.
	Attempts int64
	// Elapsed is the wall time the search took.
	Elapsed time.Duration
}

// Solve searches a nonce for the block so that its hash carries the
// difficulty prefix, starting from the block's current nonce. The found
// nonce and hash are written back into the block. The search is unbounded:
// it returns once a solution is found or hashing fails. A prefix longer
// than the digest itself can never match, so that is an error, not a
// search.
func Solve(block *bc.Block, difficulty int) (*Result, error) {
	if difficulty > bc.MaxDifficulty {
		return nil, xerrors.Errorf("difficulty %d exceeds the %d hex characters of a block hash",
			difficulty, bc.MaxDifficulty)
	}
	prefix := bc.DifficultyPrefix(difficulty)
	start := time.Now()
	var attempts int64
	for nonce := block.Nonce; ; nonce++ {
		block.Nonce = nonce
		hash, err := block.CalculateHash()
		if err != nil {
			return nil, xerrors.Errorf("mining block %d: %v", block.Index, err)
		}
		attempts++
		if strings.HasPrefix(hash, prefix) {
			block.Hash = hash
			return &Result{
				Hash:     hash,
				Nonce:    nonce,
				Attempts: attempts,
				Elapsed:  time.Since(start),
			}, nil
		}
	}
}

// Outcome is what a submitted mining job resolves to.
type Outcome struct {
	Result *Result
	Err    error
}

type task struct {
	block      *bc.Block
	difficulty int
	done       chan<- Outcome
}

// Pool runs mining jobs on a fixed set of worker goroutines, keeping the
// proof-of-work search off the goroutines that accepted the request.
type Pool struct {
	sync.Mutex
	started bool
	workers int
	tasks   chan *task
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewPool creates a pool with the given number of workers. Values below one
// fall back to a single worker.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		tasks:   make(chan *task, taskBacklog),
	}
}

// Start launches the workers. Starting a running pool is a no-op.
func (p *Pool) Start() {
	p.Lock()
	defer p.Unlock()

	if p.started {
		return
	}
	p.quit = make(chan struct{})
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.started = true
	log.Lvl2("mining pool started with", p.workers, "worker(s)")
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case t := <-p.tasks:
			res, err := Solve(t.block, t.difficulty)
			t.done <- Outcome{Result: res, Err: err}
		}
	}
}

// Submit queues a mining job and returns the channel its outcome arrives
// on. The block is solved in place by a pool worker. An in-flight search
// always runs to completion, there is no cancellation.
func (p *Pool) Submit(block *bc.Block, difficulty int) <-chan Outcome {
	done := make(chan Outcome, 1)
	p.Lock()
	started := p.started
	p.Unlock()
	if !started {
		done <- Outcome{Err: xerrors.New("mining pool is stopped")}
		return done
	}
	p.tasks <- &task{block: block, difficulty: difficulty, done: done}
	return done
}

// Mine submits the block and waits for its outcome, so the caller keeps
// blocking append semantics while the search itself runs on a pool worker.
// It satisfies the chain's Miner interface.
func (p *Pool) Mine(block *bc.Block, difficulty int) error {
	out := <-p.Submit(block, difficulty)
	if out.Err != nil {
		return out.Err
	}
	log.Lvlf3("block %d solved: nonce=%d attempts=%d elapsed=%s",
		block.Index, out.Result.Nonce, out.Result.Attempts, out.Result.Elapsed)
	return nil
}

// Stop shuts the workers down and waits for them. A worker that is
// mid-search finishes its current block first, so its future still
// resolves. Stop must only be called once no more jobs get submitted.
func (p *Pool) Stop() {
	p.Lock()
	defer p.Unlock()

	if !p.started {
		return
	}
	close(p.quit)
	p.wg.Wait()
	p.started = false
	log.Lvl2("mining pool stopped")
}
