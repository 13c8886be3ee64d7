package useragent

import (
	"math/rand/v2"
	"sync"
)

// Pool hands out browser identity strings, a fresh random choice per call.
type Pool interface {
	Random() string
	Len() int
}

type pool struct {
	agents []string
	mutex  sync.Mutex
	rnd    *rand.Rand
}

// NewPool builds a pool over agents, falling back to DefaultAgents when empty.
func NewPool(agents []string) Pool {
	if len(agents) == 0 {
		agents = DefaultAgents()
	}

	return &pool{
		agents: append([]string(nil), agents...),
		rnd:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (p *pool) Random() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.agents[p.rnd.IntN(len(p.agents))]
}

func (p *pool) Len() int {
	return len(p.agents)
}

func DefaultAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	}
}
