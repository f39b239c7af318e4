// Package engine implements the phase-1 simulation: a Metropolis Monte
// Carlo estimate of energy and magnetization of a periodic spin chain.
// The run is sharded into independent replicas whose estimates are
// averaged; a fixed seed and shard count make the result reproducible.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/simforge/simforge/internal/control"
	"github.com/simforge/simforge/internal/model"
	"github.com/simforge/simforge/internal/token"
	"github.com/simforge/simforge/pkg/schema"
)

// pollBatch is how many sweeps a shard runs between cancellation polls and
// progress ticks.
const pollBatch = 64

// seedStride separates shard seeds; any large odd prime does.
const seedStride = 1_000_003

type Phase1 struct {
	shards int
	batch  int
}

var _ control.Engine = (*Phase1)(nil)

// NewPhase1 builds the engine. shards <= 0 picks one shard per CPU,
// capped at 8.
func NewPhase1(shards int) *Phase1 {
	if shards <= 0 {
		shards = min(runtime.NumCPU(), 8)
	}
	return &Phase1{shards: shards, batch: pollBatch}
}

type shardStats struct {
	energySum float64
	magSum    float64
	samples   int64
	accepted  int64
	attempts  int64
}

// Run executes equilibration plus sampling sweeps on every shard. It
// checks the token between batches and returns model.ErrEngineCancelled
// after acknowledging it. Progress is reported from a single goroutine so
// the sink sees sweeps in completion order.
func (e *Phase1) Run(ctx context.Context, params schema.SimulationParams, tok *token.Token, progress control.ProgressFunc) (schema.SimulationResult, error) {
	if params.Particles < 2 {
		return schema.SimulationResult{}, fmt.Errorf("particles must be at least 2, got %d", params.Particles)
	}
	if params.Sweeps < 1 {
		return schema.SimulationResult{}, fmt.Errorf("sweeps must be at least 1, got %d", params.Sweeps)
	}
	if params.Temperature <= 0 {
		return schema.SimulationResult{}, fmt.Errorf("temperature must be positive, got %g", params.Temperature)
	}

	start := time.Now()
	equil := max(params.Sweeps/5, 1)
	perShard := equil + params.Sweeps
	total := e.shards * perShard
	equilTotal := e.shards * equil

	stats := make([]shardStats, e.shards)
	ticks := make(chan int, e.shards)

	emitterDone := make(chan struct{})
	go func() {
		defer close(emitterDone)
		done := 0
		for n := range ticks {
			done += n
			phase := "sample"
			if done <= equilTotal {
				phase = "equilibrate"
			}
			percent := 95 * float64(done) / float64(total)
			progress(phase, percent, fmt.Sprintf("%d/%d sweeps", done, total))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := range e.shards {
		g.Go(func() error {
			st, err := e.runShard(gctx, i, params, equil, tok, ticks)
			if err != nil {
				return err
			}
			stats[i] = st
			return nil
		})
	}
	err := g.Wait()
	close(ticks)
	<-emitterDone

	if err != nil {
		if errors.Is(err, model.ErrEngineCancelled) {
			tok.Acknowledge()
			return schema.SimulationResult{}, model.ErrEngineCancelled
		}
		return schema.SimulationResult{}, err
	}

	result := reduce(stats, params.Sweeps, e.shards)
	result.ElapsedMS = time.Since(start).Milliseconds()
	progress("reduce", 100, fmt.Sprintf("merged %d shard estimates", e.shards))
	return result, nil
}

func (e *Phase1) runShard(ctx context.Context, shard int, params schema.SimulationParams, equil int, tok *token.Token, ticks chan<- int) (shardStats, error) {
	rng := rand.New(rand.NewSource(params.Seed + int64(shard)*seedStride))
	spins := make([]int8, params.Particles)
	for i := range spins {
		if rng.Intn(2) == 0 {
			spins[i] = 1
		} else {
			spins[i] = -1
		}
	}

	var st shardStats
	sweeps := equil + params.Sweeps
	sites := float64(len(spins))
	for done := 0; done < sweeps; {
		if tok.Requested() {
			return shardStats{}, model.ErrEngineCancelled
		}
		if err := ctx.Err(); err != nil {
			return shardStats{}, err
		}

		n := min(e.batch, sweeps-done)
		for k := range n {
			accepted := sweep(rng, spins, params.Coupling, params.Temperature)
			st.attempts += int64(len(spins))
			st.accepted += int64(accepted)
			if done+k >= equil {
				st.energySum += chainEnergy(spins, params.Coupling) / sites
				st.magSum += math.Abs(magnetization(spins)) / sites
				st.samples++
			}
		}
		done += n
		ticks <- n
	}
	return st, nil
}

// sweep attempts one Metropolis flip per site and returns the number of
// accepted flips.
func sweep(rng *rand.Rand, spins []int8, coupling, temperature float64) int {
	n := len(spins)
	beta := 1 / temperature
	accepted := 0
	for range n {
		i := rng.Intn(n)
		left := spins[(i+n-1)%n]
		right := spins[(i+1)%n]
		dE := 2 * coupling * float64(spins[i]) * float64(left+right)
		if dE <= 0 || rng.Float64() < math.Exp(-dE*beta) {
			spins[i] = -spins[i]
			accepted++
		}
	}
	return accepted
}

func chainEnergy(spins []int8, coupling float64) float64 {
	n := len(spins)
	var e float64
	for i := range n {
		e -= coupling * float64(spins[i]) * float64(spins[(i+1)%n])
	}
	return e
}

func magnetization(spins []int8) float64 {
	var m float64
	for _, s := range spins {
		m += float64(s)
	}
	return m
}

func reduce(stats []shardStats, sweeps, shards int) schema.SimulationResult {
	var energy, mag float64
	var accepted, attempts int64
	for _, st := range stats {
		if st.samples > 0 {
			energy += st.energySum / float64(st.samples)
			mag += st.magSum / float64(st.samples)
		}
		accepted += st.accepted
		attempts += st.attempts
	}
	result := schema.SimulationResult{
		MeanEnergy:    energy / float64(len(stats)),
		Magnetization: mag / float64(len(stats)),
		Sweeps:        sweeps,
		Shards:        shards,
	}
	if attempts > 0 {
		result.AcceptanceRate = float64(accepted) / float64(attempts)
	}
	return result
}
