package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	c "kslab/internal"
	"kslab/internal/backend"
	"kslab/internal/kmem"
	"kslab/internal/mtype"
	"kslab/internal/util"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"
)

var (
	runCores		int
	runOps			int
	runMaxSize		uint
	runZoneSize		uint
	runThresh		int
	runSeed			uint64
	runRemote		float64
	runHeap			bool
	runBind			bool
	runCapacity		uint
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().IntVar(&runCores, "cores", runtime.NumCPU(), "Number of cores, one goroutine each")
	cmd.Flags().IntVar(&runOps, "ops", 100000, "Operations per core")
	cmd.Flags().UintVar(&runMaxSize, "max-size", 4096, "Largest regular request; every 64th request goes up to 16x this")
	cmd.Flags().UintVar(&runZoneSize, "zone-size", 0, "Zone size in bytes (default 128KiB)")
	cmd.Flags().IntVar(&runThresh, "rels-thresh", 0, "Empty zones cached per core before release (default 32)")
	cmd.Flags().Uint64Var(&runSeed, "seed", 0, "Workload seed")
	cmd.Flags().Float64Var(&runRemote, "remote", 0.25, "Fraction of frees handed to another core")
	cmd.Flags().BoolVar(&runHeap, "heap", false, "Back the allocator with Go heap memory instead of mmap")
	cmd.Flags().BoolVar(&runBind, "bind", false, "Pin each core's goroutine to a CPU")
	cmd.Flags().UintVar(&runCapacity, "capacity", 0, "Cap backend memory in bytes, 0 for none")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:	"run",
		Short:	"Drive the allocator with a synthetic workload",
		Long: `The run command starts one goroutine per core, each allocating and freeing
random sizes under a few accounting types. Part of the frees are handed to a
neighbouring core, so they travel back to the owner as messages. Afterwards
it prints per-core allocator statistics and per-type usage.

Example:
  kslab run --cores 4 --ops 200000
  kslab run --cores 8 --remote 0.5 --max-size 16384 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkload()
		},
	}
}

type runReport struct {
	Cores		int				`json:"cores"`
	Ops			int				`json:"ops_per_core"`
	Elapsed		time.Duration	`json:"elapsed_ns"`
	Failed		int64			`json:"failed_allocs"`
	Stats		[]kmem.Stats	`json:"stats"`
	Types		[]typeReport	`json:"types"`
}

type typeReport struct {
	Name	string			`json:"name"`
	Desc	string			`json:"desc"`
	Limit	int64			`json:"limit"`
	Usage	mtype.Usage		`json:"usage"`
}

type live struct {
	p	kmem.Ptr
	typ	*mtype.Type
}

func runWorkload() error {
	if runCores <= 0 {
		return fmt.Errorf("--cores must be positive, got %d", runCores)
	}
	if runMaxSize == 0 {
		return fmt.Errorf("--max-size must be positive")
	}
	if runRemote < 0 || runRemote > 1 {
		return fmt.Errorf("--remote must be in [0, 1], got %v", runRemote)
	}
	zoneSize, err := zoneSizeFlag(runZoneSize)
	if err != nil {
		return err
	}

	var be kmem.Backend
	if runHeap {
		be = backend.CreateHeap()
	} else {
		be = backend.Default()
	}
	if runCapacity > 0 {
		be = backend.CreateLimited(be, uintptr(runCapacity), 0, 0)
	}

	a := kmem.New(kmem.Config{
		Cores:			runCores,
		ZoneSize:		zoneSize,
		ZoneRelsThresh:	runThresh,
		Backend:		be,
	})
	types := []*mtype.Type{
		mtype.New("buf", "I/O buffers"),
		mtype.New("str", "strings"),
		mtype.New("node", "tree nodes"),
	}

	// one slot per core for handed over allocations; sends never block
	handoff := make([]chan live, runCores)
	for i := range handoff {
		handoff[i] = make(chan live, 1024)
	}

	failed := make([]int64, runCores)
	start := time.Now()

	var wg sync.WaitGroup
	for id := range runCores {
		wg.Add(1)
		go func() {
			defer wg.Done()
			failed[id] = runCore(a, id, types, handoff)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	// Workers are gone, so this goroutine may drive any core now.
	for id := range runCores {
		cpu := a.Core(id)
		for len(handoff[id]) > 0 {
			l := <-handoff[id]
			a.Free(cpu, l.p, l.typ)
		}
	}
	for id := range runCores {
		a.Reclaim(a.Core(id))
	}

	report := runReport{
		Cores:		runCores,
		Ops:		runOps,
		Elapsed:	elapsed,
	}
	for _, n := range failed {
		report.Failed += n
	}
	for id := range runCores {
		report.Stats = append(report.Stats, a.Stats(id))
	}
	for _, typ := range a.Types().Types() {
		report.Types = append(report.Types, typeReport{
			Name:	typ.Name,
			Desc:	typ.Desc,
			Limit:	a.Types().Limit(typ),
			Usage:	typ.Usage(),
		})
	}

	if err := a.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if jsonOut {
		return printJSON(report)
	}
	printReport(report)
	return nil
}

// runCore is one core's workload. It owns core id for its whole life and
// frees everything it still holds before returning.
func runCore(a *kmem.Allocator, id int, types []*mtype.Type, handoff []chan live) int64 {
	cpu := a.Core(id)
	if runBind {
		cpu.Bind()
		defer cpu.Unbind()
	}

	// spread the one user seed over every core's ChaCha key
	var seed [32]byte
	x := runSeed ^ uint64(id)<<32
	for i := 0; i < len(seed); i += 8 {
		x = util.Hash(x + uint64(i))
		c.Bin.PutUint64(seed[i:], x)
	}
	faker := gofakeit.NewFaker(rand.NewChaCha8(seed), true)
	log := slog.With("core", id)

	var held []live
	var failed int64
	for op := range runOps {
		// drain what neighbours handed us
		for drained := false; !drained; {
			select {
			case l := <-handoff[id]:
				a.Free(cpu, l.p, l.typ)
			default:
				drained = true
			}
		}

		if len(held) > 0 && (faker.Bool() || len(held) > 4096) {
			i := faker.IntRange(0, len(held)-1)
			l := held[i]
			held[i] = held[len(held)-1]
			held = held[:len(held)-1]

			if runCores > 1 && faker.Float64() < runRemote {
				target := (id + faker.IntRange(1, runCores-1)) % runCores
				select {
				case handoff[target] <- l:
					continue
				default:
				}
			}
			a.Free(cpu, l.p, l.typ)
			continue
		}

		typ := types[faker.IntRange(0, len(types)-1)]
		var p kmem.Ptr
		var err error
		switch {
		case typ.Name == "str":
			p, err = a.Strdup(cpu, faker.DomainName(), typ, kmem.NullOK)
		case op%64 == 0:
			p, err = a.Alloc(cpu, uintptr(faker.IntRange(1, 16*int(runMaxSize))), typ, kmem.NullOK)
		default:
			p, err = a.Alloc(cpu, uintptr(faker.IntRange(1, int(runMaxSize))), typ, kmem.NullOK|kmem.Zero)
		}
		if err != nil {
			failed++
			log.Debug("alloc failed", "type", typ.Name, "err", err)
			continue
		}
		held = append(held, live{ p: p, typ: typ })
	}

	for _, l := range held {
		a.Free(cpu, l.p, l.typ)
	}
	return failed
}

func printReport(r runReport) {
	printInfo("%d cores x %d ops in %v (%d failed allocations)\n\n",
		r.Cores, r.Ops, r.Elapsed.Round(time.Millisecond), r.Failed)

	printInfo("%4s %6s %6s %8s %8s %8s %8s %8s %8s %8s %8s\n",
		"CORE", "ZONES", "CACHED", "CREATED", "RECYCLED", "RELEASED",
		"OV", "OV-DEFER", "R-SENT", "R-FREED", "INBOX")
	for _, s := range r.Stats {
		printInfo("%4d %6d %6d %8d %8d %8d %8d %8d %8d %8d %8d\n",
			s.Core, s.Zones, s.ZonesCached, s.ZonesCreated, s.ZonesRecycled, s.ZonesReleased,
			s.OvAllocs, s.OvDeferred, s.RemoteSent, s.RemoteFreed, s.Inbox.Received)
	}

	printInfo("\n%-6s %-12s %12s %10s %12s %10s\n", "TYPE", "DESC", "LIMIT", "INUSE", "MEMUSE", "CALLS")
	for _, t := range r.Types {
		printInfo("%-6s %-12s %12d %10d %12d %10d\n",
			t.Name, t.Desc, t.Limit, t.Usage.InUse, t.Usage.MemUse, t.Usage.Calls)
	}
}
