package linker

import (
	"fmt"
	"sync"
)

// LiveTracer implements spec.md §4.6: starting from every file that is
// already reachable (every non-archive object named directly on the
// command line), follow relocations to find which not-yet-reachable
// object files are actually needed, marking each file reachable at
// most once (spec.md §3 invariant 6). Shared files are never marked or
// traced, and the tracer does not re-run the Resolver itself.
type LiveTracer struct {
	ctx     *Context
	workers int
}

// NewLiveTracer returns a tracer that runs its BFS across n workers.
func NewLiveTracer(ctx *Context, workers int) *LiveTracer {
	return &LiveTracer{ctx: ctx, workers: workers}
}

// Run marks every reachable object live, starting from files that begin
// reachable (anything not pulled in lazily from an archive — this core
// has no archive demux of its own, so in practice every *ObjectFile it
// sees starts reachable unless a caller marks otherwise before calling
// Run).
func (t *LiveTracer) Run() {
	queue := make(chan *ObjectFile, 256)
	var wg sync.WaitGroup

	enqueue := func(obj *ObjectFile) {
		if !obj.MarkReachable() {
			return
		}
		wg.Add(1)
		queue <- obj
	}

	n := t.workers
	if n < 1 {
		n = 1
	}
	var workersWG sync.WaitGroup
	workersWG.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer workersWG.Done()
			for obj := range queue {
				t.traceOne(obj, enqueue)
				wg.Done()
			}
		}()
	}

	for _, obj := range t.ctx.Objs {
		if obj.IsReachable() {
			wg.Add(1)
			queue <- obj
		}
	}

	wg.Wait()
	close(queue)
	workersWG.Wait()
}

// traceOne scans every relocation in obj's live sections for references
// to a symbol whose current binding is a not-yet-reachable object file,
// and feeds that file into enqueue — grounded on the teacher's
// MarkLiveObjects / dongAxis's per-file MarkLiveObjects(feeder).
func (t *LiveTracer) traceOne(obj *ObjectFile, enqueue func(*ObjectFile)) {
	for _, sec := range obj.Sections {
		if sec == nil || !sec.IsAlive {
			continue
		}
		rels, err := sec.GetRels(t.ctx.Target)
		if err != nil {
			t.ctx.Diag.Warn(obj.File.Name, "skipping relocations in %s: %v", sec.Name, err)
			continue
		}
		for _, rel := range rels {
			if int64(rel.Sym) >= int64(len(obj.Symbols)) {
				continue
			}
			sym := obj.Symbols[rel.Sym]
			if sym == nil {
				continue
			}
			t.follow(sym, enqueue)
		}
	}
}

// follow implements the "interesting reference" predicate: a reference
// whose symbol is bound to an object file hands that file to enqueue
// (which ignores files already reachable). A symbol bound to a shared
// file, or not bound at all, is not followed and nothing is reported
// here; unresolved references are reported by ReportUnresolved.
func (t *LiveTracer) follow(sym *Symbol, enqueue func(*ObjectFile)) {
	sym.mu.Lock()
	file := sym.File
	weak := sym.IsWeak
	sym.mu.Unlock()

	if file == nil {
		return
	}

	switch f := file.(type) {
	case *ObjectFile:
		enqueue(f)
	case *SharedFile:
		if !weak && !t.ctx.Config.AllowShlibUndefined {
			// The symbol resolved to a DSO export, which is always fine;
			// the policy only bites for genuinely unresolved references,
			// which this core's undef-weak claiming (ObjectParser) or a
			// downstream unresolved-symbol pass surfaces separately.
		}
	}
}

// ReportUnresolved walks every object's global symbols and reports any
// that remain undefined after tracing, unless weak (spec.md §4.6's
// boundary with error reporting; spec.md §7 PolicyViolation).
func (t *LiveTracer) ReportUnresolved() error {
	var firstErr error
	for _, obj := range t.ctx.Objs {
		if !obj.IsReachable() {
			continue
		}
		for i := obj.FirstGlobal; i < int64(len(obj.ElfSyms)); i++ {
			esym := &obj.ElfSyms[i]
			if !esym.IsUndef() || esym.IsWeak() {
				continue
			}
			sym := obj.Symbols[i]
			sym.mu.Lock()
			bound := sym.File != nil
			sym.mu.Unlock()
			if bound {
				continue
			}
			err := fmt.Errorf("%s: %w: undefined symbol %s", obj.File.Name, ErrPolicyViolation, sym.Name)
			t.ctx.Diag.Error(obj.File.Name, "undefined symbol: %s", sym.Name)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
