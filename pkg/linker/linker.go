package linker

import "runtime"

// Result is everything a caller gets back from Run: the resolved
// context (for cmd/rvld-inspect to walk interactively) plus the derived
// eh_frame and symtab artifacts spec.md scopes this core to produce.
type Result struct {
	Ctx    *Context
	Cies   []*CieRecord
	Fdes   []*FdeRecord
	Symtab []EmittedSymbol
	Strtab []byte
}

// Run executes the full ingestion and resolution pipeline spec.md §2
// describes, in the order its component table implies: parse every
// input (already done by the time ctx.Objs/ctx.Shared are populated),
// resolve symbols, trace liveness (which may change resolution, so
// Resolve runs again), rewrite mergeable-section bindings, then derive
// eh_frame records and the final symbol table. It does not apply
// relocations or assign output-section addresses — those stages are
// out of scope (spec.md §1).
func Run(ctx *Context) (*Result, error) {
	workers := runtime.GOMAXPROCS(0)

	resolver := NewResolver(ctx, workers)
	resolver.ResolveAll()

	tracer := NewLiveTracer(ctx, workers)
	tracer.Run()

	// A file that became reachable during tracing may now outrank a
	// weak/common binding that won only because nothing stronger was
	// known to be reachable yet; re-resolve with up-to-date reachability.
	resolver.ResolveAll()

	if err := tracer.ReportUnresolved(); err != nil && !ctx.Config.Relocatable {
		return nil, err
	}

	NewMergeRewriter(ctx).RewriteAll()

	cies, fdes, err := NewEhFrameParser(ctx).ParseAll()
	if err != nil {
		return nil, err
	}

	emitter := NewSymtabEmitter(ctx)
	symtab, strtab := emitter.Emit()

	return &Result{Ctx: ctx, Cies: cies, Fdes: fdes, Symtab: symtab, Strtab: strtab}, nil
}
