package linker

// Resolver implements spec.md §4.5: for every global symbol name, the
// surviving definition is the candidate with the lowest rank, where
// rank = (class<<24) | file.priority, lower wins, and a file not yet
// known to be reachable ranks in a weaker class than the same symbol
// from a reachable file (the "lazy" archive-member discount: strong
// 1 -> 3, weak 2 -> 4, common 5 -> 6).
// Concurrent candidates for the same name serialize on that *Symbol's
// own mutex rather than a single global lock (spec.md §9).
type Resolver struct {
	ctx     *Context
	workers int
}

// NewResolver returns a resolver that fans work out across n workers.
func NewResolver(ctx *Context, workers int) *Resolver {
	return &Resolver{ctx: ctx, workers: workers}
}

// ResolveAll runs one resolution pass over every object and shared
// file's global symbols. Run calls this again after LiveTracer has
// marked files reachable, so candidates from newly-reachable files are
// re-considered (spec.md §4.6).
func (r *Resolver) ResolveAll() {
	runParallel(r.workers, r.ctx.Objs, r.resolveObject)
	runParallel(r.workers, r.ctx.Shared, r.resolveShared)
}

func (r *Resolver) resolveObject(obj *ObjectFile) {
	for i := obj.FirstGlobal; i < int64(len(obj.ElfSyms)); i++ {
		esym := &obj.ElfSyms[i]
		if esym.IsUndef() {
			continue
		}
		sym := obj.Symbols[i]
		r.tryBind(sym, obj, esym, int64(i))
	}
}

func (r *Resolver) resolveShared(sf *SharedFile) {
	for _, sym := range sf.Symbols {
		r.tryBindShared(sym, sf)
	}
}

// tryBind is the object-file half of GetRank(o, esym, !o.IsAlive) <
// sym.GetRank() from dongAxis's ResolveSymbols: candidate wins iff its
// rank is strictly lower than the incumbent's.
func (r *Resolver) tryBind(sym *Symbol, obj *ObjectFile, esym *Sym, symIdx int64) {
	isLazy := !obj.IsReachable()
	candidateRank := GetRank(obj, false, esym.IsWeak(), esym.IsCommon(), isLazy)

	sym.mu.Lock()
	defer sym.mu.Unlock()

	if sym.File != nil {
		currentRank := GetRank(sym.File, false, sym.IsWeak, isCurrentCommon(sym), !sym.File.IsReachable())
		if candidateRank >= currentRank {
			r.mergeVisibility(sym, visibilityFromByte(esym.Visibility()))
			return
		}
	}

	sym.File = obj
	sym.SymIdx = symIdx
	sym.Value = esym.Val
	sym.IsWeak = esym.IsWeak()
	if esym.IsCommon() {
		sym.InputSection = nil
		sym.SectionFragment = nil
	} else if int64(esym.Shndx) < int64(len(obj.Sections)) && obj.Sections[esym.Shndx] != nil {
		sym.SetInputSection(obj.Sections[esym.Shndx])
	}
	r.mergeVisibility(sym, visibilityFromByte(esym.Visibility()))
}

func isCurrentCommon(sym *Symbol) bool {
	return sym.InputSection == nil && sym.SectionFragment == nil && sym.Value != 0
}

func (r *Resolver) tryBindShared(sym *Symbol, sf *SharedFile) {
	sym.mu.Lock()
	defer sym.mu.Unlock()
	if sym.File != nil {
		// Anything already bound to an object file outranks a DSO
		// definition outright; a DSO only fills in symbols that remain
		// undefined after every relocatable object has been considered
		// (spec.md §4.5's resolution order runs objects before shared
		// files).
		return
	}
	sym.File = sf
	sym.IsImported = true
}

// mergeVisibility implements dongAxis's MergeVisibility: STV_INTERNAL is
// already canonicalized to hidden at materialization time, and a
// tighter visibility (hidden/protected) from any contributing file
// permanently tightens the merged symbol — it is never loosened back to
// default by a later, looser-visibility candidate (spec.md §4.5).
func (r *Resolver) mergeVisibility(sym *Symbol, candidate Visibility) {
	if candidate == VisibilityHidden {
		sym.Visibility = VisibilityHidden
		return
	}
	if candidate == VisibilityProtected && sym.Visibility == VisibilityDefault {
		sym.Visibility = VisibilityProtected
	}
}
