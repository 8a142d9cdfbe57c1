package facts

import (
	"sort"

	"github.com/evmtac/decompiler/internal/cfg"
	"github.com/evmtac/decompiler/internal/disasm"
)

// EVMExportOptions configures ExportEVM.
type EVMExportOptions struct {
	Dominators bool

	// OutOpcodes restricts the per-opcode `.facts` family (spec.md §6
	// `--out-opcodes LIST`) to the named mnemonics. Empty means "emit every
	// mnemonic actually present", the default.
	OutOpcodes []string
}

// ExportEVM writes the instruction-level relation family of spec.md §4.9
// (op.facts, edge.facts, block.facts, start/end.facts, per-opcode facts,
// Statement_Next/Statement_Opcode.facts) from the raw op stream and its
// resolved CFG. Called once per decompilation alongside ExportTAC.
func ExportEVM(w *Writer, ops []disasm.EVMOp, c *cfg.CFG, opts EVMExportOptions) error {
	if err := exportOps(w, ops); err != nil {
		return err
	}
	if err := exportEdges(w, ops, c); err != nil {
		return err
	}
	if err := exportBlocks(w, ops, c); err != nil {
		return err
	}
	if err := exportStartEnd(w, c); err != nil {
		return err
	}
	if err := exportPerOpcode(w, ops, opts.OutOpcodes); err != nil {
		return err
	}
	if err := exportStatements(w, ops); err != nil {
		return err
	}
	if opts.Dominators {
		if err := exportDominance(w, c); err != nil {
			return err
		}
	}
	return nil
}

func exportOps(w *Writer, ops []disasm.EVMOp) error {
	rows := make([]row, 0, len(ops))
	for _, op := range ops {
		rows = append(rows, row{hexPC(op.PC), op.Op.Mnemonic})
	}
	sortRows(rows)
	return w.writeRelation("op", rows)
}

// exportEdges emits both intra-block (consecutive op) and inter-block
// (resolved CFG successor) edges, per spec.md §4.9.
func exportEdges(w *Writer, ops []disasm.EVMOp, c *cfg.CFG) error {
	var rows []row
	for i := 1; i < len(ops); i++ {
		rows = append(rows, row{hexPC(ops[i-1].PC), hexPC(ops[i].PC)})
	}
	for _, b := range c.Blocks {
		if len(b.Ops) == 0 {
			continue
		}
		lastPC := b.LastOp().PC
		for _, succID := range b.Succs {
			succ, ok := c.Blocks[succID]
			if !ok || len(succ.Ops) == 0 {
				continue
			}
			rows = append(rows, row{hexPC(lastPC), hexPC(succ.EntryPC())})
		}
	}
	sortRows(rows)
	return w.writeRelation("edge", rows)
}

func exportBlocks(w *Writer, ops []disasm.EVMOp, c *cfg.CFG) error {
	var rows []row
	for _, b := range c.Blocks {
		entry := hexPC(b.EntryPC())
		for _, op := range b.Ops {
			rows = append(rows, row{hexPC(op.PC), entry})
		}
	}
	sortRows(rows)
	return w.writeRelation("block", rows)
}

func exportStartEnd(w *Writer, c *cfg.CFG) error {
	var start []row
	if entry, ok := c.Blocks[c.Entry]; ok && len(entry.Ops) > 0 {
		start = append(start, row{hexPC(entry.EntryPC())})
	}
	if err := w.writeRelation("start", start); err != nil {
		return err
	}

	var end []row
	for _, b := range c.Blocks {
		if len(b.Ops) == 0 {
			continue
		}
		if len(b.Succs) == 0 {
			end = append(end, row{hexPC(b.LastOp().PC)})
		}
	}
	sortRows(end)
	return w.writeRelation("end", end)
}

func exportPerOpcode(w *Writer, ops []disasm.EVMOp, outOpcodes []string) error {
	var allow map[string]bool
	if len(outOpcodes) > 0 {
		allow = make(map[string]bool, len(outOpcodes))
		for _, m := range outOpcodes {
			allow[m] = true
		}
	}

	byMnemonic := make(map[string][]row)
	for _, op := range ops {
		if allow != nil && !allow[op.Op.Mnemonic] {
			continue
		}
		if op.Op.IsPush {
			byMnemonic[op.Op.Mnemonic] = append(byMnemonic[op.Op.Mnemonic], row{hexPC(op.PC), op.Immediate.Hex()})
		} else {
			byMnemonic[op.Op.Mnemonic] = append(byMnemonic[op.Op.Mnemonic], row{hexPC(op.PC)})
		}
	}
	mnemonics := make([]string, 0, len(byMnemonic))
	for m := range byMnemonic {
		mnemonics = append(mnemonics, m)
	}
	sort.Strings(mnemonics)
	for _, m := range mnemonics {
		rows := byMnemonic[m]
		sortRows(rows)
		if err := w.writeRelation(m, rows); err != nil {
			return err
		}
	}
	return nil
}

func exportStatements(w *Writer, ops []disasm.EVMOp) error {
	sorted := append([]disasm.EVMOp(nil), ops...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PC < sorted[j].PC })

	var next []row
	for i := 1; i < len(sorted); i++ {
		next = append(next, row{hexPC(sorted[i-1].PC), hexPC(sorted[i].PC)})
	}
	if err := w.writeRelation("Statement_Next", next); err != nil {
		return err
	}

	opcodeRows := make([]row, 0, len(sorted))
	for _, op := range sorted {
		opcodeRows = append(opcodeRows, row{hexPC(op.PC), op.Op.Mnemonic})
	}
	return w.writeRelation("Statement_Opcode", opcodeRows)
}

func exportDominance(w *Writer, c *cfg.CFG) error {
	d := cfg.ComputeDominance(c)

	var dom, imdom, pdom, impdom []row
	for n, doms := range d.Dom {
		nb, ok := c.Blocks[n]
		if !ok || len(nb.Ops) == 0 {
			continue
		}
		for _, other := range doms.ToSlice() {
			if ob, ok := c.Blocks[other]; ok && len(ob.Ops) > 0 {
				dom = append(dom, row{hexPC(nb.EntryPC()), hexPC(ob.EntryPC())})
			}
		}
	}
	for n, d1 := range d.IDom {
		nb, ok := c.Blocks[n]
		db, ok2 := c.Blocks[d1]
		if ok && ok2 && len(nb.Ops) > 0 && len(db.Ops) > 0 {
			imdom = append(imdom, row{hexPC(nb.EntryPC()), hexPC(db.EntryPC())})
		}
	}
	for n, doms := range d.PDom {
		nb, ok := c.Blocks[n]
		if !ok || len(nb.Ops) == 0 {
			continue
		}
		for _, other := range doms.ToSlice() {
			if ob, ok := c.Blocks[other]; ok && len(ob.Ops) > 0 {
				pdom = append(pdom, row{hexPC(nb.EntryPC()), hexPC(ob.EntryPC())})
			}
		}
	}
	for n, d1 := range d.IPDom {
		nb, ok := c.Blocks[n]
		db, ok2 := c.Blocks[d1]
		if ok && ok2 && len(nb.Ops) > 0 && len(db.Ops) > 0 {
			impdom = append(impdom, row{hexPC(nb.EntryPC()), hexPC(db.EntryPC())})
		}
	}

	sortRows(dom)
	sortRows(imdom)
	sortRows(pdom)
	sortRows(impdom)

	if err := w.writeRelation("dom", dom); err != nil {
		return err
	}
	if err := w.writeRelation("imdom", imdom); err != nil {
		return err
	}
	if err := w.writeRelation("pdom", pdom); err != nil {
		return err
	}
	return w.writeRelation("impdom", impdom)
}
