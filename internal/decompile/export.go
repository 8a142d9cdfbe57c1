package decompile

import "github.com/evmtac/decompiler/internal/facts"

// Export writes both fact-file families (spec.md §4.9, §9 Open Questions:
// "An implementation must emit both") for a completed Result into dir.
func Export(r *Result, dir string, cfgOpts Config) error {
	w, err := facts.Open(dir)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := facts.ExportEVM(w, r.Ops, r.CFG, facts.EVMExportOptions{
		Dominators: cfgOpts.Dominators,
		OutOpcodes: cfgOpts.OutOpcodes,
	}); err != nil {
		return err
	}
	return facts.ExportTAC(w, r.TAC)
}
