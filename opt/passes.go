package opt

import "github.com/kushdb/khir/internal/khirlog"

// Pass names one entry of the optimizing backend's fixed pass list.
// KHIR does not expose pass selection — every program goes through the
// same build, so the toolchain's output is reproducible across runs of
// the same IR.
type Pass string

const (
	PassInstCombine   Pass = "instcombine"
	PassReassociate   Pass = "reassociate"
	PassGVN           Pass = "gvn"
	PassCFGSimplify1  Pass = "simplifycfg"
	PassAggressiveDCE Pass = "adce"
	PassCFGSimplify2  Pass = "simplifycfg"
)

// Pipeline is the fixed, ordered pass list. Toolchain.BuildObject logs
// it, in this order, at debug level; the list is not handed to the C
// compiler, which is invoked with -O2 and applies its own optimizations.
var Pipeline = []Pass{
	PassInstCombine,
	PassReassociate,
	PassGVN,
	PassCFGSimplify1,
	PassAggressiveDCE,
	PassCFGSimplify2,
}

var log = khirlog.New()

// Logger returns the package-level logger for the optimizing backend.
func Logger() *khirlog.Holder { return log }

func logPipeline() {
	for _, p := range Pipeline {
		log.Get().Sugar().Debugf("running pass %s", p)
	}
}
