package main

import (
	"testing"

	"github.com/wudi/harp/runtime"
)

// TestDemoScenariosCompileAndRun runs every built-in scenario end to
// end, the same smoke check `harp demo` performs interactively.
func TestDemoScenariosCompileAndRun(t *testing.T) {
	if err := runtime.Bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	for _, sc := range demoScenarios() {
		sc := sc
		t.Run(sc.name, func(t *testing.T) {
			if sc.setup != nil {
				sc.setup()
			}
			if err := runScenario(sc, false); err != nil {
				t.Fatalf("scenario %q failed: %v", sc.name, err)
			}
		})
	}
}
