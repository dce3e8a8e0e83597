//go:build wasm

package main

import (
	"syscall/js"
)

func main() {
	// Export functions to JavaScript
	js.Global().Set("BetwixtNewScanner", js.FuncOf(newScanner))
	js.Global().Set("BetwixtScan", js.FuncOf(scan))
	js.Global().Set("BetwixtScanBatch", js.FuncOf(scanBatch))
	js.Global().Set("BetwixtExtract", js.FuncOf(extract))
	js.Global().Set("BetwixtCloseScanner", js.FuncOf(closeScanner))
	js.Global().Set("BetwixtGetBuiltinRules", js.FuncOf(getBuiltinRules))

	// Keep WASM running
	<-make(chan struct{})
}
