//go:build wasm

package main

import (
	"encoding/json"
	"sync"
	"syscall/js"

	"github.com/praetorian-inc/betwixt/pkg/scanner"
)

var (
	scanners   = make(map[int]*scanner.Core)
	scannersMu sync.RWMutex
	nextID     int
)

func errorResult(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}

// jsonResult marshals v for JavaScript, or reports why it could not.
func jsonResult(v interface{}) interface{} {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult("failed to marshal results: " + err.Error())
	}
	return string(jsonBytes)
}

func lookup(handle int) (*scanner.Core, bool) {
	scannersMu.RLock()
	defer scannersMu.RUnlock()
	core, ok := scanners[handle]
	return core, ok
}

// newScanner creates a new scanner from a rules document.
// JS: BetwixtNewScanner(rulesDoc) -> {handle} or {error}
// rulesDoc is "builtin" or rules in the YAML (or JSON) rule format.
func newScanner(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("rules argument required")
	}

	core, err := scanner.NewCore(args[0].String(), scanner.NoopLogger{})
	if err != nil {
		return errorResult("failed to create scanner: " + err.Error())
	}

	scannersMu.Lock()
	id := nextID
	nextID++
	scanners[id] = core
	scannersMu.Unlock()

	return map[string]interface{}{"handle": id}
}

// scan scans a single content string.
// JS: BetwixtScan(handle, content, source) -> JSON results or {error}
func scan(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("handle and content arguments required")
	}

	core, ok := lookup(args[0].Int())
	if !ok {
		return errorResult("invalid scanner handle")
	}
	source := ""
	if len(args) > 2 {
		source = args[2].String()
	}

	result, err := core.Scan(args[1].String(), source)
	if err != nil {
		return errorResult("scan failed: " + err.Error())
	}
	return jsonResult(result)
}

// scanBatch scans multiple content items.
// JS: BetwixtScanBatch(handle, itemsJSON) -> JSON results or {error}
func scanBatch(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("handle and itemsJSON arguments required")
	}

	core, ok := lookup(args[0].Int())
	if !ok {
		return errorResult("invalid scanner handle")
	}

	var items []scanner.ContentItem
	if err := json.Unmarshal([]byte(args[1].String()), &items); err != nil {
		return errorResult("failed to parse items JSON: " + err.Error())
	}

	batchResult, err := core.ScanBatch(items)
	if err != nil {
		return errorResult("batch scan failed: " + err.Error())
	}
	return jsonResult(batchResult)
}

// extract runs an ad-hoc extraction; it needs no scanner handle.
// JS: BetwixtExtract(requestJSON) -> JSON {substrings, ranges} or {error}
func extract(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requestJSON argument required")
	}

	var req scanner.ExtractRequest
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return errorResult("failed to parse request JSON: " + err.Error())
	}

	result, err := scanner.Extract(req)
	if err != nil {
		return errorResult("extract failed: " + err.Error())
	}
	return jsonResult(result)
}

// closeScanner closes a scanner and releases resources.
// JS: BetwixtCloseScanner(handle)
func closeScanner(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("handle argument required")
	}

	handle := args[0].Int()

	scannersMu.Lock()
	core, ok := scanners[handle]
	if ok {
		delete(scanners, handle)
	}
	scannersMu.Unlock()

	if !ok {
		return errorResult("invalid scanner handle")
	}

	core.Close()
	return nil
}

// getBuiltinRules returns the built-in rules as JSON.
// JS: BetwixtGetBuiltinRules() -> JSON rules array
func getBuiltinRules(this js.Value, args []js.Value) interface{} {
	rules, err := scanner.GetBuiltinRules()
	if err != nil {
		return errorResult("failed to load builtin rules: " + err.Error())
	}
	return jsonResult(rules)
}
