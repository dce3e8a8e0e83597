//go:build wasm

package main

import (
	"encoding/json"
	"syscall/js"
	"testing"

	"github.com/praetorian-inc/betwixt/pkg/scanner"
	"github.com/praetorian-inc/betwixt/pkg/types"
)

// pipeRules is a rules document in the JSON form of the rule format.
const pipeRules = `{"rules":[{"id":"test.pipe","name":"Pipe","identifiers":["|"],"terminators":["|"]}]}`

func mustHandle(t *testing.T, rulesDoc string) int {
	t.Helper()
	result := newScanner(js.Value{}, []js.Value{js.ValueOf(rulesDoc)})

	resultMap, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected map result, got %T", result)
	}
	if errMsg, hasError := resultMap["error"]; hasError {
		t.Fatalf("Failed to create scanner: %v", errMsg)
	}
	handle, ok := resultMap["handle"].(int)
	if !ok {
		t.Fatal("Expected handle in result")
	}
	return handle
}

// TestScannerCreation tests creating a scanner with builtin rules
func TestScannerCreation(t *testing.T) {
	handle := mustHandle(t, "builtin")
	closeScanner(js.Value{}, []js.Value{js.ValueOf(handle)})
}

// TestScannerInvalidRules tests that a malformed rules document is reported
func TestScannerInvalidRules(t *testing.T) {
	result := newScanner(js.Value{}, []js.Value{js.ValueOf(`{"rules":[{"id":"x"}]}`)})

	resultMap, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected map result, got %T", result)
	}
	if _, hasError := resultMap["error"]; !hasError {
		t.Fatal("Expected error for rule without delimiters")
	}
}

// TestScanContent tests scanning content with custom rules
func TestScanContent(t *testing.T) {
	handle := mustHandle(t, pipeRules)
	defer closeScanner(js.Value{}, []js.Value{js.ValueOf(handle)})

	resultStr := scan(js.Value{}, []js.Value{
		js.ValueOf(handle),
		js.ValueOf("|First|Second|"),
		js.ValueOf("test-source"),
	})

	jsonStr, ok := resultStr.(string)
	if !ok {
		t.Fatalf("Expected string result, got %T: %v", resultStr, resultStr)
	}

	var result scanner.ScanResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}

	if len(result.Matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(result.Matches))
	}
	if result.Matches[0].Content != "First" || result.Matches[1].Content != "Second" {
		t.Errorf("Unexpected contents %q, %q", result.Matches[0].Content, result.Matches[1].Content)
	}
	if result.Source != "test-source" {
		t.Errorf("Expected source 'test-source', got %q", result.Source)
	}
}

// TestScanBatch tests batch scanning multiple content items
func TestScanBatch(t *testing.T) {
	handle := mustHandle(t, pipeRules)
	defer closeScanner(js.Value{}, []js.Value{js.ValueOf(handle)})

	items := []scanner.ContentItem{
		{Source: "script:inline:1", Content: "a |b| c"},
		{Source: "script:inline:2", Content: "nothing here"},
		{Source: "storage:local:config", Content: "|x|y|"},
	}

	itemsJSON, _ := json.Marshal(items)
	resultStr := scanBatch(js.Value{}, []js.Value{
		js.ValueOf(handle),
		js.ValueOf(string(itemsJSON)),
	})

	jsonStr, ok := resultStr.(string)
	if !ok {
		t.Fatalf("Expected string result, got %T: %v", resultStr, resultStr)
	}

	var result scanner.BatchScanResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}

	if result.Total != 3 {
		t.Errorf("Expected 3 total matches, got %d", result.Total)
	}
	if len(result.Results) != 3 {
		t.Errorf("Expected 3 result items, got %d", len(result.Results))
	}
}

// TestExtract tests ad-hoc extraction without a scanner
func TestExtract(t *testing.T) {
	resultStr := extract(js.Value{}, []js.Value{
		js.ValueOf(`{"content":"<Scanned> text","terminators":[">"],"start_anchor":true}`),
	})

	jsonStr, ok := resultStr.(string)
	if !ok {
		t.Fatalf("Expected string result, got %T: %v", resultStr, resultStr)
	}

	var result scanner.ExtractResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}
	if len(result.Substrings) != 1 || result.Substrings[0] != "<Scanned" {
		t.Errorf("Expected [<Scanned], got %q", result.Substrings)
	}
}

// TestGetBuiltinRules tests retrieving builtin rules
func TestGetBuiltinRules(t *testing.T) {
	result := getBuiltinRules(js.Value{}, nil)

	jsonStr, ok := result.(string)
	if !ok {
		if errMap, isMap := result.(map[string]interface{}); isMap {
			t.Fatalf("Got error: %v", errMap["error"])
		}
		t.Fatalf("Expected string result, got %T", result)
	}

	var rules []*types.Rule
	if err := json.Unmarshal([]byte(jsonStr), &rules); err != nil {
		t.Fatalf("Failed to parse rules: %v", err)
	}

	if len(rules) == 0 {
		t.Error("Expected at least one builtin rule")
	}
	for _, rule := range rules {
		if rule.ID == "" {
			t.Error("Rule missing ID")
		}
		if len(rule.Identifiers) == 0 || len(rule.Terminators) == 0 {
			t.Errorf("Rule %s missing delimiters", rule.ID)
		}
	}
}

// TestCloseScanner tests scanner cleanup
func TestCloseScanner(t *testing.T) {
	handle := mustHandle(t, "builtin")

	closeResult := closeScanner(js.Value{}, []js.Value{js.ValueOf(handle)})
	if errMap, ok := closeResult.(map[string]interface{}); ok {
		t.Fatalf("Close failed: %v", errMap["error"])
	}

	// Try to use closed scanner - should error
	scanResult := scan(js.Value{}, []js.Value{
		js.ValueOf(handle),
		js.ValueOf("test"),
	})
	errMap, ok := scanResult.(map[string]interface{})
	if !ok {
		t.Fatal("Expected error when using closed scanner")
	}
	if _, hasError := errMap["error"]; !hasError {
		t.Error("Expected error when using closed scanner")
	}
}

// TestInvalidHandle tests error handling for invalid scanner handles
func TestInvalidHandle(t *testing.T) {
	result := scan(js.Value{}, []js.Value{
		js.ValueOf(99999),
		js.ValueOf("test"),
	})

	errMap, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected error map, got %T", result)
	}
	if _, hasError := errMap["error"]; !hasError {
		t.Error("Expected error for invalid handle")
	}
}
