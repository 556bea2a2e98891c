//go:build js && wasm
// +build js,wasm

package main

import (
	"syscall/js"

	"argentum/firing"
	"argentum/protocol"
)

func main() {
	// Export functions to JavaScript
	js.Global().Set("argentumWasm", js.ValueOf(map[string]interface{}{
		"compressJob":  js.FuncOf(compressJobWrapper),
		"expandJob":    js.FuncOf(expandJobWrapper),
		"djb2":         js.FuncOf(djb2Wrapper),
		"parseVersion": js.FuncOf(parseVersionWrapper),
		"version":      protocol.Version,
	}))

	// Keep the program running
	select {}
}

// compressJobWrapper compresses a print job
// Args: job (string)
// Returns: {text: string, rawSize: number, size: number, error: string}
func compressJobWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeTextResult("", 0, "missing job argument")
	}
	job := args[0].String()
	out, err := firing.Compress(job)
	if err != nil {
		return makeTextResult("", len(job), err.Error())
	}
	return makeTextResult(out, len(job), "")
}

// expandJobWrapper turns a compressed job back into commands
// Args: compressed (string)
// Returns: {text: string, rawSize: number, size: number, error: string}
func expandJobWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeTextResult("", 0, "missing compressed argument")
	}
	compressed := args[0].String()
	out, err := firing.Expand(compressed)
	if err != nil {
		return makeTextResult("", len(compressed), err.Error())
	}
	return makeTextResult(out, len(compressed), "")
}

// djb2Wrapper computes the rolling checksum the printer reports for a file
// Args: contents (string or Uint8Array)
// Returns: decimal string
func djb2Wrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(protocol.FormatDJB2(protocol.DJB2Seed))
	}

	var data []byte
	if args[0].Type() == js.TypeString {
		data = []byte(args[0].String())
	} else {
		data = make([]byte, args[0].Get("length").Int())
		js.CopyBytesToGo(data, args[0])
	}
	return js.ValueOf(protocol.FormatDJB2(protocol.SumDJB2(data)))
}

// parseVersionWrapper parses a firmware version line
// Args: line (string)
// Returns: {major, minor, patch: number, tag, build, text, error: string}
func parseVersionWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing line argument"})
	}
	v, err := protocol.ParseVersion(args[0].String())
	if err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	return js.ValueOf(map[string]interface{}{
		"major": int(v.Major),
		"minor": int(v.Minor),
		"patch": int(v.Patch),
		"tag":   v.Tag,
		"build": v.Build,
		"text":  v.String(),
		"error": "",
	})
}

// makeTextResult creates a JavaScript result object for text conversions
func makeTextResult(text string, rawSize int, errMsg string) js.Value {
	return js.ValueOf(map[string]interface{}{
		"text":    text,
		"rawSize": rawSize,
		"size":    len(text),
		"error":   errMsg,
	})
}
