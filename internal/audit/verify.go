package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// VerifyResult is the outcome of walking a decision trail.
type VerifyResult struct {
	Valid     bool           `json:"valid"`
	Lines     int            `json:"lines"`
	Kinds     map[string]int `json:"kinds,omitempty"`
	Blocks    int            `json:"blocks"`
	Error     string         `json:"error,omitempty"`
	ErrorLine int            `json:"error_line,omitempty"`
}

// Verify checks that every entry links to the hash of the line before it
// and tallies entries by kind. It stops at the first broken link.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	res := VerifyResult{Kinds: map[string]int{}}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	want := GenesisHash

	for scanner.Scan() {
		res.Lines++
		line := bytes.Clone(scanner.Bytes())

		var entry AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return broken(res, fmt.Sprintf("parse error: %v", err))
		}
		if entry.PrevHash != want {
			if res.Lines == 1 {
				return broken(res, fmt.Sprintf("first entry prev_hash is %q, expected genesis hash", entry.PrevHash))
			}
			return broken(res, fmt.Sprintf("hash mismatch: expected %s, got %s", want, entry.PrevHash))
		}

		res.Kinds[entry.Kind]++
		if entry.Decision == DecisionBlock {
			res.Blocks++
		}
		want = HashLine(line)
	}

	if err := scanner.Err(); err != nil {
		return VerifyResult{Error: fmt.Sprintf("scan: %v", err)}
	}

	res.Valid = true
	return res
}

func broken(res VerifyResult, msg string) VerifyResult {
	return VerifyResult{Lines: res.Lines, Error: msg, ErrorLine: res.Lines}
}
