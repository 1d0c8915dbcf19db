package reconcile

import (
	"bytes"
	"fmt"

	"appdeck/internal/domain/model"
	"appdeck/internal/domain/service/descriptor"
	"appdeck/pkg/log"

	"github.com/pmezard/go-difflib/difflib"
)

// Reconcile compares the applied descriptor with an incoming one. Only
// edits outside environment values count as structural. The transfer map
// lists values that differ for keys present on both sides; it is empty when
// either side fails to parse, in which case a warning is returned and the
// comparison falls back to line masking.
func Reconcile(oldText, newText []byte) model.DiffResult {
	return compare(oldText, newText, false)
}

// Diff is Reconcile plus a display diff of the two descriptors.
func Diff(oldText, newText []byte) model.DiffResult {
	return compare(oldText, newText, true)
}

// StructurallyChanged reports whether the descriptors differ outside
// environment values.
func StructurallyChanged(oldText, newText []byte) bool {
	return Reconcile(oldText, newText).StructurallyChanged
}

func compare(oldText, newText []byte, withDiff bool) model.DiffResult {
	result := model.DiffResult{Transfer: model.EnvTransferMap{}}
	if bytes.Equal(oldText, newText) {
		if withDiff {
			for _, line := range splitLines(string(newText)) {
				result.Diff = append(result.Diff, model.DiffLine{Op: model.DiffEqual, Text: line})
			}
		}
		return result
	}

	oldMasked, newMasked, oldDoc, newDoc, warnings := maskPair(oldText, newText)
	result.Warnings = warnings
	result.StructurallyChanged = oldMasked.text != newMasked.text
	if oldDoc != nil && newDoc != nil {
		result.Transfer = transferMap(oldDoc, newDoc)
	}
	if withDiff {
		result.Diff = diffLines(oldMasked, newMasked)
	}
	return result
}

// maskPair masks both sides the same way: positionally when both parse,
// line by line otherwise.
func maskPair(oldText, newText []byte) (oldMasked, newMasked maskedText, oldDoc, newDoc *descriptor.Document, warnings []string) {
	oldDoc, oldErr := descriptor.Parse(oldText)
	newDoc, newErr := descriptor.Parse(newText)

	if oldErr == nil && newErr == nil {
		var err error
		if oldMasked, err = maskDocument(oldDoc); err == nil {
			if newMasked, err = maskDocument(newDoc); err == nil {
				return oldMasked, newMasked, oldDoc, newDoc, nil
			}
		}
		warnings = append(warnings, fmt.Sprintf("environment values could not be located, comparing line by line: %v", err))
	}
	if oldErr != nil {
		warnings = append(warnings, fmt.Sprintf("%v: current descriptor: %v", model.ErrReconciliationParse, oldErr))
		oldDoc = nil
	}
	if newErr != nil {
		warnings = append(warnings, fmt.Sprintf("%v: incoming descriptor: %v", model.ErrReconciliationParse, newErr))
		newDoc = nil
	}
	for _, w := range warnings {
		log.Warn("Reconciliation degraded", "warning", w)
	}
	return maskLines(string(oldText)), maskLines(string(newText)), oldDoc, newDoc, warnings
}

func transferMap(oldDoc, newDoc *descriptor.Document) model.EnvTransferMap {
	transfer := model.EnvTransferMap{}
	oldEnvs := oldDoc.Environments()
	for svc, newVars := range newDoc.Environments() {
		oldVars, ok := oldEnvs[svc]
		if !ok {
			continue
		}
		for key, newValue := range newVars {
			if oldValue, ok := oldVars[key]; ok && !oldValue.Same(newValue) {
				transfer.Set(svc, key, oldValue)
			}
		}
	}
	return transfer
}

// diffLines builds a line diff on the masked texts, then shows each side's
// own values again. Lines equal once masked but different once restored are
// value-only changes.
func diffLines(oldMasked, newMasked maskedText) []model.DiffLine {
	a, aRestored := oldMasked.restoredLines()
	b, bRestored := newMasked.restoredLines()

	var out []model.DiffLine
	matcher := difflib.NewMatcher(a, b)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for k := 0; k < op.I2-op.I1; k++ {
				oldLine, newLine := aRestored[op.I1+k], bRestored[op.J1+k]
				if oldLine == newLine {
					out = append(out, model.DiffLine{Op: model.DiffEqual, Text: newLine})
				} else {
					out = append(out, model.DiffLine{Op: model.DiffValue, Text: newLine, Old: oldLine})
				}
			}
		case 'd', 'r', 'i':
			for i := op.I1; i < op.I2; i++ {
				out = append(out, model.DiffLine{Op: model.DiffRemoved, Text: aRestored[i]})
			}
			for j := op.J1; j < op.J2; j++ {
				out = append(out, model.DiffLine{Op: model.DiffAdded, Text: bRestored[j]})
			}
		}
	}
	return out
}
