package model

import "sort"

// EnvValue is an environment value as written. A null value makes the
// backend take the variable from the host environment; Value then holds its
// source text ("", "null" or "~").
type EnvValue struct {
	Value string
	Null  bool
}

// Same reports whether v and o set the variable the same way. Nulls are
// equal whatever their spelling.
func (v EnvValue) Same(o EnvValue) bool {
	if v.Null || o.Null {
		return v.Null == o.Null
	}
	return v.Value == o.Value
}

// EnvTransferMap maps service name -> variable key -> value to carry forward.
type EnvTransferMap map[string]map[string]EnvValue

// Set records value for (service, key).
func (m EnvTransferMap) Set(service, key string, value EnvValue) {
	if m[service] == nil {
		m[service] = make(map[string]EnvValue)
	}
	m[service][key] = value
}

// Len returns the number of (service, key) entries.
func (m EnvTransferMap) Len() int {
	n := 0
	for _, vars := range m {
		n += len(vars)
	}
	return n
}

// TransferableKey identifies one transferable variable.
type TransferableKey struct {
	Service string `json:"service"`
	Key     string `json:"key"`
}

// Keys returns the entries sorted by service then key.
func (m EnvTransferMap) Keys() []TransferableKey {
	keys := make([]TransferableKey, 0, m.Len())
	for svc, vars := range m {
		for k := range vars {
			keys = append(keys, TransferableKey{Service: svc, Key: k})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Service != keys[j].Service {
			return keys[i].Service < keys[j].Service
		}
		return keys[i].Key < keys[j].Key
	})
	return keys
}

// DiffOp marks how a display diff line changed.
type DiffOp string

const (
	DiffEqual   DiffOp = " "
	DiffRemoved DiffOp = "-"
	DiffAdded   DiffOp = "+"
	// DiffValue marks a line whose structure is unchanged but whose
	// environment value differs.
	DiffValue DiffOp = "~"
)

// DiffLine is one line of the display diff. Old is only set for DiffValue.
type DiffLine struct {
	Op   DiffOp `json:"op"`
	Text string `json:"text"`
	Old  string `json:"old,omitempty"`
}

// DiffResult is the outcome of reconciling two descriptors.
type DiffResult struct {
	StructurallyChanged bool           `json:"structurally_changed"`
	Transfer            EnvTransferMap `json:"-"`
	Warnings            []string       `json:"warnings,omitempty"`
	Diff                []DiffLine     `json:"diff,omitempty"`
}

// TransferableKeys lists the transfer entries in a stable order.
func (r DiffResult) TransferableKeys() []TransferableKey {
	return r.Transfer.Keys()
}
