package reconcile

import (
	"testing"

	"appdeck/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTransferKeepsIncomingQuoting(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
		want string
	}{
		{
			name: "double quoted side gets old value",
			old:  "services:\n  web:\n    environment:\n      KEY: 'abc'\n",
			new:  "services:\n  web:\n    environment:\n      KEY: \"xyz\"\n",
			want: "services:\n  web:\n    environment:\n      KEY: \"abc\"\n",
		},
		{
			name: "single quotes are escaped",
			old:  "services:\n  web:\n    environment:\n      MSG: \"it's \\\"fine\\\"\"\n",
			new:  "services:\n  web:\n    environment:\n      MSG: 'x'\n",
			want: "services:\n  web:\n    environment:\n      MSG: 'it''s \"fine\"'\n",
		},
		{
			name: "plain stays plain",
			old:  "services:\n  web:\n    environment:\n      FOO: bar # mine\n",
			new:  "services:\n  web:\n    environment:\n      FOO: baz # mine\n",
			want: "services:\n  web:\n    environment:\n      FOO: bar # mine\n",
		},
		{
			name: "plain escalates to double quotes when needed",
			old:  "services:\n  web:\n    environment:\n      OPTS: \"--flag: x\"\n",
			new:  "services:\n  web:\n    environment:\n      OPTS: y\n",
			want: "services:\n  web:\n    environment:\n      OPTS: \"--flag: x\"\n",
		},
		{
			name: "quoted string not turned into a number",
			old:  "services:\n  web:\n    environment:\n      PIN: \"123\"\n",
			new:  "services:\n  web:\n    environment:\n      PIN: abcd\n",
			want: "services:\n  web:\n    environment:\n      PIN: \"123\"\n",
		},
		{
			name: "number into number slot",
			old:  "services:\n  web:\n    environment:\n      WORKERS: 4\n",
			new:  "services:\n  web:\n    environment:\n      WORKERS: 8\n",
			want: "services:\n  web:\n    environment:\n      WORKERS: 4\n",
		},
		{
			name: "list item",
			old:  "services:\n  web:\n    environment:\n      - FOO=bar\n",
			new:  "services:\n  web:\n    environment:\n      - FOO=baz\n      - OTHER=1\n",
			want: "services:\n  web:\n    environment:\n      - FOO=bar\n      - OTHER=1\n",
		},
		{
			name: "quoted list item",
			old:  "services:\n  web:\n    environment:\n      - \"GREETING=hi there\"\n",
			new:  "services:\n  web:\n    environment:\n      - \"GREETING=hello\"\n",
			want: "services:\n  web:\n    environment:\n      - \"GREETING=hi there\"\n",
		},
		{
			name: "value into empty slot",
			old:  "services:\n  web:\n    environment:\n      EMPTY: kept\n",
			new:  "services:\n  web:\n    environment:\n      EMPTY:\n      NEXT: 1\n",
			want: "services:\n  web:\n    environment:\n      EMPTY: kept\n      NEXT: 1\n",
		},
		{
			name: "literal block",
			old:  "services:\n  web:\n    environment:\n      CERT: |\n        line1\n        line2\n      OTHER: x\n",
			new:  "services:\n  web:\n    environment:\n      CERT: |\n        other\n      OTHER: x\n",
			want: "services:\n  web:\n    environment:\n      CERT: |\n        line1\n        line2\n      OTHER: x\n",
		},
		{
			name: "flow mapping",
			old:  "services:\n  web:\n    environment: {A: \"1\", B: two}\n",
			new:  "services:\n  web:\n    environment: {A: \"2\", B: three}\n",
			want: "services:\n  web:\n    environment: {A: \"1\", B: two}\n",
		},
		{
			name: "multi-byte characters before the value",
			old:  "services:\n  web:\n    environment:\n      ÜBER: wärme\n",
			new:  "services:\n  web:\n    environment:\n      ÜBER: kälte\n",
			want: "services:\n  web:\n    environment:\n      ÜBER: wärme\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Reconcile([]byte(tt.old), []byte(tt.new))
			require.NotZero(t, result.Transfer.Len())

			merged, err := ApplyTransfer([]byte(tt.new), result.Transfer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(merged))
		})
	}
}

func TestApplyTransferPreservesUntouchedValuesVerbatim(t *testing.T) {
	old := `services:
  app:
    image: app:1
    environment:
      ENABLED: yes
      BIG: 123456789012345678901234567890
      EMPTY:
      RATIO: 1.50
      TOKEN: old
`
	new := replaceOnce(t, old, "TOKEN: old", "TOKEN: new")

	result := Reconcile([]byte(old), []byte(new))
	assert.False(t, result.StructurallyChanged)
	assert.Equal(t, model.EnvTransferMap{"app": {"TOKEN": {Value: "old"}}}, result.Transfer)

	merged, err := ApplyTransfer([]byte(new), result.Transfer)
	require.NoError(t, err)
	assert.Equal(t, old, string(merged))
}

func TestApplyTransferUpdateScenario(t *testing.T) {
	applied := "services:\n  web:\n    image: example/app\n    environment:\n      - FOO=bar\n"
	upstream := "services:\n  web:\n    image: example/app\n    environment:\n      - FOO=baz\n"

	result := Reconcile([]byte(applied), []byte(upstream))
	assert.False(t, result.StructurallyChanged)
	assert.Equal(t, []model.TransferableKey{{Service: "web", Key: "FOO"}}, result.TransferableKeys())

	merged, err := ApplyTransfer([]byte(upstream), result.Transfer)
	require.NoError(t, err)
	assert.Equal(t, applied, string(merged))
}

func TestApplyTransferFailsClosed(t *testing.T) {
	valid := "services:\n  web:\n    environment:\n      FOO: bar\n"

	tests := []struct {
		name     string
		text     string
		transfer model.EnvTransferMap
	}{
		{"unknown key", valid, model.EnvTransferMap{"web": {"MISSING": {Value: "x"}}}},
		{"unknown service", valid, model.EnvTransferMap{"api": {"FOO": {Value: "x"}}}},
		{"unparseable descriptor", "services: [\n", model.EnvTransferMap{"web": {"FOO": {Value: "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyTransfer([]byte(tt.text), tt.transfer)
			assert.ErrorIs(t, err, model.ErrEnvTransfer)
		})
	}
}

func TestApplyTransferEmptyMapIsNoop(t *testing.T) {
	text := []byte("services: [\n")
	out, err := ApplyTransfer(text, model.EnvTransferMap{})
	require.NoError(t, err)
	assert.Equal(t, text, out)
}

func TestApplyTransferKeepsNullValuesNull(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
		want string
	}{
		{
			name: "empty value",
			old:  "services:\n  web:\n    environment:\n      A:\n      B: x\n",
			new:  "services:\n  web:\n    environment:\n      A: foo\n      B: x\n",
			want: "services:\n  web:\n    environment:\n      A:\n      B: x\n",
		},
		{
			name: "explicit null into quoted slot",
			old:  "services:\n  web:\n    environment:\n      A: null\n",
			new:  "services:\n  web:\n    environment:\n      A: \"x\"\n",
			want: "services:\n  web:\n    environment:\n      A: null\n",
		},
		{
			name: "tilde keeps its spelling",
			old:  "services:\n  web:\n    environment:\n      A: ~ # from host\n",
			new:  "services:\n  web:\n    environment:\n      A: 'x' # from host\n",
			want: "services:\n  web:\n    environment:\n      A: ~ # from host\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Reconcile([]byte(tt.old), []byte(tt.new))
			assert.True(t, result.Transfer["web"]["A"].Null)

			merged, err := ApplyTransfer([]byte(tt.new), result.Transfer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(merged))
		})
	}
}

func TestReconcileNullSpellingsAreEqual(t *testing.T) {
	old := "services:\n  web:\n    environment:\n      A: ~\n"
	new := "services:\n  web:\n    environment:\n      A: null\n"

	result := Reconcile([]byte(old), []byte(new))
	assert.False(t, result.StructurallyChanged)
	assert.Zero(t, result.Transfer.Len())
}

func TestApplyTransferRefusesNullIntoListForm(t *testing.T) {
	old := "services:\n  web:\n    environment:\n      A:\n"
	new := "services:\n  web:\n    environment:\n      - A=foo\n"

	result := Reconcile([]byte(old), []byte(new))
	require.Equal(t, 1, result.Transfer.Len())

	_, err := ApplyTransfer([]byte(new), result.Transfer)
	assert.ErrorIs(t, err, model.ErrEnvTransfer)
}
