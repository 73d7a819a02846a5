package problem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProblems(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

const goodFile = `package problems

problem: one: {
	input: T: {columns: [{name: "a"}], rows: [[1], [2]]}
	output: {columns: [{name: "a"}], rows: [[2]]}
}
`

const badFile = `package problems

problem: broken: {
	input: T: {columns: [{name: "a"}, {name: "b"}], rows: [[1]]}
	output: {columns: [{name: "a"}], rows: []}
}

problem: also_broken: {
	input: T: {columns: [{name: "a"}], rows: [[1], ["x"]]}
	output: {columns: [{name: "a"}], rows: []}
}
`

func TestLoad(t *testing.T) {
	dir := writeProblems(t, map[string]string{"one.cue": goodFile})

	res, errs := Load(dir, LoadModeFailFast)
	require.Empty(t, errs)
	assert.Equal(t, 1, res.FileCount)
	assert.Equal(t, []string{"one"}, res.Names())

	p, ok := res.Find("one")
	require.True(t, ok)
	assert.Len(t, p.Example.Output.Rows, 1)

	_, ok = res.Find("missing")
	assert.False(t, ok)
}

func TestLoad_FailFastStopsAtFirstError(t *testing.T) {
	dir := writeProblems(t, map[string]string{"bad.cue": badFile})

	_, errs := Load(dir, LoadModeFailFast)
	require.Len(t, errs, 1)

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeRows, le.Code)
}

func TestLoad_CollectAll(t *testing.T) {
	dir := writeProblems(t, map[string]string{"bad.cue": badFile, "one.cue": goodFile})

	res, errs := Load(dir, LoadModeCollectAll)
	assert.Len(t, errs, 2)
	assert.Equal(t, []string{"one"}, res.Names())
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, errs := Load(filepath.Join(t.TempDir(), "nope"), LoadModeFailFast)
	require.Len(t, errs, 1)

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestLoad_NoFiles(t *testing.T) {
	_, errs := Load(t.TempDir(), LoadModeFailFast)
	require.Len(t, errs, 1)

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeNoFiles, le.Code)
}

func TestLoad_NoProblems(t *testing.T) {
	dir := writeProblems(t, map[string]string{"empty.cue": "package problems\n\nother: 1\n"})

	_, errs := Load(dir, LoadModeFailFast)
	require.Len(t, errs, 1)

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeNoProblem, le.Code)
}

func TestMapFieldToErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeRows, MapFieldToErrorCode("input.T.rows"))
	assert.Equal(t, ErrCodeInput, MapFieldToErrorCode("input.T"))
	assert.Equal(t, ErrCodeSchema, MapFieldToErrorCode("cue"))
	assert.Equal(t, ErrCodeGeneric, MapFieldToErrorCode("whatever"))
}

func TestLoad_ShippedProblems(t *testing.T) {
	res, errs := Load(filepath.Join("..", "..", "examples", "problems"), LoadModeCollectAll)
	require.Empty(t, errs)
	assert.ElementsMatch(t, []string{
		"big_orders", "student_names", "distinct_names", "cs_students",
		"department_students", "all_department_students",
	}, res.Names())

	for _, name := range []string{"department_students", "all_department_students"} {
		p, ok := res.Find(name)
		require.True(t, ok, name)
		assert.GreaterOrEqual(t, p.Bounds.MaxComplexity, 21, name)
		assert.Len(t, p.Example.Input.Tables, 2, name)
	}

	all, _ := res.Find("all_department_students")
	assert.Equal(t, 4, all.Weights["left_join"])
	assert.Len(t, all.Example.Output.Rows, 3)
}
