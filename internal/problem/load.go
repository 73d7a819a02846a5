package problem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the problems loaded from a directory.
type LoadResult struct {
	Problems  []Problem // declaration order
	CUEValue  cue.Value
	FileCount int
}

// Find returns the problem with the given name.
func (r *LoadResult) Find(name string) (Problem, bool) {
	for _, p := range r.Problems {
		if p.Name == name {
			return p, true
		}
	}
	return Problem{}, false
}

// Names returns the problem names in declaration order.
func (r *LoadResult) Names() []string {
	names := make([]string, len(r.Problems))
	for i, p := range r.Problems {
		names[i] = p.Name
	}
	return names
}

// LoadError represents an error that occurred during loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeSchema    = "E100" // Value does not match #Problem
	ErrCodeInput     = "E101" // Bad input tables
	ErrCodeOutput    = "E102" // Bad output relation
	ErrCodeRows      = "E103" // Row shape mismatch
	ErrCodeType      = "E104" // Invalid column or cell type
	ErrCodeCompare   = "E105" // Invalid comparison mode
	ErrCodeBounds    = "E106" // Invalid bounds
	ErrCodeNoProblem = "E107" // No problems declared
)

// MapFieldToErrorCode maps a CompileError field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeSchema
	case field == "input":
		return ErrCodeInput
	case field == "output":
		return ErrCodeOutput
	case field == "rows" || strings.HasSuffix(field, ".rows"):
		return ErrCodeRows
	case field == "type":
		return ErrCodeType
	case field == "compare":
		return ErrCodeCompare
	case field == "bounds":
		return ErrCodeBounds
	case strings.HasPrefix(field, "input."):
		return ErrCodeInput
	default:
		return ErrCodeGeneric
	}
}

// Load loads and compiles every problem in the CUE package in dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func Load(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("problems directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing problems directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{CUEValue: value, FileCount: len(files)}

	var errs []error
	problems := value.LookupPath(cue.ParsePath("problem"))
	if problems.Exists() {
		iter, iterErr := problems.Fields()
		if iterErr != nil {
			return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating problems: %v", iterErr)}}
		}
		for iter.Next() {
			p, compileErr := Compile(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "problem."+iter.Label()))
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			result.Problems = append(result.Problems, *p)
		}
	}

	if len(result.Problems) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoProblem, Message: "no problems found"})
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func convertCompileError(err error, context string) *LoadError {
	var ce *CompileError
	if errors.As(err, &ce) {
		return &LoadError{
			Code:    MapFieldToErrorCode(ce.Field),
			Message: fmt.Sprintf("%s: %s", context, ce.Message),
			Pos:     ce.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}
