package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/ataft/lightdash/internal/ir"
)

// LoadMode controls how errors are handled during explore loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Load error codes. Compile failures of a single explore are mapped onto
// the E2xx validation codes by CodeForKind.
const (
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeScanError   = "E002" // directory scan error
	ErrCodeNoFiles     = "E003" // no CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
)

// LoadResult contains the explores compiled from a directory.
type LoadResult struct {
	Explores  []*ir.Explore // sorted by name
	CUEValue  cue.Value
	FileCount int
}

// Explore returns the loaded explore with the given name, or nil.
func (r *LoadResult) Explore(name string) *ir.Explore {
	if r == nil {
		return nil
	}
	for _, e := range r.Explores {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Names returns the names of all loaded explores.
func (r *LoadResult) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.Explores))
	for i, e := range r.Explores {
		names[i] = e.Name
	}
	return names
}

// LoadError is an error raised while loading an explores directory.
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

// LoadExplores loads every `explore: <name>: {...}` definition of the CUE
// package in dir and compiles each one with CompileExplore.
// If mode is LoadModeFailFast, returns on the first error.
func LoadExplores(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("explores directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing explores directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{CUEValue: value, FileCount: len(cueFiles)}
	var errs []error

	exploresVal := value.LookupPath(cue.ParsePath("explore"))
	if !exploresVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: "no explores found"}}
	}
	iter, err := exploresVal.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating explores: %v", err)}}
	}
	for iter.Next() {
		explore, err := CompileExplore(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, "explore."+iter.Label()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Explores = append(result.Explores, explore)
	}
	slices.SortFunc(result.Explores, func(a, b *ir.Explore) int {
		return strings.Compare(a.Name, b.Name)
	})

	if len(result.Explores) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no explores found"})
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

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var ce *CompileError
	if errors.As(err, &ce) {
		return &LoadError{
			Code:    CodeForKind(ce.Kind),
			Message: fmt.Sprintf("%s: %s", context, ce.Message),
			Pos:     ce.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// CodeForKind maps a compile error kind to an error code.
func CodeForKind(kind ErrorKind) string {
	switch kind {
	case KindUnsupportedWarehouse:
		return ErrUnsupportedWarehouse
	case KindInvalidMetric:
		return ErrInvalidMetricType
	case KindMalformedReference, KindUnresolvedReference:
		return ErrInvalidMetricSQL
	case KindDuplicateName:
		return ErrDuplicateCalculation
	default:
		return ErrCodeGeneric
	}
}
