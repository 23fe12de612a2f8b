package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/stage-tech/basestar-sub001/internal/compiler"
	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// LoadError represents an error that occurred while loading a catalog.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadCatalog compiles the catalog at path (a .cue file or a directory)
// and classifies any failure with a CLI error code.
func LoadCatalog(path string) (*ir.Catalog, *LoadError) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog: %v", err)}
	}

	catalog, err := compiler.LoadCatalog(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	if len(catalog.Schemas) == 0 && len(catalog.Views) == 0 {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "no schemas or views found in catalog"}
	}
	return catalog, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "no CUE files found"):
		return &LoadError{Code: ErrCodeNoFiles, Message: msg}
	case strings.HasPrefix(msg, "scan "):
		return &LoadError{Code: ErrCodeScanError, Message: msg}
	case strings.HasPrefix(msg, "loading CUE files"), strings.HasPrefix(msg, "no CUE instances"):
		return &LoadError{Code: ErrCodeLoadFailed, Message: msg}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: msg}
}

// Error code constants - unified across all CLI commands. Catalog
// validation codes (E1xx) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeParse      = "E201" // Expression does not parse
	ErrCodeEvaluate   = "E202" // Expression evaluation failed
	ErrCodeInvalidArg = "E203" // Malformed flag or argument value
	ErrCodeStore      = "E301" // Store open, read or write failed
	ErrCodeConflict   = "E302" // Optimistic version mismatch
	ErrCodeNoObject   = "E303" // Object not found
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "cue":
		return ErrCodeBuildFailed
	case "fields":
		return compiler.ErrSchemaNoFields
	case "type":
		return compiler.ErrInvalidFieldType
	case "schema":
		return compiler.ErrUnknownSchema
	case "aggregates":
		return compiler.ErrViewNoAggregates
	default:
		return ErrCodeGeneric
	}
}
