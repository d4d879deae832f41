package api

import (
	"context"
	"fmt"

	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"github.com/yyupcompany/kyyupgame-sub066/internal/validation"
	"go.uber.org/zap"
)

const (
	ImportStudent = "student"
	ImportParent  = "parent"
	ImportTeacher = "teacher"
)

var importTypes = map[string]bool{ImportStudent: true, ImportParent: true, ImportTeacher: true}

type ParseRequest struct {
	FilePath   string `json:"filePath" validate:"notblank"`
	ImportType string `json:"importType" validate:"oneof=student parent teacher"`
}

type ParsedDocument struct {
	Headers  []string         `json:"headers"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"rowCount"`
	FileType string           `json:"fileType,omitempty"`
}

type SchemaField struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

type ImportSchema struct {
	ImportType string        `json:"importType"`
	Fields     []SchemaField `json:"fields"`
}

type FieldMappingRequest struct {
	ImportType string   `json:"importType" validate:"oneof=student parent teacher"`
	Headers    []string `json:"headers" validate:"required,min=1"`
}

type FieldComparison struct {
	SourceField string  `json:"sourceField"`
	TargetField string  `json:"targetField"`
	Confidence  float64 `json:"confidence"`
	Required    bool    `json:"required"`
	Matched     bool    `json:"matched"`
}

type MappingSummary struct {
	TotalFields    int      `json:"totalFields"`
	MappedFields   int      `json:"mappedFields"`
	UnmappedFields int      `json:"unmappedFields"`
	MissingFields  []string `json:"missingRequiredFields,omitempty"`
}

type FieldMapping struct {
	Comparison []FieldComparison `json:"comparisonTable"`
	Summary    MappingSummary    `json:"summary"`
}

type ImportRequest struct {
	ImportType string            `json:"importType" validate:"oneof=student parent teacher"`
	Rows       []map[string]any  `json:"data" validate:"required"`
	Mapping    map[string]string `json:"mapping,omitempty"`
}

type ImportIssue struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type ImportPreview struct {
	TotalRecords   int           `json:"totalRecords"`
	ValidRecords   int           `json:"validRecords"`
	InvalidRecords int           `json:"invalidRecords"`
	Errors         []ImportIssue `json:"errors"`
}

type ImportResult struct {
	Success      bool          `json:"success"`
	TotalRecords int           `json:"totalRecords"`
	SuccessCount int           `json:"successCount"`
	FailedCount  int           `json:"failedCount"`
	Errors       []ImportIssue `json:"errors"`
}

type DataImport struct {
	base
}

func NewDataImport(req transport.Requester, logger *zap.Logger) *DataImport {
	return &DataImport{base: newBase(req, logger, "data_import")}
}

const dataImportPath = "/data-import"

// CheckPermission false при любой ошибке и при неизвестном типе импорта.
func (s *DataImport) CheckPermission(ctx context.Context, importType string) bool {
	if !importTypes[importType] {
		s.swallow("check_permission", fmt.Errorf("%w: import type %q", transport.ErrInvalidRequest, importType))
		return false
	}
	resp, err := s.req.Get(ctx, dataImportPath+"/permission/"+esc(ID(importType)), nil)
	if err != nil {
		s.swallow("check_permission", err)
		return false
	}
	if f := resp.Field("data.hasPermission"); f.Exists() {
		return f.Bool()
	}
	return resp.Field("data").Bool()
}

func (s *DataImport) Parse(ctx context.Context, req ParseRequest) (*ParsedDocument, error) {
	if err := validation.Struct(req); err != nil {
		return nil, fmt.Errorf("parse import document: %w", err)
	}
	var out ParsedDocument
	if err := s.post(ctx, dataImportPath+"/parse", req, &out); err != nil {
		return nil, fmt.Errorf("parse import document: %w", err)
	}
	return &out, nil
}

func (s *DataImport) Schema(ctx context.Context, importType string) (*ImportSchema, error) {
	if !importTypes[importType] {
		return nil, fmt.Errorf("import schema: %w: import type %q", transport.ErrInvalidRequest, importType)
	}
	var out ImportSchema
	if err := s.get(ctx, dataImportPath+"/schema/"+esc(ID(importType)), nil, &out); err != nil {
		return nil, fmt.Errorf("import schema %s: %w", importType, err)
	}
	return &out, nil
}

func (s *DataImport) FieldMapping(ctx context.Context, req FieldMappingRequest) (*FieldMapping, error) {
	if err := validation.Struct(req); err != nil {
		return nil, fmt.Errorf("import field mapping: %w", err)
	}
	var out FieldMapping
	if err := s.post(ctx, dataImportPath+"/field-mapping", req, &out); err != nil {
		return nil, fmt.Errorf("import field mapping: %w", err)
	}
	return &out, nil
}

func (s *DataImport) Preview(ctx context.Context, req ImportRequest) (*ImportPreview, error) {
	if err := validation.Struct(req); err != nil {
		return nil, fmt.Errorf("import preview: %w", err)
	}
	out := ImportPreview{Errors: []ImportIssue{}}
	if err := s.post(ctx, dataImportPath+"/preview", req, &out); err != nil {
		return nil, fmt.Errorf("import preview: %w", err)
	}
	return &out, nil
}

func (s *DataImport) Execute(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, fmt.Errorf("import execute: %w", err)
	}
	out := ImportResult{Errors: []ImportIssue{}}
	if err := s.post(ctx, dataImportPath+"/execute", req, &out); err != nil {
		return nil, fmt.Errorf("import execute: %w", err)
	}
	return &out, nil
}
