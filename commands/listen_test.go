package commands

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

type stubValidator struct {
	ingested int
	spec     []constraint.RawConstraint
	code     []constraint.RawConstraint
	report   constraint.ComplianceReport
}

func (s *stubValidator) Ingest() { s.ingested++ }

func (s *stubValidator) Validate(ctx context.Context, specRaws, codeRaws []constraint.RawConstraint) constraint.ComplianceReport {
	s.spec = specRaws
	s.code = codeRaws
	return s.report
}

func TestListenRun(t *testing.T) {
	stub := &stubValidator{report: constraint.ComplianceReport{
		OverallStrict:  0.5,
		OverallRelaxed: 0.5,
		ParseErrors:    1,
	}}

	specRaws := []constraint.RawConstraint{
		{Entity: "Customer", Field: "email", Descriptor: "format", Source: constraint.SourceDeclared},
	}
	codeRaws := []constraint.RawConstraint{
		{Entity: "Customer", Field: "email", Descriptor: "format", Source: constraint.SourceDeclared},
		{Entity: "Order", Field: "id", Descriptor: "uniqueness", Source: constraint.SourceStructural},
	}

	rep := listenRun(context.Background(), stub, slog.Default(), specRaws, codeRaws, 2)

	// Each flush invalidates stale normalizations before revalidating.
	assert.Equal(t, 1, stub.ingested)
	require.Len(t, stub.code, 2)
	assert.Equal(t, specRaws, stub.spec)

	// Items the stream dropped at the boundary count as parse errors on
	// top of the engine's own.
	assert.Equal(t, 3, rep.ParseErrors)
	assert.NotEmpty(t, rep.RunID)
	assert.False(t, rep.GeneratedAt.IsZero())
}
