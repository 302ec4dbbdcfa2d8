package multiagent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

func TestRegistryFromDefaultTeam(t *testing.T) {
	def := defaultDefinition(t)
	f := &fakeTeam{workers: map[string]*fakeWorker{}, log: &callLog{}}
	reg, err := NewRegistry(def, f.factory(nil), newTestLogger())
	require.NoError(t, err)

	specs := reg.Specs()
	require.Len(t, specs, len(def.Workers))
	assert.Equal(t, def.Workers[0].ID, specs[0].ID, "declaration order")
	assert.Equal(t, "github_loader_agent", reg.Loader())
	assert.Equal(t, "Compliance & Licensing Agent", reg.Name("compliance_agent"))
	assert.Equal(t, def.Name, reg.Name(OracleWorkerID))
	assert.Equal(t, "nobody", reg.Name("nobody"))

	w, err := reg.Worker("compliance_agent")
	require.NoError(t, err)
	assert.Equal(t, "compliance_agent", w.Spec().ID)

	_, err = reg.Worker("nobody")
	assert.ErrorIs(t, err, domain.ErrWorkerNotFound)
}

func TestOracleSpec(t *testing.T) {
	def := defaultDefinition(t)
	spec := OracleSpec(def)
	assert.Equal(t, OracleWorkerID, spec.ID)
	assert.Empty(t, spec.Capabilities)
	assert.False(t, spec.RequiresConfirmation)
	assert.Len(t, spec.Instructions, len(def.Instructions)+1)
	assert.Contains(t, spec.Instructions[len(spec.Instructions)-1], "confirmed analysis")
}

func TestRegistryFactoryError(t *testing.T) {
	def := defaultDefinition(t)
	_, err := NewRegistry(def, func(spec domain.WorkerSpec) (domain.Worker, error) {
		if spec.ID == "compliance_agent" {
			return nil, errors.New("no provider")
		}
		return &fakeWorker{spec: spec, seq: &callLog{}}, nil
	}, newTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compliance_agent")
}
