// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/priorart-engine/internal/patentdb"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

func TestBuildRegistry(t *testing.T) {
	tests := []struct {
		name        string
		cfg         types.PatentDBConfig
		wantPrimary string
		wantNames   []string
	}{
		{
			name:        "default patsnap only",
			cfg:         types.PatentDBConfig{},
			wantPrimary: patentdb.PatSnapName,
			wantNames:   []string{patentdb.PatSnapName},
		},
		{
			name:        "patsnap with patentsview key and scholar",
			cfg:         types.PatentDBConfig{PatentsViewAPIKey: "k", EnableScholar: true},
			wantPrimary: patentdb.PatSnapName,
			wantNames:   []string{patentdb.PatentsViewName, patentdb.PatSnapName, patentdb.ScholarName},
		},
		{
			name:        "patentsview primary without patsnap account",
			cfg:         types.PatentDBConfig{Primary: patentdb.PatentsViewName},
			wantPrimary: patentdb.PatentsViewName,
			wantNames:   []string{patentdb.PatentsViewName},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := buildRegistry(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrimary, r.Primary())
			assert.Equal(t, tt.wantNames, r.Names())
		})
	}
}

func TestBuildRegistryUnknownPrimary(t *testing.T) {
	_, err := buildRegistry(types.PatentDBConfig{Primary: "espacenet"})
	assert.ErrorContains(t, err, "unknown primary backend")
}

func TestSetupLoggingAcceptsLevels(t *testing.T) {
	for _, l := range []string{"debug", "INFO", "warn", "error", "bogus"} {
		setupLogging(l)
	}
}
